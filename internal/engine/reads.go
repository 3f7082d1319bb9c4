package engine

import (
	"context"

	"planup/internal/domain"
	"planup/internal/repo"
)

// IssueByRef resolves an issue by id or by key, so callers can pass
// either "PLAN-42" or the uuid.
func (e Engine) IssueByRef(ctx context.Context, ref string) (domain.Issue, error) {
	i, err := e.Repo.GetIssue(ctx, ref)
	if err == repo.ErrNotFound {
		return e.Repo.GetIssueByKey(ctx, ref)
	}
	return i, err
}

// ProjectByRef resolves a project by id or by key.
func (e Engine) ProjectByRef(ctx context.Context, ref string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, ref)
	if err == repo.ErrNotFound {
		return e.Repo.GetProjectByKey(ctx, ref)
	}
	return p, err
}

// EpicByRef resolves an epic by id or by key.
func (e Engine) EpicByRef(ctx context.Context, ref string) (domain.Epic, error) {
	ep, err := e.Repo.GetEpic(ctx, ref)
	if err == repo.ErrNotFound {
		return e.Repo.GetEpicByKey(ctx, ref)
	}
	return ep, err
}

// IssueView loads an issue with its subtask ids filled in.
func (e Engine) IssueView(ctx context.Context, ref string) (domain.Issue, error) {
	i, err := e.IssueByRef(ctx, ref)
	if err != nil {
		return domain.Issue{}, err
	}
	subs, err := e.Repo.ListSubTasks(ctx, i.ID)
	if err != nil {
		return domain.Issue{}, err
	}
	for _, st := range subs {
		i.SubTaskIDs = append(i.SubTaskIDs, st.ID)
	}
	return i, nil
}

// EpicView loads an epic with its member issue ids filled in.
func (e Engine) EpicView(ctx context.Context, ref string) (domain.Epic, error) {
	ep, err := e.EpicByRef(ctx, ref)
	if err != nil {
		return domain.Epic{}, err
	}
	issues, err := e.Repo.IssuesByEpic(ctx, nil, ep.ID)
	if err != nil {
		return domain.Epic{}, err
	}
	for _, i := range issues {
		ep.IssueIDs = append(ep.IssueIDs, i.ID)
	}
	return ep, nil
}

// SprintView loads a sprint with its member issue ids filled in.
func (e Engine) SprintView(ctx context.Context, id string) (domain.Sprint, error) {
	s, err := e.Repo.GetSprint(ctx, id)
	if err != nil {
		return domain.Sprint{}, err
	}
	issues, err := e.Repo.IssuesBySprint(ctx, nil, s.ID)
	if err != nil {
		return domain.Sprint{}, err
	}
	for _, i := range issues {
		s.IssueIDs = append(s.IssueIDs, i.ID)
	}
	return s, nil
}
