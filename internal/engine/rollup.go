package engine

import (
	"context"
	"log"
	"math"

	"planup/internal/domain"
	"planup/internal/engine/workflow"
)

// recomputeAfterIssueChange refreshes every aggregate the change can
// affect: the epics and sprints the issue belonged to before and after,
// then the projects. Rollups are derived data; failures are logged and
// never surfaced to the caller whose mutation already committed.
func (e Engine) recomputeAfterIssueChange(ctx context.Context, current, previous domain.Issue) {
	for _, id := range distinctRefs(current.EpicID, previous.EpicID) {
		e.RecomputeEpic(ctx, id)
	}
	for _, id := range distinctRefs(current.SprintID, previous.SprintID) {
		e.RecomputeSprint(ctx, id)
	}
	seen := map[string]bool{}
	for _, id := range []string{current.ProjectID, previous.ProjectID} {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		e.RecomputeProject(ctx, id)
	}
}

func distinctRefs(refs ...*string) []string {
	seen := map[string]bool{}
	var res []string
	for _, r := range refs {
		if r == nil || *r == "" || seen[*r] {
			continue
		}
		seen[*r] = true
		res = append(res, *r)
	}
	return res
}

// RecomputeEpic rebuilds an epic's story point totals from its member
// issues.
func (e Engine) RecomputeEpic(ctx context.Context, epicID string) {
	ep, err := e.Repo.GetEpic(ctx, epicID)
	if err != nil {
		log.Printf("rollup: epic %s: %v", epicID, err)
		return
	}
	terminal, err := e.terminalStatus(ctx, ep.ProjectID)
	if err != nil {
		log.Printf("rollup: epic %s workflow: %v", epicID, err)
		return
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("rollup: epic %s: %v", epicID, err)
		return
	}
	defer tx.Rollback()

	issues, err := e.Repo.IssuesByEpic(ctx, tx, epicID)
	if err != nil {
		log.Printf("rollup: epic %s issues: %v", epicID, err)
		return
	}
	total, completed := 0, 0
	for _, i := range issues {
		total += i.StoryPoints
		if i.Status == terminal {
			completed += i.StoryPoints
		}
	}
	if err := e.Repo.UpdateEpicRollup(ctx, tx, epicID, total, completed, e.ts()); err != nil {
		log.Printf("rollup: epic %s write: %v", epicID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("rollup: epic %s commit: %v", epicID, err)
	}
}

// RecomputeSprint rebuilds a sprint's velocity: the story points of
// member issues completed inside the sprint window.
func (e Engine) RecomputeSprint(ctx context.Context, sprintID string) {
	s, err := e.Repo.GetSprint(ctx, sprintID)
	if err != nil {
		log.Printf("rollup: sprint %s: %v", sprintID, err)
		return
	}
	terminal, err := e.terminalStatus(ctx, s.ProjectID)
	if err != nil {
		log.Printf("rollup: sprint %s workflow: %v", sprintID, err)
		return
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("rollup: sprint %s: %v", sprintID, err)
		return
	}
	defer tx.Rollback()

	issues, err := e.Repo.IssuesBySprint(ctx, tx, sprintID)
	if err != nil {
		log.Printf("rollup: sprint %s issues: %v", sprintID, err)
		return
	}
	velocity := 0
	for _, i := range issues {
		if i.Status != terminal || i.CompletedAt == nil {
			continue
		}
		if withinWindow(*i.CompletedAt, s.StartDate, s.EndDate) {
			velocity += i.StoryPoints
		}
	}
	if err := e.Repo.UpdateSprintVelocity(ctx, tx, sprintID, velocity); err != nil {
		log.Printf("rollup: sprint %s write: %v", sprintID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("rollup: sprint %s commit: %v", sprintID, err)
	}
}

// withinWindow compares on calendar days so date-only sprint bounds
// accept timestamps from any time of the boundary days.
func withinWindow(completedAt, start, end string) bool {
	day := func(s string) string {
		if len(s) > 10 {
			return s[:10]
		}
		return s
	}
	d := day(completedAt)
	return d >= day(start) && d <= day(end)
}

// RecomputeProject rebuilds project progress from its epics and refreshes
// the active issue count.
func (e Engine) RecomputeProject(ctx context.Context, projectID string) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("rollup: project %s: %v", projectID, err)
		return
	}
	defer tx.Rollback()

	epics, err := e.Repo.ActiveEpicsByProject(ctx, tx, projectID)
	if err != nil {
		log.Printf("rollup: project %s epics: %v", projectID, err)
		return
	}
	total, completed := 0, 0
	for _, ep := range epics {
		total += ep.StoryPoints
		completed += ep.CompletedStoryPoints
	}
	progress := 0
	if total > 0 {
		progress = int(math.Round(float64(completed) / float64(total) * 100))
	}
	var issueCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues WHERE project_id=? AND lifecycle='active'`, projectID).Scan(&issueCount); err != nil {
		log.Printf("rollup: project %s count: %v", projectID, err)
		return
	}
	if err := e.Repo.UpdateProjectRollup(ctx, tx, projectID, progress, issueCount); err != nil {
		log.Printf("rollup: project %s write: %v", projectID, err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("rollup: project %s commit: %v", projectID, err)
	}
}

func (e Engine) terminalStatus(ctx context.Context, projectID string) (string, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return "", err
	}
	w, err := e.workflowFor(ctx, p)
	if err != nil {
		return "", err
	}
	return workflow.Terminal(w), nil
}
