package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planup/internal/engine"
	"planup/internal/repo"
)

func registerIssues(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-issue",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/issues",
		Summary:       "Create issue",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      struct {
			Title          string   `json:"title"`
			Description    string   `json:"description,omitempty"`
			Priority       string   `json:"priority,omitempty"`
			Type           string   `json:"type,omitempty"`
			AssigneeID     string   `json:"assignee_id,omitempty"`
			ReporterID     string   `json:"reporter_id,omitempty"`
			EpicID         string   `json:"epic_id,omitempty"`
			SprintID       string   `json:"sprint_id,omitempty"`
			EstimatedHours float64  `json:"estimated_hours,omitempty"`
			StoryPoints    int      `json:"story_points,omitempty"`
			Labels         []string `json:"labels,omitempty"`
			DueDate        string   `json:"due_date,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		i, err := e.CreateIssue(ctx, engine.IssueCreateOptions{
			ProjectID:      p.ID,
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			Priority:       input.Body.Priority,
			Type:           input.Body.Type,
			AssigneeID:     input.Body.AssigneeID,
			ReporterID:     input.Body.ReporterID,
			EpicID:         input.Body.EpicID,
			SprintID:       input.Body.SprintID,
			EstimatedHours: input.Body.EstimatedHours,
			StoryPoints:    input.Body.StoryPoints,
			Labels:         input.Body.Labels,
			DueDate:        input.Body.DueDate,
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(i)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issues",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/issues",
		Summary:     "List issues",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		Status     string `query:"status"`
		EpicID     string `query:"epic_id"`
		SprintID   string `query:"sprint_id"`
		AssigneeID string `query:"assignee_id"`
		Lifecycle  string `query:"lifecycle"`
	}) (*struct {
		Body []IssueResponse `json:"body"`
	}, error) {
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListIssues(ctx, repo.IssueFilter{
			ProjectID:  p.ID,
			Status:     input.Status,
			EpicID:     input.EpicID,
			SprintID:   input.SprintID,
			AssigneeID: input.AssigneeID,
			Lifecycle:  input.Lifecycle,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []IssueResponse `json:"body"`
		}{Body: mapIssues(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-issue",
		Method:      http.MethodGet,
		Path:        "/issues/{issue_id}",
		Summary:     "Get issue",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		i, err := e.IssueView(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(i)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-issue",
		Method:      http.MethodPatch,
		Path:        "/issues/{issue_id}",
		Summary:     "Update issue",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
		Body    struct {
			Title          *string   `json:"title,omitempty"`
			Description    *string   `json:"description,omitempty"`
			Priority       *string   `json:"priority,omitempty"`
			Type           *string   `json:"type,omitempty"`
			AssigneeID     *string   `json:"assignee_id,omitempty"`
			EpicID         *string   `json:"epic_id,omitempty"`
			SprintID       *string   `json:"sprint_id,omitempty"`
			EstimatedHours *float64  `json:"estimated_hours,omitempty"`
			StoryPoints    *int      `json:"story_points,omitempty"`
			Labels         *[]string `json:"labels,omitempty"`
			DueDate        *string   `json:"due_date,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		updated, err := e.UpdateIssue(ctx, i.ID, engine.IssueUpdateOptions{
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			Priority:       input.Body.Priority,
			Type:           input.Body.Type,
			AssigneeID:     input.Body.AssigneeID,
			EpicID:         input.Body.EpicID,
			SprintID:       input.Body.SprintID,
			EstimatedHours: input.Body.EstimatedHours,
			StoryPoints:    input.Body.StoryPoints,
			Labels:         input.Body.Labels,
			DueDate:        input.Body.DueDate,
			ActorID:        actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(updated)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "move-issue",
		Method:      http.MethodPost,
		Path:        "/issues/{issue_id}/move",
		Summary:     "Move issue to another status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
		Body    struct {
			Status string `json:"status"`
		} `json:"body"`
	}) (*struct {
		Body IssueResponse `json:"body"`
	}, error) {
		if input.Body.Status == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "status is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		moved, err := e.MoveIssue(ctx, i.ID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IssueResponse `json:"body"`
		}{Body: issueResponse(moved)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-issue",
		Method:      http.MethodDelete,
		Path:        "/issues/{issue_id}",
		Summary:     "Delete issue",
		Errors:      []int{http.StatusNotFound, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteIssue(ctx, i.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerLinks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "link-issues",
		Method:        http.MethodPost,
		Path:          "/issues/{issue_id}/links",
		Summary:       "Link issues",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
		Body    struct {
			TargetIssueID string `json:"target_issue_id"`
			LinkType      string `json:"link_type"`
		} `json:"body"`
	}) (*struct {
		Body LinkResponse `json:"body"`
	}, error) {
		if input.Body.TargetIssueID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "target_issue_id is required", nil)
		}
		if input.Body.LinkType == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "link_type is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		src, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		tgt, err := e.IssueByRef(ctx, input.Body.TargetIssueID)
		if err != nil {
			return nil, handleError(err)
		}
		l, err := e.AddLink(ctx, src.ID, tgt.ID, input.Body.LinkType, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LinkResponse `json:"body"`
		}{Body: linkResponse(l)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-issue-links",
		Method:      http.MethodGet,
		Path:        "/issues/{issue_id}/links",
		Summary:     "List issue links",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct {
		Body []LinkResponse `json:"body"`
	}, error) {
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		links, err := e.LinksFor(ctx, i.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]LinkResponse, 0, len(links))
		for _, l := range links {
			res = append(res, linkResponse(l))
		}
		return &struct {
			Body []LinkResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unlink-issues",
		Method:      http.MethodDelete,
		Path:        "/issues/{issue_id}/links/{link_id}",
		Summary:     "Remove issue link",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
		LinkID  string `path:"link_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveLink(ctx, input.LinkID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
