package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"planup/internal/domain"
	"planup/internal/engine"
	"planup/internal/repo"
)

func registerEpics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-epic",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/epics",
		Summary:       "Create epic",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      struct {
			Title       string `json:"title"`
			Description string `json:"description,omitempty"`
			AssigneeID  string `json:"assignee_id,omitempty"`
			Color       string `json:"color,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body EpicResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		ep, err := e.CreateEpic(ctx, engine.EpicCreateOptions{
			ProjectID:   p.ID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			AssigneeID:  input.Body.AssigneeID,
			Color:       input.Body.Color,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EpicResponse `json:"body"`
		}{Body: epicResponse(ep)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-epics",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/epics",
		Summary:     "List epics",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []EpicResponse `json:"body"`
	}, error) {
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListEpics(ctx, p.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]EpicResponse, 0, len(items))
		for _, ep := range items {
			res = append(res, epicResponse(ep))
		}
		return &struct {
			Body []EpicResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-epic",
		Method:      http.MethodGet,
		Path:        "/epics/{epic_id}",
		Summary:     "Get epic",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		EpicID string `path:"epic_id"`
	}) (*struct {
		Body EpicResponse `json:"body"`
	}, error) {
		ep, err := e.EpicView(ctx, input.EpicID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EpicResponse `json:"body"`
		}{Body: epicResponse(ep)}, nil
	})
}

func registerSprints(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-sprint",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/sprints",
		Summary:       "Create sprint",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      struct {
			Name      string `json:"name"`
			Goal      string `json:"goal,omitempty"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
			Capacity  int    `json:"capacity,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body SprintResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		s, err := e.CreateSprint(ctx, engine.SprintCreateOptions{
			ProjectID: p.ID,
			Name:      input.Body.Name,
			Goal:      input.Body.Goal,
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
			Capacity:  input.Body.Capacity,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SprintResponse `json:"body"`
		}{Body: sprintResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sprints",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sprints",
		Summary:     "List sprints",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []SprintResponse `json:"body"`
	}, error) {
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListSprints(ctx, p.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]SprintResponse, 0, len(items))
		for _, s := range items {
			res = append(res, sprintResponse(s))
		}
		return &struct {
			Body []SprintResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-sprint",
		Method:      http.MethodGet,
		Path:        "/sprints/{sprint_id}",
		Summary:     "Get sprint",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SprintID string `path:"sprint_id"`
	}) (*struct {
		Body SprintResponse `json:"body"`
	}, error) {
		s, err := e.SprintView(ctx, input.SprintID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SprintResponse `json:"body"`
		}{Body: sprintResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-sprint",
		Method:      http.MethodPatch,
		Path:        "/sprints/{sprint_id}",
		Summary:     "Update sprint",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SprintID string `path:"sprint_id"`
		Body     struct {
			Name      *string `json:"name,omitempty"`
			Goal      *string `json:"goal,omitempty"`
			StartDate *string `json:"start_date,omitempty"`
			EndDate   *string `json:"end_date,omitempty"`
			Capacity  *int    `json:"capacity,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body SprintResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpdateSprint(ctx, input.SprintID, engine.SprintUpdateOptions{
			Name:      input.Body.Name,
			Goal:      input.Body.Goal,
			StartDate: input.Body.StartDate,
			EndDate:   input.Body.EndDate,
			Capacity:  input.Body.Capacity,
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SprintResponse `json:"body"`
		}{Body: sprintResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-sprint",
		Method:      http.MethodPost,
		Path:        "/sprints/{sprint_id}/start",
		Summary:     "Start sprint",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SprintID string `path:"sprint_id"`
	}) (*struct {
		Body SprintResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.StartSprint(ctx, input.SprintID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SprintResponse `json:"body"`
		}{Body: sprintResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-sprint",
		Method:      http.MethodPost,
		Path:        "/sprints/{sprint_id}/complete",
		Summary:     "Complete sprint",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SprintID string `path:"sprint_id"`
	}) (*struct {
		Body SprintResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CompleteSprint(ctx, input.SprintID, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SprintResponse `json:"body"`
		}{Body: sprintResponse(s)}, nil
	})
}

func registerActivities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activities",
		Method:      http.MethodGet,
		Path:        "/activities",
		Summary:     "List activities",
	}, func(ctx context.Context, input *struct {
		ProjectID string `query:"project_id"`
		IssueID   string `query:"issue_id"`
		SinceID   int64  `query:"since_id"`
		Limit     int    `query:"limit"`
	}) (*struct {
		Body []ActivityResponse `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 100
		}
		items, err := e.Repo.ListActivities(ctx, repo.ActivityFilter{
			ProjectID: input.ProjectID,
			IssueID:   input.IssueID,
			SinceID:   input.SinceID,
			Limit:     limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]ActivityResponse, 0, len(items))
		for _, a := range items {
			res = append(res, activityResponse(a))
		}
		return &struct {
			Body []ActivityResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body struct {
			ActorID string `json:"actor_id"`
			Name    string `json:"name,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body struct {
			ID      string `json:"id"`
			ActorID string `json:"actor_id"`
			Name    string `json:"name,omitempty"`
			Key     string `json:"key"`
		} `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if input.Body.ActorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		raw := uuid.NewString()
		k := domain.APIKey{
			ID:        uuid.NewString(),
			ActorID:   input.Body.ActorID,
			Name:      input.Body.Name,
			KeyHash:   repo.HashAPIKey(raw),
			CreatedAt: e.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertAPIKey(ctx, nil, k); err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				ID      string `json:"id"`
				ActorID string `json:"actor_id"`
				Name    string `json:"name,omitempty"`
				Key     string `json:"key"`
			} `json:"body"`
		}{}
		out.Body.ID = k.ID
		out.Body.ActorID = k.ActorID
		out.Body.Name = k.Name
		out.Body.Key = raw
		return out, nil
	})
}
