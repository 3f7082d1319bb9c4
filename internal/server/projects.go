package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planup/internal/domain"
	"planup/internal/engine"
)

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Key         string `json:"key"`
			Name        string `json:"name,omitempty"`
			Description string `json:"description,omitempty"`
			Lead        string `json:"lead,omitempty"`
			OrgID       string `json:"org_id,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if input.Body.Key == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "key is required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.InitProject(ctx, engine.ProjectCreateOptions{
			Key:         input.Body.Key,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Lead:        input.Body.Lead,
			OrgID:       input.Body.OrgID,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      struct {
			Name        *string `json:"name,omitempty"`
			Description *string `json:"description,omitempty"`
			Lead        *string `json:"lead,omitempty"`
			Color       *string `json:"color,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Name != nil {
			if *input.Body.Name == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "name cannot be empty", nil)
			}
			p.Name = *input.Body.Name
		}
		if input.Body.Description != nil {
			p.Description = *input.Body.Description
		}
		if input.Body.Lead != nil {
			p.Lead = *input.Body.Lead
		}
		if input.Body.Color != nil {
			p.Color = *input.Body.Color
		}
		if err := e.Repo.UpdateProjectMeta(ctx, nil, p); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})
}

func registerWorkflows(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-workflow",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/workflows",
		Summary:       "Create workflow",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      struct {
			Name        string               `json:"name"`
			Description string               `json:"description,omitempty"`
			Statuses    []string             `json:"statuses"`
			Transitions []TransitionResponse `json:"transitions,omitempty"`
			MakeDefault bool                 `json:"make_default,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body WorkflowResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		var transitions []domain.WorkflowTransition
		for _, t := range input.Body.Transitions {
			transitions = append(transitions, domain.WorkflowTransition(t))
		}
		w, err := e.CreateWorkflow(ctx, engine.WorkflowCreateOptions{
			ProjectID:   p.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Statuses:    input.Body.Statuses,
			Transitions: transitions,
			MakeDefault: input.Body.MakeDefault,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkflowResponse `json:"body"`
		}{Body: workflowResponse(w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-workflows",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/workflows",
		Summary:     "List workflows",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []WorkflowResponse `json:"body"`
	}, error) {
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListWorkflows(ctx, p.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]WorkflowResponse, 0, len(items))
		for _, w := range items {
			res = append(res, workflowResponse(w))
		}
		return &struct {
			Body []WorkflowResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-default-workflow",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/workflows/{workflow_id}/default",
		Summary:     "Set default workflow",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		WorkflowID string `path:"workflow_id"`
	}) (*struct {
		Body WorkflowResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		p, err := e.ProjectByRef(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := e.SetDefaultWorkflow(ctx, p.ID, input.WorkflowID); err != nil {
			return nil, handleError(err)
		}
		w, err := e.Repo.GetWorkflow(ctx, input.WorkflowID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkflowResponse `json:"body"`
		}{Body: workflowResponse(w)}, nil
	})
}
