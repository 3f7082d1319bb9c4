package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"planup/internal/engine"
)

func registerComments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/issues/{issue_id}/comments",
		Summary:       "Add comment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
		Body    struct {
			Content string `json:"content"`
		} `json:"body"`
	}) (*struct {
		Body CommentResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.AddComment(ctx, i.ID, actorID, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommentResponse `json:"body"`
		}{Body: commentResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/issues/{issue_id}/comments",
		Summary:     "List comments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct {
		Body []CommentResponse `json:"body"`
	}, error) {
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListComments(ctx, i.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]CommentResponse, 0, len(items))
		for _, c := range items {
			res = append(res, commentResponse(c))
		}
		return &struct {
			Body []CommentResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-comment",
		Method:      http.MethodPatch,
		Path:        "/comments/{comment_id}",
		Summary:     "Edit comment",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CommentID string `path:"comment_id"`
		Body      struct {
			Content string `json:"content"`
		} `json:"body"`
	}) (*struct {
		Body CommentResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateComment(ctx, input.CommentID, actorID, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommentResponse `json:"body"`
		}{Body: commentResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-comment",
		Method:      http.MethodDelete,
		Path:        "/comments/{comment_id}",
		Summary:     "Delete comment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CommentID string `path:"comment_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteComment(ctx, input.CommentID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTimeLogs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "log-time",
		Method:        http.MethodPost,
		Path:          "/issues/{issue_id}/timelogs",
		Summary:       "Log time",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
		Body    struct {
			Hours       float64 `json:"hours"`
			Category    string  `json:"category,omitempty"`
			Description string  `json:"description,omitempty"`
			Date        string  `json:"date,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body TimeLogResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		t, err := e.LogTime(ctx, engine.TimeLogOptions{
			IssueID:     i.ID,
			AuthorID:    actorID,
			Hours:       input.Body.Hours,
			Category:    input.Body.Category,
			Description: input.Body.Description,
			Date:        input.Body.Date,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TimeLogResponse `json:"body"`
		}{Body: timeLogResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-timelogs",
		Method:      http.MethodGet,
		Path:        "/issues/{issue_id}/timelogs",
		Summary:     "List time logs",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct {
		Body struct {
			Total float64           `json:"total_hours"`
			Items []TimeLogResponse `json:"items"`
		} `json:"body"`
	}, error) {
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListTimeLogs(ctx, i.ID)
		if err != nil {
			return nil, handleError(err)
		}
		total, err := e.TotalLoggedHours(ctx, i.ID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Total float64           `json:"total_hours"`
				Items []TimeLogResponse `json:"items"`
			} `json:"body"`
		}{}
		out.Body.Total = total
		out.Body.Items = make([]TimeLogResponse, 0, len(items))
		for _, t := range items {
			out.Body.Items = append(out.Body.Items, timeLogResponse(t))
		}
		return out, nil
	})
}

func registerSubTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-subtask",
		Method:        http.MethodPost,
		Path:          "/issues/{issue_id}/subtasks",
		Summary:       "Create subtask",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
		Body    struct {
			Title      string `json:"title"`
			AssigneeID string `json:"assignee_id,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body SubTaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		st, err := e.CreateSubTask(ctx, engine.SubTaskCreateOptions{
			ParentIssueID: i.ID,
			Title:         input.Body.Title,
			AssigneeID:    input.Body.AssigneeID,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubTaskResponse `json:"body"`
		}{Body: subTaskResponse(st)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-subtasks",
		Method:      http.MethodGet,
		Path:        "/issues/{issue_id}/subtasks",
		Summary:     "List subtasks",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct {
		Body []SubTaskResponse `json:"body"`
	}, error) {
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListSubTasks(ctx, i.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]SubTaskResponse, 0, len(items))
		for _, st := range items {
			res = append(res, subTaskResponse(st))
		}
		return &struct {
			Body []SubTaskResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-subtask",
		Method:      http.MethodPatch,
		Path:        "/subtasks/{subtask_id}",
		Summary:     "Update subtask",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SubTaskID string `path:"subtask_id"`
		Body      struct {
			Title      *string `json:"title,omitempty"`
			Completed  *bool   `json:"completed,omitempty"`
			AssigneeID *string `json:"assignee_id,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body SubTaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st, err := e.UpdateSubTask(ctx, input.SubTaskID, engine.SubTaskUpdateOptions{
			Title:      input.Body.Title,
			Completed:  input.Body.Completed,
			AssigneeID: input.Body.AssigneeID,
			ActorID:    actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubTaskResponse `json:"body"`
		}{Body: subTaskResponse(st)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-subtask",
		Method:      http.MethodDelete,
		Path:        "/subtasks/{subtask_id}",
		Summary:     "Delete subtask",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SubTaskID string `path:"subtask_id"`
	}) (*struct{}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteSubTask(ctx, input.SubTaskID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAttachments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-attachment",
		Method:        http.MethodPost,
		Path:          "/issues/{issue_id}/attachments",
		Summary:       "Add attachment",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
		Body    struct {
			Name     string `json:"name"`
			Size     string `json:"size,omitempty"`
			FileURL  string `json:"file_url,omitempty"`
			FileType string `json:"file_type,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body AttachmentResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		a, err := e.AddAttachment(ctx, engine.AttachmentOptions{
			IssueID:  i.ID,
			Name:     input.Body.Name,
			Size:     input.Body.Size,
			FileURL:  input.Body.FileURL,
			FileType: input.Body.FileType,
			ActorID:  actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AttachmentResponse `json:"body"`
		}{Body: attachmentResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-attachments",
		Method:      http.MethodGet,
		Path:        "/issues/{issue_id}/attachments",
		Summary:     "List attachments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		IssueID string `path:"issue_id"`
	}) (*struct {
		Body []AttachmentResponse `json:"body"`
	}, error) {
		i, err := e.IssueByRef(ctx, input.IssueID)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListAttachments(ctx, i.ID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]AttachmentResponse, 0, len(items))
		for _, a := range items {
			res = append(res, attachmentResponse(a))
		}
		return &struct {
			Body []AttachmentResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-attachment",
		Method:      http.MethodDelete,
		Path:        "/attachments/{attachment_id}",
		Summary:     "Delete attachment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AttachmentID string `path:"attachment_id"`
	}) (*struct{}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAttachment(ctx, input.AttachmentID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
