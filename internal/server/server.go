package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"planup/internal/engine"
	"planup/internal/engine/workflow"
	"planup/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"workflow does not allow moving from To Do to Done"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the PlanUp API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors surface as 400 bad_request.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("PlanUp API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerWorkflows(group, cfg.Engine)
	registerIssues(group, cfg.Engine)
	registerLinks(group, cfg.Engine)
	registerComments(group, cfg.Engine)
	registerTimeLogs(group, cfg.Engine)
	registerSubTasks(group, cfg.Engine)
	registerAttachments(group, cfg.Engine)
	registerEpics(group, cfg.Engine)
	registerSprints(group, cfg.Engine)
	registerActivities(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)

	startWebhookNotifier(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps domain errors onto the HTTP error envelope. Anything
// unrecognized is treated as a storage failure.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	var unknownStatus workflow.UnknownStatusError
	if errors.As(err, &unknownStatus) {
		return newAPIError(http.StatusUnprocessableEntity, "unknown_status", err.Error(), map[string]any{"status": unknownStatus.Status})
	}
	var invalidTransition workflow.InvalidTransitionError
	if errors.As(err, &invalidTransition) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{"from": invalidTransition.From, "to": invalidTransition.To})
	}
	var selfLink engine.SelfLinkError
	if errors.As(err, &selfLink) {
		return newAPIError(http.StatusBadRequest, "self_link", err.Error(), nil)
	}
	var dupLink engine.DuplicateLinkError
	if errors.As(err, &dupLink) {
		return newAPIError(http.StatusConflict, "duplicate_link", err.Error(), map[string]any{"link_type": dupLink.LinkType})
	}
	var cycle engine.CycleError
	if errors.As(err, &cycle) {
		return newAPIError(http.StatusConflict, "link_cycle", err.Error(), nil)
	}
	var unknownLink engine.UnknownLinkTypeError
	if errors.As(err, &unknownLink) {
		return newAPIError(http.StatusBadRequest, "unknown_link_type", err.Error(), map[string]any{"link_type": unknownLink.LinkType})
	}
	var duration engine.InvalidDurationError
	if errors.As(err, &duration) {
		return newAPIError(http.StatusBadRequest, "invalid_duration", err.Error(), nil)
	}
	var category engine.UnknownTimeCategoryError
	if errors.As(err, &category) {
		return newAPIError(http.StatusBadRequest, "unknown_time_category", err.Error(), map[string]any{"category": category.Category})
	}
	var cross engine.CrossProjectError
	if errors.As(err, &cross) {
		return newAPIError(http.StatusUnprocessableEntity, "cross_project_reference", err.Error(), map[string]any{"field": cross.Field})
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "required") || strings.Contains(lowered, "cannot be") ||
		strings.Contains(lowered, "precedes") || strings.Contains(lowered, "expected") ||
		strings.Contains(lowered, "duplicate") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusServiceUnavailable, "store_unavailable", "store unavailable", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusServiceUnavailable:
		return "store_unavailable"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func swaggerHTML(string) string {
	specURL := "/openapi.json"
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>PlanUp API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}
