package planupsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal PlanUp HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Issue represents the API issue model (partial).
type Issue struct {
	ID          string   `json:"id"`
	Key         string   `json:"key"`
	ProjectID   string   `json:"project_id"`
	Title       string   `json:"title"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority,omitempty"`
	Type        string   `json:"type,omitempty"`
	AssigneeID  *string  `json:"assignee_id,omitempty"`
	EpicID      *string  `json:"epic_id,omitempty"`
	SprintID    *string  `json:"sprint_id,omitempty"`
	StoryPoints int      `json:"story_points"`
	LoggedHours float64  `json:"logged_hours"`
	Labels      []string `json:"labels,omitempty"`
	CompletedAt *string  `json:"completed_at,omitempty"`
}

// IssueCreate is the create-issue request body.
type IssueCreate struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Type        string   `json:"type,omitempty"`
	AssigneeID  string   `json:"assignee_id,omitempty"`
	EpicID      string   `json:"epic_id,omitempty"`
	SprintID    string   `json:"sprint_id,omitempty"`
	StoryPoints int      `json:"story_points,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// Link represents a typed relation between two issues.
type Link struct {
	ID            string `json:"id"`
	SourceIssueID string `json:"source_issue_id"`
	TargetIssueID string `json:"target_issue_id"`
	LinkType      string `json:"link_type"`
}

// TimeLog represents a work entry on an issue.
type TimeLog struct {
	ID       string  `json:"id"`
	IssueID  string  `json:"issue_id"`
	AuthorID string  `json:"author_id"`
	Hours    float64 `json:"hours"`
	Category string  `json:"category,omitempty"`
	Date     string  `json:"date"`
}

// Activity represents an activity log record.
type Activity struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	ProjectID string `json:"project_id,omitempty"`
	IssueID   string `json:"issue_id,omitempty"`
	ActorID   string `json:"actor_id"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload_json"`
}

// Sprint represents the API sprint model (partial).
type Sprint struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Capacity  int    `json:"capacity"`
	Velocity  int    `json:"velocity"`
}

// APIError wraps non-2xx responses. Code carries the machine-readable
// error code from the response envelope when one was present.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateIssue creates an issue in the client's project.
func (c *Client) CreateIssue(ctx context.Context, in IssueCreate) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodPost, c.projectPath("issues"), in, &resp)
	return resp, err
}

// GetIssue fetches an issue by id or key.
func (c *Client) GetIssue(ctx context.Context, ref string) (Issue, error) {
	var resp Issue
	err := c.do(ctx, http.MethodGet, "v1/issues/"+url.PathEscape(ref), nil, &resp)
	return resp, err
}

// ListIssues lists the project's issues, optionally filtered by status.
func (c *Client) ListIssues(ctx context.Context, status string) ([]Issue, error) {
	endpoint := c.projectPath("issues")
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Issue
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// MoveIssue moves an issue to another status.
func (c *Client) MoveIssue(ctx context.Context, ref, status string) (Issue, error) {
	var resp Issue
	endpoint := fmt.Sprintf("v1/issues/%s/move", url.PathEscape(ref))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"status": status}, &resp)
	return resp, err
}

// LinkIssues links source to target with the given type.
func (c *Client) LinkIssues(ctx context.Context, sourceRef, targetRef, linkType string) (Link, error) {
	var resp Link
	endpoint := fmt.Sprintf("v1/issues/%s/links", url.PathEscape(sourceRef))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{
		"target_issue_id": targetRef,
		"link_type":       linkType,
	}, &resp)
	return resp, err
}

// ListLinks returns an issue's links, inverse readings included.
func (c *Client) ListLinks(ctx context.Context, ref string) ([]Link, error) {
	var resp []Link
	endpoint := fmt.Sprintf("v1/issues/%s/links", url.PathEscape(ref))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// LogTime appends a work entry to an issue's time ledger.
func (c *Client) LogTime(ctx context.Context, ref string, hours float64, category, description string) (TimeLog, error) {
	var resp TimeLog
	endpoint := fmt.Sprintf("v1/issues/%s/timelogs", url.PathEscape(ref))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{
		"hours":       hours,
		"category":    category,
		"description": description,
	}, &resp)
	return resp, err
}

// TimeLogs returns an issue's work entries and their total.
func (c *Client) TimeLogs(ctx context.Context, ref string) (float64, []TimeLog, error) {
	var resp struct {
		TotalHours float64   `json:"total_hours"`
		Items      []TimeLog `json:"items"`
	}
	endpoint := fmt.Sprintf("v1/issues/%s/timelogs", url.PathEscape(ref))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.TotalHours, resp.Items, err
}

// Activities returns activity records after sinceID, oldest first.
func (c *Client) Activities(ctx context.Context, sinceID int64, limit int) ([]Activity, error) {
	endpoint := "v1/activities?project_id=" + url.QueryEscape(c.ProjectID)
	if sinceID > 0 {
		endpoint += fmt.Sprintf("&since_id=%d", sinceID)
	}
	if limit > 0 {
		endpoint += fmt.Sprintf("&limit=%d", limit)
	}
	var resp []Activity
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// StartSprint starts a planned sprint.
func (c *Client) StartSprint(ctx context.Context, sprintID string) (Sprint, error) {
	var resp Sprint
	endpoint := fmt.Sprintf("v1/sprints/%s/start", url.PathEscape(sprintID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// CompleteSprint completes an active sprint.
func (c *Client) CompleteSprint(ctx context.Context, sprintID string) (Sprint, error) {
	var resp Sprint
	endpoint := fmt.Sprintf("v1/sprints/%s/complete", url.PathEscape(sprintID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v1/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
