package server

import "planup/internal/domain"

// Responses mirror the domain structs; keeping them separate lets the
// wire shape drift from storage without touching the engine.

type ProjectResponse struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Lead        string `json:"lead,omitempty"`
	Color       string `json:"color,omitempty"`
	WorkflowID  string `json:"workflow_id,omitempty"`
	Progress    int    `json:"progress"`
	IssueCount  int    `json:"issue_count"`
	CreatedAt   string `json:"created_at"`
}

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse(p)
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

type TransitionResponse struct {
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Label      string `json:"label,omitempty"`
}

type WorkflowResponse struct {
	ID          string               `json:"id"`
	ProjectID   string               `json:"project_id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Statuses    []string             `json:"statuses"`
	Transitions []TransitionResponse `json:"transitions"`
	IsDefault   bool                 `json:"is_default"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

func workflowResponse(w domain.Workflow) WorkflowResponse {
	res := WorkflowResponse{
		ID:          w.ID,
		ProjectID:   w.ProjectID,
		Name:        w.Name,
		Description: w.Description,
		Statuses:    w.Statuses,
		Transitions: make([]TransitionResponse, 0, len(w.Transitions)),
		IsDefault:   w.IsDefault,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
	for _, t := range w.Transitions {
		res.Transitions = append(res.Transitions, TransitionResponse(t))
	}
	return res
}

type IssueResponse struct {
	ID             string   `json:"id"`
	Key            string   `json:"key"`
	ProjectID      string   `json:"project_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority,omitempty"`
	Type           string   `json:"type,omitempty"`
	AssigneeID     *string  `json:"assignee_id,omitempty"`
	ReporterID     *string  `json:"reporter_id,omitempty"`
	EpicID         *string  `json:"epic_id,omitempty"`
	SprintID       *string  `json:"sprint_id,omitempty"`
	EstimatedHours float64  `json:"estimated_hours"`
	LoggedHours    float64  `json:"logged_hours"`
	StoryPoints    int      `json:"story_points"`
	Labels         []string `json:"labels,omitempty"`
	DueDate        *string  `json:"due_date,omitempty"`
	Color          string   `json:"color,omitempty"`
	Lifecycle      string   `json:"lifecycle"`
	SubTaskIDs     []string `json:"sub_task_ids,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
	CompletedAt    *string  `json:"completed_at,omitempty"`
}

func issueResponse(i domain.Issue) IssueResponse {
	return IssueResponse(i)
}

func mapIssues(items []domain.Issue) []IssueResponse {
	res := make([]IssueResponse, 0, len(items))
	for _, i := range items {
		res = append(res, issueResponse(i))
	}
	return res
}

type EpicResponse struct {
	ID                   string   `json:"id"`
	Key                  string   `json:"key"`
	ProjectID            string   `json:"project_id"`
	Title                string   `json:"title"`
	Description          string   `json:"description,omitempty"`
	Status               string   `json:"status"`
	AssigneeID           *string  `json:"assignee_id,omitempty"`
	StoryPoints          int      `json:"story_points"`
	CompletedStoryPoints int      `json:"completed_story_points"`
	IssueIDs             []string `json:"issue_ids,omitempty"`
	Color                string   `json:"color,omitempty"`
	Lifecycle            string   `json:"lifecycle"`
	CreatedAt            string   `json:"created_at"`
	UpdatedAt            string   `json:"updated_at"`
}

func epicResponse(e domain.Epic) EpicResponse {
	return EpicResponse(e)
}

type SprintResponse struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Name      string   `json:"name"`
	Goal      string   `json:"goal,omitempty"`
	Status    string   `json:"status"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Capacity  int      `json:"capacity"`
	Velocity  int      `json:"velocity"`
	IssueIDs  []string `json:"issue_ids,omitempty"`
	CreatedAt string   `json:"created_at"`
}

func sprintResponse(s domain.Sprint) SprintResponse {
	return SprintResponse(s)
}

type LinkResponse struct {
	ID            string `json:"id"`
	SourceIssueID string `json:"source_issue_id"`
	TargetIssueID string `json:"target_issue_id"`
	LinkType      string `json:"link_type"`
	CreatedByID   string `json:"created_by_id"`
	CreatedAt     string `json:"created_at"`
}

func linkResponse(l domain.IssueLink) LinkResponse {
	return LinkResponse{
		ID:            l.ID,
		SourceIssueID: l.SourceIssueID,
		TargetIssueID: l.TargetIssueID,
		LinkType:      l.LinkType,
		CreatedByID:   l.CreatedByID,
		CreatedAt:     l.CreatedAt,
	}
}

type CommentResponse struct {
	ID        string  `json:"id"`
	IssueID   string  `json:"issue_id"`
	AuthorID  string  `json:"author_id"`
	Content   string  `json:"content"`
	Timestamp string  `json:"timestamp"`
	Edited    bool    `json:"edited"`
	EditedAt  *string `json:"edited_at,omitempty"`
	EditedBy  *string `json:"edited_by,omitempty"`
}

func commentResponse(c domain.Comment) CommentResponse {
	return CommentResponse(c)
}

type TimeLogResponse struct {
	ID          string  `json:"id"`
	IssueID     string  `json:"issue_id"`
	AuthorID    string  `json:"author_id"`
	Hours       float64 `json:"hours"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date"`
	CreatedAt   string  `json:"created_at"`
}

func timeLogResponse(t domain.TimeLog) TimeLogResponse {
	return TimeLogResponse(t)
}

type SubTaskResponse struct {
	ID            string  `json:"id"`
	ParentIssueID string  `json:"parent_issue_id"`
	Title         string  `json:"title"`
	Status        string  `json:"status"`
	Completed     bool    `json:"completed"`
	AssigneeID    *string `json:"assignee_id,omitempty"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

func subTaskResponse(st domain.SubTask) SubTaskResponse {
	return SubTaskResponse{
		ID:            st.ID,
		ParentIssueID: st.ParentIssueID,
		Title:         st.Title,
		Status:        st.Status,
		Completed:     st.Completed,
		AssigneeID:    st.AssigneeID,
		CreatedAt:     st.CreatedAt,
		UpdatedAt:     st.UpdatedAt,
	}
}

type AttachmentResponse struct {
	ID           string `json:"id"`
	IssueID      string `json:"issue_id"`
	Name         string `json:"name"`
	Size         string `json:"size,omitempty"`
	FileURL      string `json:"file_url,omitempty"`
	FileType     string `json:"file_type,omitempty"`
	UploadedByID string `json:"uploaded_by_id"`
	UploadedAt   string `json:"uploaded_at"`
}

func attachmentResponse(a domain.Attachment) AttachmentResponse {
	return AttachmentResponse(a)
}

type ActivityResponse struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	ProjectID string `json:"project_id,omitempty"`
	IssueID   string `json:"issue_id,omitempty"`
	SprintID  string `json:"sprint_id,omitempty"`
	ActorID   string `json:"actor_id"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

func activityResponse(a domain.Activity) ActivityResponse {
	return ActivityResponse(a)
}
