package domain

// Lifecycle states. A string state rather than a boolean so future states
// (archived, ...) don't require replumbing every query filter.
const (
	LifecycleActive      = "active"
	LifecycleDeactivated = "deactivated"
)

// Link types and their inverse semantics.
const (
	LinkBlocks         = "blocks"
	LinkIsBlockedBy    = "is-blocked-by"
	LinkDuplicates     = "duplicates"
	LinkIsDuplicatedBy = "is-duplicated-by"
	LinkRelatesTo      = "relates-to"
	LinkParentOf       = "parent-of"
	LinkChildOf        = "child-of"
)

var inverseLinkType = map[string]string{
	LinkBlocks:         LinkIsBlockedBy,
	LinkIsBlockedBy:    LinkBlocks,
	LinkDuplicates:     LinkIsDuplicatedBy,
	LinkIsDuplicatedBy: LinkDuplicates,
	LinkParentOf:       LinkChildOf,
	LinkChildOf:        LinkParentOf,
	LinkRelatesTo:      LinkRelatesTo,
}

// InverseLinkType returns the inverse of a link type and whether the type
// is known. relates-to is self-inverse.
func InverseLinkType(t string) (string, bool) {
	inv, ok := inverseLinkType[t]
	return inv, ok
}

// CanonicalLinkType maps reverse-direction types (is-blocked-by,
// is-duplicated-by, child-of) to the stored direction, reporting whether
// the endpoints must be swapped.
func CanonicalLinkType(t string) (string, bool) {
	switch t {
	case LinkIsBlockedBy, LinkIsDuplicatedBy, LinkChildOf:
		return inverseLinkType[t], true
	default:
		return t, false
	}
}

type Project struct {
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
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type WorkflowTransition struct {
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
	Label      string `json:"label,omitempty"`
}

type Workflow struct {
	ID          string               `json:"id"`
	ProjectID   string               `json:"project_id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Statuses    []string             `json:"statuses"`
	Transitions []WorkflowTransition `json:"transitions"`
	IsDefault   bool                 `json:"is_default"`
	CreatedAt   string               `json:"created_at" format:"date-time"`
	UpdatedAt   string               `json:"updated_at" format:"date-time"`
}

type Issue struct {
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
	DueDate        *string  `json:"due_date,omitempty" format:"date-time"`
	Color          string   `json:"color,omitempty"`
	Lifecycle      string   `json:"lifecycle" enum:"active,deactivated"`
	SubTaskIDs     []string `json:"sub_task_ids,omitempty"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
	CompletedAt    *string  `json:"completed_at,omitempty" format:"date-time"`
}

type Epic struct {
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
	Lifecycle            string   `json:"lifecycle" enum:"active,deactivated"`
	CreatedAt            string   `json:"created_at" format:"date-time"`
	UpdatedAt            string   `json:"updated_at" format:"date-time"`
}

// Sprint statuses.
const (
	SprintPlanned   = "planned"
	SprintActive    = "active"
	SprintCompleted = "completed"
)

type Sprint struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	Name      string   `json:"name"`
	Goal      string   `json:"goal,omitempty"`
	Status    string   `json:"status" enum:"planned,active,completed"`
	StartDate string   `json:"start_date" format:"date-time"`
	EndDate   string   `json:"end_date" format:"date-time"`
	Capacity  int      `json:"capacity"`
	Velocity  int      `json:"velocity"`
	IssueIDs  []string `json:"issue_ids,omitempty"`
	CreatedAt string   `json:"created_at" format:"date-time"`
}

type IssueLink struct {
	ID            string `json:"id"`
	SourceIssueID string `json:"source_issue_id"`
	TargetIssueID string `json:"target_issue_id"`
	LinkType      string `json:"link_type" enum:"blocks,is-blocked-by,duplicates,is-duplicated-by,relates-to,parent-of,child-of"`
	CreatedByID   string `json:"created_by_id"`
	Lifecycle     string `json:"lifecycle" enum:"active,deactivated"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type SubTask struct {
	ID            string  `json:"id"`
	ParentIssueID string  `json:"parent_issue_id"`
	Title         string  `json:"title"`
	Status        string  `json:"status"`
	Completed     bool    `json:"completed"`
	AssigneeID    *string `json:"assignee_id,omitempty"`
	Lifecycle     string  `json:"lifecycle" enum:"active,deactivated"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

type Comment struct {
	ID        string  `json:"id"`
	IssueID   string  `json:"issue_id"`
	AuthorID  string  `json:"author_id"`
	Content   string  `json:"content"`
	Timestamp string  `json:"timestamp" format:"date-time"`
	Edited    bool    `json:"edited"`
	EditedAt  *string `json:"edited_at,omitempty" format:"date-time"`
	EditedBy  *string `json:"edited_by,omitempty"`
}

type TimeLog struct {
	ID          string  `json:"id"`
	IssueID     string  `json:"issue_id"`
	AuthorID    string  `json:"author_id"`
	Hours       float64 `json:"hours"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Date        string  `json:"date" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type Attachment struct {
	ID           string `json:"id"`
	IssueID      string `json:"issue_id"`
	Name         string `json:"name"`
	Size         string `json:"size,omitempty"`
	FileURL      string `json:"file_url,omitempty"`
	FileType     string `json:"file_type,omitempty"`
	UploadedByID string `json:"uploaded_by_id"`
	UploadedAt   string `json:"uploaded_at" format:"date-time"`
}

type Activity struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	ProjectID string `json:"project_id,omitempty"`
	IssueID   string `json:"issue_id,omitempty"`
	SprintID  string `json:"sprint_id,omitempty"`
	ActorID   string `json:"actor_id"`
	Timestamp string `json:"timestamp" format:"date-time"`
	Payload   string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
