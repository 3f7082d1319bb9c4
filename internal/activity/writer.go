package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Activity types recorded by mutations.
const (
	TypeProjectCreated  = "project_created"
	TypeWorkflowCreated = "workflow_created"
	TypeIssueCreated    = "issue_created"
	TypeIssueUpdated    = "issue_updated"
	TypeIssueMoved      = "issue_moved"
	TypeIssueDeleted    = "issue_deleted"
	TypeIssueLinked     = "issue_linked"
	TypeIssueUnlinked   = "issue_unlinked"
	TypeUserAssigned    = "user_assigned"
	TypeEpicCreated     = "epic_created"
	TypeSprintCreated   = "sprint_created"
	TypeSprintStarted   = "sprint_started"
	TypeSprintCompleted = "sprint_completed"
	TypeCommentAdded    = "comment_added"
	TypeCommentEdited   = "comment_edited"
	TypeCommentDeleted  = "comment_deleted"
	TypeTimeLogged      = "time_logged"
	TypeAttachmentAdded = "attachment_added"
)

// Writer appends activity records inside the mutation's transaction so
// the record commits or rolls back with the change it describes.
type Writer struct{}

// Ref names the entities an activity concerns. Empty fields store NULL.
type Ref struct {
	ProjectID string
	IssueID   string
	SprintID  string
}

func (Writer) Append(ctx context.Context, tx *sql.Tx, actType string, ref Ref, actorID, ts string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("activity payload: %w", err)
	}
	nullable := func(v string) any {
		if v == "" {
			return nil
		}
		return v
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO activities(type,project_id,issue_id,sprint_id,actor_id,ts,payload_json) VALUES (?,?,?,?,?,?,?)`,
		actType, nullable(ref.ProjectID), nullable(ref.IssueID), nullable(ref.SprintID), actorID, ts, string(body))
	if err != nil {
		return fmt.Errorf("append activity %s: %w", actType, err)
	}
	return nil
}
