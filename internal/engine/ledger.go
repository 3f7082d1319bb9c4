package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"planup/internal/activity"
	"planup/internal/domain"
)

// --- comments ---

func (e Engine) AddComment(ctx context.Context, issueID, authorID, content string) (domain.Comment, error) {
	if content == "" {
		return domain.Comment{}, errors.New("comment content is required")
	}
	i, err := e.Repo.GetIssue(ctx, issueID)
	if err != nil {
		return domain.Comment{}, err
	}

	now := e.ts()
	c := domain.Comment{
		ID:        uuid.NewString(),
		IssueID:   i.ID,
		AuthorID:  authorID,
		Content:   content,
		Timestamp: now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Comment{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertComment(ctx, tx, c); err != nil {
		return domain.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	if err := e.Activity.Append(ctx, tx, activity.TypeCommentAdded, activity.Ref{ProjectID: i.ProjectID, IssueID: i.ID}, authorID, now, map[string]any{"comment_id": c.ID}); err != nil {
		return domain.Comment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

// UpdateComment edits content in place and marks the comment edited.
func (e Engine) UpdateComment(ctx context.Context, commentID, editorID, content string) (domain.Comment, error) {
	if content == "" {
		return domain.Comment{}, errors.New("comment content is required")
	}
	c, err := e.Repo.GetComment(ctx, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	i, err := e.Repo.GetIssue(ctx, c.IssueID)
	if err != nil {
		return domain.Comment{}, err
	}

	now := e.ts()
	c.Content = content
	c.Edited = true
	c.EditedAt = &now
	c.EditedBy = &editorID

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Comment{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateComment(ctx, tx, c); err != nil {
		return domain.Comment{}, err
	}
	if err := e.Activity.Append(ctx, tx, activity.TypeCommentEdited, activity.Ref{ProjectID: i.ProjectID, IssueID: i.ID}, editorID, now, map[string]any{"comment_id": c.ID}); err != nil {
		return domain.Comment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

func (e Engine) DeleteComment(ctx context.Context, commentID, actorID string) error {
	c, err := e.Repo.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	i, err := e.Repo.GetIssue(ctx, c.IssueID)
	if err != nil {
		return err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeleteComment(ctx, tx, commentID); err != nil {
		return err
	}
	if err := e.Activity.Append(ctx, tx, activity.TypeCommentDeleted, activity.Ref{ProjectID: i.ProjectID, IssueID: i.ID}, actorID, e.ts(), map[string]any{"comment_id": commentID}); err != nil {
		return err
	}
	return tx.Commit()
}

// --- time logs ---

type TimeLogOptions struct {
	IssueID     string
	AuthorID    string
	Hours       float64
	Category    string
	Description string
	Date        string
}

// LogTime appends a work entry and bumps the issue's denormalized
// logged_hours in the same transaction.
func (e Engine) LogTime(ctx context.Context, opts TimeLogOptions) (domain.TimeLog, error) {
	if opts.Hours <= 0 {
		return domain.TimeLog{}, InvalidDurationError{Hours: opts.Hours}
	}
	if e.Config != nil && !e.Config.TimeCategoryAllowed(opts.Category) {
		return domain.TimeLog{}, UnknownTimeCategoryError{Category: opts.Category}
	}

	unlock := e.locks.lock(issueLockKey(opts.IssueID))
	defer unlock()

	i, err := e.Repo.GetIssue(ctx, opts.IssueID)
	if err != nil {
		return domain.TimeLog{}, err
	}

	now := e.ts()
	t := domain.TimeLog{
		ID:          uuid.NewString(),
		IssueID:     i.ID,
		AuthorID:    opts.AuthorID,
		Hours:       opts.Hours,
		Category:    opts.Category,
		Description: opts.Description,
		Date:        opts.Date,
		CreatedAt:   now,
	}
	if t.Date == "" {
		t.Date = now
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TimeLog{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertTimeLog(ctx, tx, t); err != nil {
		return domain.TimeLog{}, fmt.Errorf("insert time log: %w", err)
	}
	i.LoggedHours += t.Hours
	i.UpdatedAt = now
	if err := e.Repo.UpdateIssue(ctx, tx, i); err != nil {
		return domain.TimeLog{}, err
	}
	payload := map[string]any{"hours": t.Hours, "category": t.Category, "total": i.LoggedHours}
	if err := e.Activity.Append(ctx, tx, activity.TypeTimeLogged, activity.Ref{ProjectID: i.ProjectID, IssueID: i.ID}, opts.AuthorID, now, payload); err != nil {
		return domain.TimeLog{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TimeLog{}, err
	}
	return t, nil
}

// TotalLoggedHours recomputes the total from the ledger rather than
// trusting the denormalized column.
func (e Engine) TotalLoggedHours(ctx context.Context, issueID string) (float64, error) {
	if _, err := e.Repo.GetIssue(ctx, issueID); err != nil {
		return 0, err
	}
	return e.Repo.SumLoggedHours(ctx, nil, issueID)
}

// --- attachments ---

type AttachmentOptions struct {
	IssueID  string
	Name     string
	Size     string
	FileURL  string
	FileType string
	ActorID  string
}

func (e Engine) AddAttachment(ctx context.Context, opts AttachmentOptions) (domain.Attachment, error) {
	if opts.Name == "" {
		return domain.Attachment{}, errors.New("attachment name is required")
	}
	i, err := e.Repo.GetIssue(ctx, opts.IssueID)
	if err != nil {
		return domain.Attachment{}, err
	}

	now := e.ts()
	a := domain.Attachment{
		ID:           uuid.NewString(),
		IssueID:      i.ID,
		Name:         opts.Name,
		Size:         opts.Size,
		FileURL:      opts.FileURL,
		FileType:     opts.FileType,
		UploadedByID: opts.ActorID,
		UploadedAt:   now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Attachment{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertAttachment(ctx, tx, a); err != nil {
		return domain.Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	if err := e.Activity.Append(ctx, tx, activity.TypeAttachmentAdded, activity.Ref{ProjectID: i.ProjectID, IssueID: i.ID}, opts.ActorID, now, map[string]any{"name": a.Name}); err != nil {
		return domain.Attachment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Attachment{}, err
	}
	return a, nil
}

func (e Engine) DeleteAttachment(ctx context.Context, attachmentID string) error {
	if _, err := e.Repo.GetAttachment(ctx, attachmentID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteAttachment(ctx, tx, attachmentID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- subtasks ---

type SubTaskCreateOptions struct {
	ParentIssueID string
	Title         string
	AssigneeID    string
	ActorID       string
}

func (e Engine) CreateSubTask(ctx context.Context, opts SubTaskCreateOptions) (domain.SubTask, error) {
	if opts.Title == "" {
		return domain.SubTask{}, errors.New("title is required")
	}
	if _, err := e.Repo.GetIssue(ctx, opts.ParentIssueID); err != nil {
		return domain.SubTask{}, err
	}

	now := e.ts()
	st := domain.SubTask{
		ID:            uuid.NewString(),
		ParentIssueID: opts.ParentIssueID,
		Title:         opts.Title,
		Status:        "open",
		Lifecycle:     domain.LifecycleActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if opts.AssigneeID != "" {
		st.AssigneeID = &opts.AssigneeID
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.SubTask{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertSubTask(ctx, tx, st); err != nil {
		return domain.SubTask{}, fmt.Errorf("insert subtask: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.SubTask{}, err
	}
	return st, nil
}

type SubTaskUpdateOptions struct {
	Title      *string
	Completed  *bool
	AssigneeID *string
	ActorID    string
}

func (e Engine) UpdateSubTask(ctx context.Context, subTaskID string, opts SubTaskUpdateOptions) (domain.SubTask, error) {
	st, err := e.Repo.GetSubTask(ctx, subTaskID)
	if err != nil {
		return domain.SubTask{}, err
	}
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.SubTask{}, errors.New("title cannot be empty")
		}
		st.Title = *opts.Title
	}
	if opts.Completed != nil {
		st.Completed = *opts.Completed
		if st.Completed {
			st.Status = "done"
		} else {
			st.Status = "open"
		}
	}
	if opts.AssigneeID != nil {
		if *opts.AssigneeID == "" {
			st.AssigneeID = nil
		} else {
			v := *opts.AssigneeID
			st.AssigneeID = &v
		}
	}
	st.UpdatedAt = e.ts()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.SubTask{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateSubTask(ctx, tx, st); err != nil {
		return domain.SubTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.SubTask{}, err
	}
	return st, nil
}

func (e Engine) DeleteSubTask(ctx context.Context, subTaskID string) error {
	if _, err := e.Repo.GetSubTask(ctx, subTaskID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteSubTask(ctx, tx, subTaskID); err != nil {
		return err
	}
	return tx.Commit()
}
