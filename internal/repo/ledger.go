package repo

import (
	"context"
	"database/sql"

	"planup/internal/domain"
)

// --- comments ---

const commentCols = `id,issue_id,author_id,content,ts,edited,edited_at,edited_by`

func scanComment(row rowScanner) (domain.Comment, error) {
	var c domain.Comment
	var editedAt, editedBy sql.NullString
	err := row.Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.Content, &c.Timestamp, &c.Edited, &editedAt, &editedBy)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.EditedAt = stringPtrFromNull(editedAt)
	c.EditedBy = stringPtrFromNull(editedBy)
	return c, nil
}

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, c domain.Comment) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO comments(id,issue_id,author_id,content,ts,edited,edited_at,edited_by) VALUES (?,?,?,?,?,?,?,?)`,
		c.ID, c.IssueID, c.AuthorID, c.Content, c.Timestamp, c.Edited, nullableStringPtr(c.EditedAt), nullableStringPtr(c.EditedBy))
	return err
}

func (r Repo) GetComment(ctx context.Context, id string) (domain.Comment, error) {
	return scanComment(r.DB.QueryRowContext(ctx, `SELECT `+commentCols+` FROM comments WHERE id=?`, id))
}

func (r Repo) ListComments(ctx context.Context, issueID string) ([]domain.Comment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+commentCols+` FROM comments WHERE issue_id=? ORDER BY ts`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

// UpdateComment rewrites content in place and stamps the edit marker.
func (r Repo) UpdateComment(ctx context.Context, tx *sql.Tx, c domain.Comment) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE comments SET content=?, edited=?, edited_at=?, edited_by=? WHERE id=?`,
		c.Content, c.Edited, nullableStringPtr(c.EditedAt), nullableStringPtr(c.EditedBy), c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteComment(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM comments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- time logs ---

const timeLogCols = `id,issue_id,author_id,hours,COALESCE(category,''),COALESCE(description,''),log_date,created_at`

func scanTimeLog(row rowScanner) (domain.TimeLog, error) {
	var t domain.TimeLog
	err := row.Scan(&t.ID, &t.IssueID, &t.AuthorID, &t.Hours, &t.Category, &t.Description, &t.Date, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) InsertTimeLog(ctx context.Context, tx *sql.Tx, t domain.TimeLog) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO time_logs(id,issue_id,author_id,hours,category,description,log_date,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		t.ID, t.IssueID, t.AuthorID, t.Hours, nullable(t.Category), nullable(t.Description), t.Date, t.CreatedAt)
	return err
}

func (r Repo) ListTimeLogs(ctx context.Context, issueID string) ([]domain.TimeLog, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+timeLogCols+` FROM time_logs WHERE issue_id=? ORDER BY log_date, created_at`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimeLog
	for rows.Next() {
		t, err := scanTimeLog(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

// SumLoggedHours totals a single issue's time log entries.
func (r Repo) SumLoggedHours(ctx context.Context, tx *sql.Tx, issueID string) (float64, error) {
	var total float64
	err := r.on(tx).QueryRowContext(ctx, `SELECT COALESCE(SUM(hours),0) FROM time_logs WHERE issue_id=?`, issueID).Scan(&total)
	return total, err
}

// --- attachments ---

const attachmentCols = `id,issue_id,name,COALESCE(size,''),COALESCE(file_url,''),COALESCE(file_type,''),uploaded_by_id,uploaded_at`

func scanAttachment(row rowScanner) (domain.Attachment, error) {
	var a domain.Attachment
	err := row.Scan(&a.ID, &a.IssueID, &a.Name, &a.Size, &a.FileURL, &a.FileType, &a.UploadedByID, &a.UploadedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) InsertAttachment(ctx context.Context, tx *sql.Tx, a domain.Attachment) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO attachments(id,issue_id,name,size,file_url,file_type,uploaded_by_id,uploaded_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.IssueID, a.Name, nullable(a.Size), nullable(a.FileURL), nullable(a.FileType), a.UploadedByID, a.UploadedAt)
	return err
}

func (r Repo) GetAttachment(ctx context.Context, id string) (domain.Attachment, error) {
	return scanAttachment(r.DB.QueryRowContext(ctx, `SELECT `+attachmentCols+` FROM attachments WHERE id=?`, id))
}

func (r Repo) ListAttachments(ctx context.Context, issueID string) ([]domain.Attachment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+attachmentCols+` FROM attachments WHERE issue_id=? ORDER BY uploaded_at`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

func (r Repo) DeleteAttachment(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM attachments WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- activities (read side; the activity package writes) ---

const activityCols = `id,type,COALESCE(project_id,''),COALESCE(issue_id,''),COALESCE(sprint_id,''),actor_id,ts,payload_json`

func scanActivity(row rowScanner) (domain.Activity, error) {
	var a domain.Activity
	err := row.Scan(&a.ID, &a.Type, &a.ProjectID, &a.IssueID, &a.SprintID, &a.ActorID, &a.Timestamp, &a.Payload)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

type ActivityFilter struct {
	ProjectID string
	IssueID   string
	SinceID   int64
	Limit     int
}

func (r Repo) ListActivities(ctx context.Context, f ActivityFilter) ([]domain.Activity, error) {
	q := `SELECT ` + activityCols + ` FROM activities WHERE id>?`
	args := []any{f.SinceID}
	if f.ProjectID != "" {
		q += ` AND project_id=?`
		args = append(args, f.ProjectID)
	}
	if f.IssueID != "" {
		q += ` AND issue_id=?`
		args = append(args, f.IssueID)
	}
	q += ` ORDER BY id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}

// LastActivityID returns the newest activity id, 0 when the ledger is empty.
func (r Repo) LastActivityID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM activities`).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id.Int64, nil
}
