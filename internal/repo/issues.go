package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"planup/internal/domain"
)

const issueCols = `id,key,project_id,title,COALESCE(description,''),status,COALESCE(priority,''),COALESCE(type,''),assignee_id,reporter_id,epic_id,sprint_id,estimated_hours,logged_hours,story_points,labels_json,due_date,COALESCE(color,''),lifecycle,created_at,updated_at,completed_at`

type issueScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row issueScanner) (domain.Issue, error) {
	var i domain.Issue
	var assignee, reporter, epic, sprint, labels, dueDate, completedAt sql.NullString
	err := row.Scan(&i.ID, &i.Key, &i.ProjectID, &i.Title, &i.Description, &i.Status, &i.Priority, &i.Type,
		&assignee, &reporter, &epic, &sprint, &i.EstimatedHours, &i.LoggedHours, &i.StoryPoints,
		&labels, &dueDate, &i.Color, &i.Lifecycle, &i.CreatedAt, &i.UpdatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	if err != nil {
		return i, err
	}
	i.AssigneeID = stringPtrFromNull(assignee)
	i.ReporterID = stringPtrFromNull(reporter)
	i.EpicID = stringPtrFromNull(epic)
	i.SprintID = stringPtrFromNull(sprint)
	i.DueDate = stringPtrFromNull(dueDate)
	i.CompletedAt = stringPtrFromNull(completedAt)
	if labels.Valid && labels.String != "" {
		if err := json.Unmarshal([]byte(labels.String), &i.Labels); err != nil {
			return i, err
		}
	}
	return i, nil
}

func labelsJSON(labels []string) any {
	if len(labels) == 0 {
		return nil
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return nil
	}
	return string(b)
}

func (r Repo) InsertIssue(ctx context.Context, tx *sql.Tx, i domain.Issue) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO issues(id,key,project_id,title,description,status,priority,type,assignee_id,reporter_id,epic_id,sprint_id,estimated_hours,logged_hours,story_points,labels_json,due_date,color,lifecycle,created_at,updated_at,completed_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		i.ID, i.Key, i.ProjectID, i.Title, nullable(i.Description), i.Status, nullable(i.Priority), nullable(i.Type),
		nullableStringPtr(i.AssigneeID), nullableStringPtr(i.ReporterID), nullableStringPtr(i.EpicID), nullableStringPtr(i.SprintID),
		i.EstimatedHours, i.LoggedHours, i.StoryPoints, labelsJSON(i.Labels), nullableStringPtr(i.DueDate),
		nullable(i.Color), i.Lifecycle, i.CreatedAt, i.UpdatedAt, nullableStringPtr(i.CompletedAt))
	return err
}

func (r Repo) UpdateIssue(ctx context.Context, tx *sql.Tx, i domain.Issue) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE issues SET title=?, description=?, status=?, priority=?, type=?, assignee_id=?, reporter_id=?, epic_id=?, sprint_id=?, estimated_hours=?, logged_hours=?, story_points=?, labels_json=?, due_date=?, color=?, lifecycle=?, updated_at=?, completed_at=? WHERE id=?`,
		i.Title, nullable(i.Description), i.Status, nullable(i.Priority), nullable(i.Type),
		nullableStringPtr(i.AssigneeID), nullableStringPtr(i.ReporterID), nullableStringPtr(i.EpicID), nullableStringPtr(i.SprintID),
		i.EstimatedHours, i.LoggedHours, i.StoryPoints, labelsJSON(i.Labels), nullableStringPtr(i.DueDate),
		nullable(i.Color), i.Lifecycle, i.UpdatedAt, nullableStringPtr(i.CompletedAt), i.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetIssue(ctx context.Context, id string) (domain.Issue, error) {
	return scanIssue(r.DB.QueryRowContext(ctx, `SELECT `+issueCols+` FROM issues WHERE id=?`, id))
}

func (r Repo) GetIssueByKey(ctx context.Context, key string) (domain.Issue, error) {
	return scanIssue(r.DB.QueryRowContext(ctx, `SELECT `+issueCols+` FROM issues WHERE key=?`, key))
}

// GetIssueTx reads an issue inside an open transaction.
func (r Repo) GetIssueTx(ctx context.Context, tx *sql.Tx, id string) (domain.Issue, error) {
	return scanIssue(tx.QueryRowContext(ctx, `SELECT `+issueCols+` FROM issues WHERE id=?`, id))
}

type IssueFilter struct {
	ProjectID  string
	Status     string
	EpicID     string
	SprintID   string
	AssigneeID string
	Lifecycle  string
}

func (r Repo) ListIssues(ctx context.Context, f IssueFilter) ([]domain.Issue, error) {
	var where []string
	var args []any
	add := func(cond, v string) {
		if v != "" {
			where = append(where, cond)
			args = append(args, v)
		}
	}
	add("project_id=?", f.ProjectID)
	add("status=?", f.Status)
	add("epic_id=?", f.EpicID)
	add("sprint_id=?", f.SprintID)
	add("assignee_id=?", f.AssigneeID)
	add("lifecycle=?", f.Lifecycle)
	q := `SELECT ` + issueCols + ` FROM issues`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at`
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, nil
}

// IssuesByEpic returns the active issues that belong to an epic.
func (r Repo) IssuesByEpic(ctx context.Context, tx *sql.Tx, epicID string) ([]domain.Issue, error) {
	return r.queryIssues(ctx, tx, `SELECT `+issueCols+` FROM issues WHERE epic_id=? AND lifecycle='active' ORDER BY created_at`, epicID)
}

// IssuesBySprint returns the active issues assigned to a sprint.
func (r Repo) IssuesBySprint(ctx context.Context, tx *sql.Tx, sprintID string) ([]domain.Issue, error) {
	return r.queryIssues(ctx, tx, `SELECT `+issueCols+` FROM issues WHERE sprint_id=? AND lifecycle='active' ORDER BY created_at`, sprintID)
}

// IssuesByProject returns the active issues in a project.
func (r Repo) IssuesByProject(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.Issue, error) {
	return r.queryIssues(ctx, tx, `SELECT `+issueCols+` FROM issues WHERE project_id=? AND lifecycle='active' ORDER BY created_at`, projectID)
}

func (r Repo) queryIssues(ctx context.Context, tx *sql.Tx, q string, args ...any) ([]domain.Issue, error) {
	rows, err := r.on(tx).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, nil
}

func (r Repo) DeleteIssue(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM issues WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateIssue soft-deletes an issue that is still referenced elsewhere.
func (r Repo) DeactivateIssue(ctx context.Context, tx *sql.Tx, id, now string) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE issues SET lifecycle=?, updated_at=? WHERE id=?`, domain.LifecycleDeactivated, now, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
