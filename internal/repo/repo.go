package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"planup/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func stringPtrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// execer lets queries run against either the pool or an open transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) on(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return r.DB
}

// --- orgs ---

func (r Repo) EnsureOrg(ctx context.Context, tx *sql.Tx, id, name, now string) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO orgs(id,name,created_at) VALUES (?,?,?) ON CONFLICT(id) DO NOTHING`, id, name, now)
	return err
}

// --- projects ---

const projectCols = `id,org_id,key,name,COALESCE(description,''),COALESCE(lead,''),COALESCE(color,''),COALESCE(workflow_id,''),progress,issue_count,created_at`

func scanProject(row *sql.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.OrgID, &p.Key, &p.Name, &p.Description, &p.Lead, &p.Color, &p.WorkflowID, &p.Progress, &p.IssueCount, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO projects(id,org_id,key,name,description,lead,color,workflow_id,progress,issue_count,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.OrgID, p.Key, p.Name, nullable(p.Description), nullable(p.Lead), nullable(p.Color), nullable(p.WorkflowID), p.Progress, p.IssueCount, p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE id=?`, id))
}

func (r Repo) GetProjectByKey(ctx context.Context, key string) (domain.Project, error) {
	return scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectCols+` FROM projects WHERE key=?`, key))
}

func (r Repo) SingleProject(ctx context.Context) (domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id FROM projects`)
	if err != nil {
		return domain.Project{}, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.Project{}, err
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return domain.Project{}, ErrNotFound
	}
	if len(ids) > 1 {
		return domain.Project{}, fmt.Errorf("multiple projects exist; specify --project")
	}
	return r.GetProject(ctx, ids[0])
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectCols+` FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Key, &p.Name, &p.Description, &p.Lead, &p.Color, &p.WorkflowID, &p.Progress, &p.IssueCount, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

func (r Repo) UpdateProjectMeta(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE projects SET name=?, description=?, lead=?, color=?, workflow_id=? WHERE id=?`,
		p.Name, nullable(p.Description), nullable(p.Lead), nullable(p.Color), nullable(p.WorkflowID), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProjectRollup writes only the derived fields.
func (r Repo) UpdateProjectRollup(ctx context.Context, tx *sql.Tx, id string, progress, issueCount int) error {
	_, err := r.on(tx).ExecContext(ctx, `UPDATE projects SET progress=?, issue_count=? WHERE id=?`, progress, issueCount, id)
	return err
}

// NextIssueSeq claims the next issue key sequence number for a project.
// Call under the project's keyed lock inside the insert transaction.
func (r Repo) NextIssueSeq(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var seq int
	err := tx.QueryRowContext(ctx, `SELECT next_issue_seq FROM projects WHERE id=?`, projectID).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET next_issue_seq=? WHERE id=?`, seq+1, projectID); err != nil {
		return 0, err
	}
	return seq, nil
}

// NextEpicSeq claims the next epic key sequence number for a project.
func (r Repo) NextEpicSeq(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var seq int
	err := tx.QueryRowContext(ctx, `SELECT next_epic_seq FROM projects WHERE id=?`, projectID).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE projects SET next_epic_seq=? WHERE id=?`, seq+1, projectID); err != nil {
		return 0, err
	}
	return seq, nil
}

func (r Repo) DeleteProject(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- workflows ---

const workflowCols = `id,project_id,name,COALESCE(description,''),statuses_json,transitions_json,is_default,created_at,updated_at`

func decodeWorkflow(w *domain.Workflow, statusesJSON, transitionsJSON string) error {
	if err := json.Unmarshal([]byte(statusesJSON), &w.Statuses); err != nil {
		return fmt.Errorf("workflow %s statuses: %w", w.ID, err)
	}
	if err := json.Unmarshal([]byte(transitionsJSON), &w.Transitions); err != nil {
		return fmt.Errorf("workflow %s transitions: %w", w.ID, err)
	}
	return nil
}

func (r Repo) InsertWorkflow(ctx context.Context, tx *sql.Tx, w domain.Workflow) error {
	statuses, err := json.Marshal(w.Statuses)
	if err != nil {
		return err
	}
	transitions, err := json.Marshal(w.Transitions)
	if err != nil {
		return err
	}
	if w.Transitions == nil {
		transitions = []byte("[]")
	}
	_, err = r.on(tx).ExecContext(ctx, `INSERT INTO workflows(id,project_id,name,description,statuses_json,transitions_json,is_default,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		w.ID, w.ProjectID, w.Name, nullable(w.Description), string(statuses), string(transitions), w.IsDefault, w.CreatedAt, w.UpdatedAt)
	return err
}

func (r Repo) GetWorkflow(ctx context.Context, id string) (domain.Workflow, error) {
	var w domain.Workflow
	var statuses, transitions string
	err := r.DB.QueryRowContext(ctx, `SELECT `+workflowCols+` FROM workflows WHERE id=?`, id).
		Scan(&w.ID, &w.ProjectID, &w.Name, &w.Description, &statuses, &transitions, &w.IsDefault, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	return w, decodeWorkflow(&w, statuses, transitions)
}

// DefaultWorkflow returns the project's default workflow.
func (r Repo) DefaultWorkflow(ctx context.Context, projectID string) (domain.Workflow, error) {
	var w domain.Workflow
	var statuses, transitions string
	err := r.DB.QueryRowContext(ctx, `SELECT `+workflowCols+` FROM workflows WHERE project_id=? AND is_default=1 LIMIT 1`, projectID).
		Scan(&w.ID, &w.ProjectID, &w.Name, &w.Description, &statuses, &transitions, &w.IsDefault, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	if err != nil {
		return w, err
	}
	return w, decodeWorkflow(&w, statuses, transitions)
}

func (r Repo) ListWorkflows(ctx context.Context, projectID string) ([]domain.Workflow, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+workflowCols+` FROM workflows WHERE project_id=? ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workflow
	for rows.Next() {
		var w domain.Workflow
		var statuses, transitions string
		if err := rows.Scan(&w.ID, &w.ProjectID, &w.Name, &w.Description, &statuses, &transitions, &w.IsDefault, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		if err := decodeWorkflow(&w, statuses, transitions); err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, nil
}

// ClearDefaultWorkflow drops the default flag from all of a project's
// workflows; used before promoting another one so exactly one default
// exists at a time.
func (r Repo) ClearDefaultWorkflow(ctx context.Context, tx *sql.Tx, projectID string) error {
	_, err := r.on(tx).ExecContext(ctx, `UPDATE workflows SET is_default=0 WHERE project_id=?`, projectID)
	return err
}

func (r Repo) SetDefaultWorkflow(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE workflows SET is_default=1 WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
