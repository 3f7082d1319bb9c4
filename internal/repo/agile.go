package repo

import (
	"context"
	"database/sql"

	"planup/internal/domain"
)

// --- epics ---

const epicCols = `id,key,project_id,title,COALESCE(description,''),status,assignee_id,story_points,completed_story_points,COALESCE(color,''),lifecycle,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpic(row rowScanner) (domain.Epic, error) {
	var e domain.Epic
	var assignee sql.NullString
	err := row.Scan(&e.ID, &e.Key, &e.ProjectID, &e.Title, &e.Description, &e.Status, &assignee,
		&e.StoryPoints, &e.CompletedStoryPoints, &e.Color, &e.Lifecycle, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	e.AssigneeID = stringPtrFromNull(assignee)
	return e, nil
}

func (r Repo) InsertEpic(ctx context.Context, tx *sql.Tx, e domain.Epic) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO epics(id,key,project_id,title,description,status,assignee_id,story_points,completed_story_points,color,lifecycle,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Key, e.ProjectID, e.Title, nullable(e.Description), e.Status, nullableStringPtr(e.AssigneeID),
		e.StoryPoints, e.CompletedStoryPoints, nullable(e.Color), e.Lifecycle, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r Repo) GetEpic(ctx context.Context, id string) (domain.Epic, error) {
	return scanEpic(r.DB.QueryRowContext(ctx, `SELECT `+epicCols+` FROM epics WHERE id=?`, id))
}

func (r Repo) GetEpicTx(ctx context.Context, tx *sql.Tx, id string) (domain.Epic, error) {
	return scanEpic(tx.QueryRowContext(ctx, `SELECT `+epicCols+` FROM epics WHERE id=?`, id))
}

func (r Repo) GetEpicByKey(ctx context.Context, key string) (domain.Epic, error) {
	return scanEpic(r.DB.QueryRowContext(ctx, `SELECT `+epicCols+` FROM epics WHERE key=?`, key))
}

func (r Repo) ListEpics(ctx context.Context, projectID string) ([]domain.Epic, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+epicCols+` FROM epics WHERE project_id=? AND lifecycle='active' ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Epic
	for rows.Next() {
		e, err := scanEpic(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

// ActiveEpicsByProject returns a project's active epics, on tx when
// given.
func (r Repo) ActiveEpicsByProject(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.Epic, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT `+epicCols+` FROM epics WHERE project_id=? AND lifecycle='active' ORDER BY created_at`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Epic
	for rows.Next() {
		e, err := scanEpic(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

func (r Repo) UpdateEpicMeta(ctx context.Context, tx *sql.Tx, e domain.Epic) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE epics SET title=?, description=?, status=?, assignee_id=?, color=?, lifecycle=?, updated_at=? WHERE id=?`,
		e.Title, nullable(e.Description), e.Status, nullableStringPtr(e.AssigneeID), nullable(e.Color), e.Lifecycle, e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateEpicRollup writes only the derived story point totals.
func (r Repo) UpdateEpicRollup(ctx context.Context, tx *sql.Tx, id string, storyPoints, completed int, now string) error {
	_, err := r.on(tx).ExecContext(ctx, `UPDATE epics SET story_points=?, completed_story_points=?, updated_at=? WHERE id=?`, storyPoints, completed, now, id)
	return err
}

// --- sprints ---

const sprintCols = `id,project_id,name,COALESCE(goal,''),status,start_date,end_date,capacity,velocity,created_at`

func scanSprint(row rowScanner) (domain.Sprint, error) {
	var s domain.Sprint
	err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Goal, &s.Status, &s.StartDate, &s.EndDate, &s.Capacity, &s.Velocity, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertSprint(ctx context.Context, tx *sql.Tx, s domain.Sprint) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO sprints(id,project_id,name,goal,status,start_date,end_date,capacity,velocity,created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.ProjectID, s.Name, nullable(s.Goal), s.Status, s.StartDate, s.EndDate, s.Capacity, s.Velocity, s.CreatedAt)
	return err
}

func (r Repo) GetSprint(ctx context.Context, id string) (domain.Sprint, error) {
	return scanSprint(r.DB.QueryRowContext(ctx, `SELECT `+sprintCols+` FROM sprints WHERE id=?`, id))
}

func (r Repo) GetSprintTx(ctx context.Context, tx *sql.Tx, id string) (domain.Sprint, error) {
	return scanSprint(tx.QueryRowContext(ctx, `SELECT `+sprintCols+` FROM sprints WHERE id=?`, id))
}

func (r Repo) ListSprints(ctx context.Context, projectID string) ([]domain.Sprint, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+sprintCols+` FROM sprints WHERE project_id=? ORDER BY start_date`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Sprint
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

func (r Repo) UpdateSprintMeta(ctx context.Context, tx *sql.Tx, s domain.Sprint) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE sprints SET name=?, goal=?, status=?, start_date=?, end_date=?, capacity=? WHERE id=?`,
		s.Name, nullable(s.Goal), s.Status, s.StartDate, s.EndDate, s.Capacity, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSprintVelocity writes only the derived velocity.
func (r Repo) UpdateSprintVelocity(ctx context.Context, tx *sql.Tx, id string, velocity int) error {
	_, err := r.on(tx).ExecContext(ctx, `UPDATE sprints SET velocity=? WHERE id=?`, velocity, id)
	return err
}

// --- subtasks ---

const subtaskCols = `id,parent_issue_id,title,status,completed,assignee_id,lifecycle,created_at,updated_at`

func scanSubTask(row rowScanner) (domain.SubTask, error) {
	var st domain.SubTask
	var assignee sql.NullString
	err := row.Scan(&st.ID, &st.ParentIssueID, &st.Title, &st.Status, &st.Completed, &assignee, &st.Lifecycle, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return st, ErrNotFound
	}
	if err != nil {
		return st, err
	}
	st.AssigneeID = stringPtrFromNull(assignee)
	return st, nil
}

func (r Repo) InsertSubTask(ctx context.Context, tx *sql.Tx, st domain.SubTask) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO subtasks(id,parent_issue_id,title,status,completed,assignee_id,lifecycle,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		st.ID, st.ParentIssueID, st.Title, st.Status, st.Completed, nullableStringPtr(st.AssigneeID), st.Lifecycle, st.CreatedAt, st.UpdatedAt)
	return err
}

func (r Repo) GetSubTask(ctx context.Context, id string) (domain.SubTask, error) {
	return scanSubTask(r.DB.QueryRowContext(ctx, `SELECT `+subtaskCols+` FROM subtasks WHERE id=?`, id))
}

func (r Repo) ListSubTasks(ctx context.Context, parentIssueID string) ([]domain.SubTask, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+subtaskCols+` FROM subtasks WHERE parent_issue_id=? AND lifecycle='active' ORDER BY created_at`, parentIssueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.SubTask
	for rows.Next() {
		st, err := scanSubTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, st)
	}
	return res, nil
}

func (r Repo) UpdateSubTask(ctx context.Context, tx *sql.Tx, st domain.SubTask) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE subtasks SET title=?, status=?, completed=?, assignee_id=?, lifecycle=?, updated_at=? WHERE id=?`,
		st.Title, st.Status, st.Completed, nullableStringPtr(st.AssigneeID), st.Lifecycle, st.UpdatedAt, st.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteSubTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.on(tx).ExecContext(ctx, `DELETE FROM subtasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
