package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"planup/internal/activity"
	"planup/internal/config"
	"planup/internal/domain"
	"planup/internal/engine/workflow"
	"planup/internal/repo"
)

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Activity activity.Writer
	Config   *config.Config
	Now      func() time.Time

	locks *keyedLocks
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Config: cfg,
		Now:    time.Now,
		locks:  newKeyedLocks(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) ts() string {
	return e.now().UTC().Format(time.RFC3339)
}

// keyedLocks serializes mutations per entity id. Mutations touching
// several ids acquire them in sorted order so two writers can never
// hold them in opposite order.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{m: map[string]*sync.Mutex{}}
}

func (k *keyedLocks) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	return l
}

func (k *keyedLocks) lock(keys ...string) func() {
	seen := map[string]bool{}
	var ordered []string
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)
	var held []*sync.Mutex
	for _, key := range ordered {
		l := k.get(key)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func issueLockKey(id string) string   { return "issue:" + id }
func projectLockKey(id string) string { return "project:" + id }

// workflowFor resolves the workflow an issue in the project follows:
// the project's pinned workflow if set, else the project default.
func (e Engine) workflowFor(ctx context.Context, p domain.Project) (domain.Workflow, error) {
	if p.WorkflowID != "" {
		return e.Repo.GetWorkflow(ctx, p.WorkflowID)
	}
	return e.Repo.DefaultWorkflow(ctx, p.ID)
}

// --- projects ---

type ProjectCreateOptions struct {
	Key         string
	Name        string
	Description string
	Lead        string
	OrgID       string
	ActorID     string
}

// InitProject creates a project plus its default workflow. The workflow
// comes from the loaded config when one is present, otherwise from the
// built-in template.
func (e Engine) InitProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	if opts.Key == "" {
		return domain.Project{}, errors.New("project key is required")
	}
	if opts.Name == "" {
		opts.Name = opts.Key
	}
	if opts.OrgID == "" {
		opts.OrgID = "default"
	}
	cfg := e.Config
	if cfg == nil || len(cfg.Workflow.Statuses) == 0 {
		cfg = config.Default(uuid.NewString(), opts.Key)
	}

	now := e.ts()
	p := domain.Project{
		ID:          uuid.NewString(),
		OrgID:       opts.OrgID,
		Key:         opts.Key,
		Name:        opts.Name,
		Description: opts.Description,
		Lead:        opts.Lead,
		CreatedAt:   now,
	}
	w := workflowFromConfig(cfg, p.ID, now)
	p.WorkflowID = w.ID

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureOrg(ctx, tx, p.OrgID, p.OrgID, now); err != nil {
		return domain.Project{}, fmt.Errorf("ensure org: %w", err)
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Repo.InsertWorkflow(ctx, tx, w); err != nil {
		return domain.Project{}, fmt.Errorf("insert workflow: %w", err)
	}
	if err := e.Activity.Append(ctx, tx, activity.TypeProjectCreated, activity.Ref{ProjectID: p.ID}, opts.ActorID, now, map[string]any{"key": p.Key, "name": p.Name}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func workflowFromConfig(cfg *config.Config, projectID, now string) domain.Workflow {
	w := domain.Workflow{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      cfg.Workflow.Name,
		Statuses:  append([]string(nil), cfg.Workflow.Statuses...),
		IsDefault: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if w.Name == "" {
		w.Name = "Default board"
	}
	for _, t := range cfg.Workflow.Transitions {
		w.Transitions = append(w.Transitions, domain.WorkflowTransition{FromStatus: t.From, ToStatus: t.To, Label: t.Label})
	}
	return w
}

// --- workflows ---

type WorkflowCreateOptions struct {
	ProjectID   string
	Name        string
	Description string
	Statuses    []string
	Transitions []domain.WorkflowTransition
	MakeDefault bool
	ActorID     string
}

func (e Engine) CreateWorkflow(ctx context.Context, opts WorkflowCreateOptions) (domain.Workflow, error) {
	if opts.Name == "" {
		return domain.Workflow{}, errors.New("workflow name is required")
	}
	if len(opts.Statuses) == 0 {
		return domain.Workflow{}, errors.New("workflow needs at least one status")
	}
	seen := map[string]bool{}
	for _, s := range opts.Statuses {
		if s == "" {
			return domain.Workflow{}, errors.New("workflow statuses cannot be empty")
		}
		if seen[s] {
			return domain.Workflow{}, fmt.Errorf("duplicate status %q", s)
		}
		seen[s] = true
	}
	for _, t := range opts.Transitions {
		if !seen[t.FromStatus] {
			return domain.Workflow{}, workflow.UnknownStatusError{Status: t.FromStatus, Workflow: opts.Name}
		}
		if !seen[t.ToStatus] {
			return domain.Workflow{}, workflow.UnknownStatusError{Status: t.ToStatus, Workflow: opts.Name}
		}
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Workflow{}, err
	}

	now := e.ts()
	w := domain.Workflow{
		ID:          uuid.NewString(),
		ProjectID:   opts.ProjectID,
		Name:        opts.Name,
		Description: opts.Description,
		Statuses:    opts.Statuses,
		Transitions: opts.Transitions,
		IsDefault:   opts.MakeDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Workflow{}, err
	}
	defer tx.Rollback()

	if opts.MakeDefault {
		if err := e.Repo.ClearDefaultWorkflow(ctx, tx, opts.ProjectID); err != nil {
			return domain.Workflow{}, err
		}
	}
	if err := e.Repo.InsertWorkflow(ctx, tx, w); err != nil {
		return domain.Workflow{}, fmt.Errorf("insert workflow: %w", err)
	}
	if err := e.Activity.Append(ctx, tx, activity.TypeWorkflowCreated, activity.Ref{ProjectID: w.ProjectID}, opts.ActorID, now, map[string]any{"name": w.Name, "default": w.IsDefault}); err != nil {
		return domain.Workflow{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Workflow{}, err
	}
	return w, nil
}

func (e Engine) SetDefaultWorkflow(ctx context.Context, projectID, workflowID string) error {
	w, err := e.Repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if w.ProjectID != projectID {
		return fmt.Errorf("workflow %s not in project %s", workflowID, projectID)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.ClearDefaultWorkflow(ctx, tx, projectID); err != nil {
		return err
	}
	if err := e.Repo.SetDefaultWorkflow(ctx, tx, workflowID); err != nil {
		return err
	}
	return tx.Commit()
}

// --- issues ---

type IssueCreateOptions struct {
	ProjectID      string
	Title          string
	Description    string
	Priority       string
	Type           string
	AssigneeID     string
	ReporterID     string
	EpicID         string
	SprintID       string
	EstimatedHours float64
	StoryPoints    int
	Labels         []string
	DueDate        string
	ActorID        string
}

func (e Engine) CreateIssue(ctx context.Context, opts IssueCreateOptions) (domain.Issue, error) {
	if opts.Title == "" {
		return domain.Issue{}, errors.New("title is required")
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Issue{}, err
	}
	w, err := e.workflowFor(ctx, p)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("resolve workflow: %w", err)
	}
	if opts.EpicID != "" {
		epic, err := e.Repo.GetEpic(ctx, opts.EpicID)
		if err != nil {
			return domain.Issue{}, err
		}
		if epic.ProjectID != opts.ProjectID {
			return domain.Issue{}, CrossProjectError{IssueID: opts.Title, Field: "epic"}
		}
	}
	if opts.SprintID != "" {
		sp, err := e.Repo.GetSprint(ctx, opts.SprintID)
		if err != nil {
			return domain.Issue{}, err
		}
		if sp.ProjectID != opts.ProjectID {
			return domain.Issue{}, CrossProjectError{IssueID: opts.Title, Field: "sprint"}
		}
	}

	unlock := e.locks.lock(projectLockKey(p.ID))
	defer unlock()

	now := e.ts()
	i := domain.Issue{
		ID:             uuid.NewString(),
		ProjectID:      p.ID,
		Title:          opts.Title,
		Description:    opts.Description,
		Status:         workflow.Initial(w),
		Priority:       opts.Priority,
		Type:           opts.Type,
		EstimatedHours: opts.EstimatedHours,
		StoryPoints:    opts.StoryPoints,
		Labels:         opts.Labels,
		Lifecycle:      domain.LifecycleActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if opts.AssigneeID != "" {
		i.AssigneeID = &opts.AssigneeID
	}
	if opts.ReporterID != "" {
		i.ReporterID = &opts.ReporterID
	}
	if opts.EpicID != "" {
		i.EpicID = &opts.EpicID
	}
	if opts.SprintID != "" {
		i.SprintID = &opts.SprintID
	}
	if opts.DueDate != "" {
		i.DueDate = &opts.DueDate
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	seq, err := e.Repo.NextIssueSeq(ctx, tx, p.ID)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("issue sequence: %w", err)
	}
	i.Key = fmt.Sprintf("%s-%d", p.Key, seq)
	if err := e.Repo.InsertIssue(ctx, tx, i); err != nil {
		return domain.Issue{}, fmt.Errorf("insert issue: %w", err)
	}
	payload := map[string]any{"key": i.Key, "title": i.Title, "status": i.Status}
	if err := e.Activity.Append(ctx, tx, activity.TypeIssueCreated, activity.Ref{ProjectID: p.ID, IssueID: i.ID}, opts.ActorID, now, payload); err != nil {
		return domain.Issue{}, err
	}
	if opts.AssigneeID != "" {
		if err := e.Activity.Append(ctx, tx, activity.TypeUserAssigned, activity.Ref{ProjectID: p.ID, IssueID: i.ID}, opts.ActorID, now, map[string]any{"assignee_id": opts.AssigneeID}); err != nil {
			return domain.Issue{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	e.recomputeAfterIssueChange(ctx, i, domain.Issue{})
	return i, nil
}

// IssueUpdateOptions patches an issue. Nil pointer means no change; a
// pointer to the empty string clears nullable references.
type IssueUpdateOptions struct {
	Title          *string
	Description    *string
	Priority       *string
	Type           *string
	AssigneeID     *string
	EpicID         *string
	SprintID       *string
	EstimatedHours *float64
	StoryPoints    *int
	Labels         *[]string
	DueDate        *string
	ActorID        string
}

func (e Engine) UpdateIssue(ctx context.Context, issueID string, opts IssueUpdateOptions) (domain.Issue, error) {
	unlock := e.locks.lock(issueLockKey(issueID))
	defer unlock()

	prev, err := e.Repo.GetIssue(ctx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	i := prev
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Issue{}, errors.New("title cannot be empty")
		}
		i.Title = *opts.Title
	}
	if opts.Description != nil {
		i.Description = *opts.Description
	}
	if opts.Priority != nil {
		i.Priority = *opts.Priority
	}
	if opts.Type != nil {
		i.Type = *opts.Type
	}
	assigneeChanged := false
	if opts.AssigneeID != nil {
		if *opts.AssigneeID == "" {
			i.AssigneeID = nil
		} else {
			v := *opts.AssigneeID
			i.AssigneeID = &v
			assigneeChanged = prev.AssigneeID == nil || *prev.AssigneeID != v
		}
	}
	if opts.EpicID != nil {
		if *opts.EpicID == "" {
			i.EpicID = nil
		} else {
			epic, err := e.Repo.GetEpic(ctx, *opts.EpicID)
			if err != nil {
				return domain.Issue{}, err
			}
			if epic.ProjectID != i.ProjectID {
				return domain.Issue{}, CrossProjectError{IssueID: i.Key, Field: "epic"}
			}
			v := *opts.EpicID
			i.EpicID = &v
		}
	}
	if opts.SprintID != nil {
		if *opts.SprintID == "" {
			i.SprintID = nil
		} else {
			sp, err := e.Repo.GetSprint(ctx, *opts.SprintID)
			if err != nil {
				return domain.Issue{}, err
			}
			if sp.ProjectID != i.ProjectID {
				return domain.Issue{}, CrossProjectError{IssueID: i.Key, Field: "sprint"}
			}
			v := *opts.SprintID
			i.SprintID = &v
		}
	}
	if opts.EstimatedHours != nil {
		i.EstimatedHours = *opts.EstimatedHours
	}
	if opts.StoryPoints != nil {
		i.StoryPoints = *opts.StoryPoints
	}
	if opts.Labels != nil {
		i.Labels = *opts.Labels
	}
	if opts.DueDate != nil {
		if *opts.DueDate == "" {
			i.DueDate = nil
		} else {
			v := *opts.DueDate
			i.DueDate = &v
		}
	}
	now := e.ts()
	i.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateIssue(ctx, tx, i); err != nil {
		return domain.Issue{}, err
	}
	if err := e.Activity.Append(ctx, tx, activity.TypeIssueUpdated, activity.Ref{ProjectID: i.ProjectID, IssueID: i.ID}, opts.ActorID, now, map[string]any{"key": i.Key}); err != nil {
		return domain.Issue{}, err
	}
	if assigneeChanged {
		if err := e.Activity.Append(ctx, tx, activity.TypeUserAssigned, activity.Ref{ProjectID: i.ProjectID, IssueID: i.ID}, opts.ActorID, now, map[string]any{"assignee_id": *i.AssigneeID}); err != nil {
			return domain.Issue{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	e.recomputeAfterIssueChange(ctx, i, prev)
	return i, nil
}

// MoveIssue changes an issue's status after validating the move against
// the project workflow. Entering the terminal status stamps completed_at;
// leaving it clears the stamp.
func (e Engine) MoveIssue(ctx context.Context, issueID, toStatus, actorID string) (domain.Issue, error) {
	unlock := e.locks.lock(issueLockKey(issueID))
	defer unlock()

	prev, err := e.Repo.GetIssue(ctx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	p, err := e.Repo.GetProject(ctx, prev.ProjectID)
	if err != nil {
		return domain.Issue{}, err
	}
	w, err := e.workflowFor(ctx, p)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("resolve workflow: %w", err)
	}
	if err := workflow.Validate(w, prev.Status, toStatus); err != nil {
		return domain.Issue{}, err
	}

	now := e.ts()
	i := prev
	i.Status = toStatus
	i.UpdatedAt = now
	terminal := workflow.Terminal(w)
	switch {
	case toStatus == terminal && prev.Status != terminal:
		i.CompletedAt = &now
	case toStatus != terminal:
		i.CompletedAt = nil
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Issue{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateIssue(ctx, tx, i); err != nil {
		return domain.Issue{}, err
	}
	payload := map[string]any{"key": i.Key, "from": prev.Status, "to": toStatus}
	if err := e.Activity.Append(ctx, tx, activity.TypeIssueMoved, activity.Ref{ProjectID: i.ProjectID, IssueID: i.ID}, actorID, now, payload); err != nil {
		return domain.Issue{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Issue{}, err
	}
	e.recomputeAfterIssueChange(ctx, i, prev)
	return i, nil
}

// DeleteIssue removes an issue. An issue still referenced by an epic,
// a sprint, or any active link is deactivated instead so history stays
// resolvable; its links are deactivated either way.
func (e Engine) DeleteIssue(ctx context.Context, issueID, actorID string) error {
	unlock := e.locks.lock(issueLockKey(issueID))
	defer unlock()

	i, err := e.Repo.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var linkCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM issue_links WHERE (source_issue_id=? OR target_issue_id=?) AND lifecycle='active'`, issueID, issueID).Scan(&linkCount); err != nil {
		return err
	}
	now := e.ts()
	referenced := i.EpicID != nil || i.SprintID != nil || linkCount > 0
	if referenced {
		if err := e.Repo.DeactivateLinksOf(ctx, tx, issueID); err != nil {
			return err
		}
		if err := e.Repo.DeactivateIssue(ctx, tx, issueID, now); err != nil {
			return err
		}
	} else {
		for _, q := range []string{
			`DELETE FROM subtasks WHERE parent_issue_id=?`,
			`DELETE FROM comments WHERE issue_id=?`,
			`DELETE FROM time_logs WHERE issue_id=?`,
			`DELETE FROM attachments WHERE issue_id=?`,
		} {
			if _, err := tx.ExecContext(ctx, q, issueID); err != nil {
				return err
			}
		}
		if err := e.Repo.DeleteIssue(ctx, tx, issueID); err != nil {
			return err
		}
	}
	payload := map[string]any{"key": i.Key, "deactivated": referenced}
	if err := e.Activity.Append(ctx, tx, activity.TypeIssueDeleted, activity.Ref{ProjectID: i.ProjectID, IssueID: i.ID}, actorID, now, payload); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.recomputeAfterIssueChange(ctx, domain.Issue{ProjectID: i.ProjectID}, i)
	return nil
}

// --- epics ---

type EpicCreateOptions struct {
	ProjectID   string
	Title       string
	Description string
	AssigneeID  string
	Color       string
	ActorID     string
}

func (e Engine) CreateEpic(ctx context.Context, opts EpicCreateOptions) (domain.Epic, error) {
	if opts.Title == "" {
		return domain.Epic{}, errors.New("title is required")
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Epic{}, err
	}

	unlock := e.locks.lock(projectLockKey(p.ID))
	defer unlock()

	now := e.ts()
	ep := domain.Epic{
		ID:          uuid.NewString(),
		ProjectID:   p.ID,
		Title:       opts.Title,
		Description: opts.Description,
		Status:      "open",
		Color:       opts.Color,
		Lifecycle:   domain.LifecycleActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if opts.AssigneeID != "" {
		ep.AssigneeID = &opts.AssigneeID
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Epic{}, err
	}
	defer tx.Rollback()

	seq, err := e.Repo.NextEpicSeq(ctx, tx, p.ID)
	if err != nil {
		return domain.Epic{}, fmt.Errorf("epic sequence: %w", err)
	}
	ep.Key = fmt.Sprintf("%s-EPIC-%d", p.Key, seq)
	if err := e.Repo.InsertEpic(ctx, tx, ep); err != nil {
		return domain.Epic{}, fmt.Errorf("insert epic: %w", err)
	}
	if err := e.Activity.Append(ctx, tx, activity.TypeEpicCreated, activity.Ref{ProjectID: p.ID}, opts.ActorID, now, map[string]any{"key": ep.Key, "title": ep.Title}); err != nil {
		return domain.Epic{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Epic{}, err
	}
	return ep, nil
}

// --- sprints ---

type SprintCreateOptions struct {
	ProjectID string
	Name      string
	Goal      string
	StartDate string
	EndDate   string
	Capacity  int
	ActorID   string
}

func (e Engine) CreateSprint(ctx context.Context, opts SprintCreateOptions) (domain.Sprint, error) {
	if opts.Name == "" {
		return domain.Sprint{}, errors.New("sprint name is required")
	}
	if opts.StartDate == "" || opts.EndDate == "" {
		return domain.Sprint{}, errors.New("sprint start and end dates are required")
	}
	if opts.EndDate < opts.StartDate {
		return domain.Sprint{}, errors.New("sprint end date precedes start date")
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Sprint{}, err
	}

	now := e.ts()
	s := domain.Sprint{
		ID:        uuid.NewString(),
		ProjectID: p.ID,
		Name:      opts.Name,
		Goal:      opts.Goal,
		Status:    domain.SprintPlanned,
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
		Capacity:  opts.Capacity,
		CreatedAt: now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sprint{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertSprint(ctx, tx, s); err != nil {
		return domain.Sprint{}, fmt.Errorf("insert sprint: %w", err)
	}
	if err := e.Activity.Append(ctx, tx, activity.TypeSprintCreated, activity.Ref{ProjectID: p.ID, SprintID: s.ID}, opts.ActorID, now, map[string]any{"name": s.Name}); err != nil {
		return domain.Sprint{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sprint{}, err
	}
	return s, nil
}

func (e Engine) StartSprint(ctx context.Context, sprintID, actorID string) (domain.Sprint, error) {
	return e.moveSprint(ctx, sprintID, domain.SprintPlanned, domain.SprintActive, activity.TypeSprintStarted, actorID)
}

// CompleteSprint closes the sprint and recomputes its velocity.
func (e Engine) CompleteSprint(ctx context.Context, sprintID, actorID string) (domain.Sprint, error) {
	s, err := e.moveSprint(ctx, sprintID, domain.SprintActive, domain.SprintCompleted, activity.TypeSprintCompleted, actorID)
	if err != nil {
		return domain.Sprint{}, err
	}
	e.RecomputeSprint(ctx, s.ID)
	return e.Repo.GetSprint(ctx, s.ID)
}

func (e Engine) moveSprint(ctx context.Context, sprintID, from, to, actType, actorID string) (domain.Sprint, error) {
	s, err := e.Repo.GetSprint(ctx, sprintID)
	if err != nil {
		return domain.Sprint{}, err
	}
	if s.Status != from {
		return domain.Sprint{}, fmt.Errorf("sprint %s is %s, expected %s", s.Name, s.Status, from)
	}
	s.Status = to

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sprint{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateSprintMeta(ctx, tx, s); err != nil {
		return domain.Sprint{}, err
	}
	if err := e.Activity.Append(ctx, tx, actType, activity.Ref{ProjectID: s.ProjectID, SprintID: s.ID}, actorID, e.ts(), map[string]any{"name": s.Name}); err != nil {
		return domain.Sprint{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sprint{}, err
	}
	return s, nil
}

type SprintUpdateOptions struct {
	Name      *string
	Goal      *string
	StartDate *string
	EndDate   *string
	Capacity  *int
	ActorID   string
}

// UpdateSprint edits sprint planning fields. Capacity is operator-set,
// never derived.
func (e Engine) UpdateSprint(ctx context.Context, sprintID string, opts SprintUpdateOptions) (domain.Sprint, error) {
	s, err := e.Repo.GetSprint(ctx, sprintID)
	if err != nil {
		return domain.Sprint{}, err
	}
	if opts.Name != nil {
		if *opts.Name == "" {
			return domain.Sprint{}, errors.New("sprint name cannot be empty")
		}
		s.Name = *opts.Name
	}
	if opts.Goal != nil {
		s.Goal = *opts.Goal
	}
	if opts.StartDate != nil {
		s.StartDate = *opts.StartDate
	}
	if opts.EndDate != nil {
		s.EndDate = *opts.EndDate
	}
	if s.EndDate < s.StartDate {
		return domain.Sprint{}, errors.New("sprint end date precedes start date")
	}
	if opts.Capacity != nil {
		s.Capacity = *opts.Capacity
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sprint{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateSprintMeta(ctx, tx, s); err != nil {
		return domain.Sprint{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Sprint{}, err
	}
	if s.Status == domain.SprintCompleted {
		e.RecomputeSprint(ctx, s.ID)
		return e.Repo.GetSprint(ctx, s.ID)
	}
	return s, nil
}
