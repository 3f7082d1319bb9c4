package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"planup/internal/config"
	"planup/internal/db"
	"planup/internal/domain"
	"planup/internal/engine"
	"planup/internal/engine/workflow"
	"planup/internal/migrate"
	"planup/internal/repo"
)

type testEnv struct {
	Engine  engine.Engine
	Ctx     context.Context
	Project domain.Project
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("proj-1", "PLAN")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	p, err := eng.InitProject(ctx, engine.ProjectCreateOptions{Key: "PLAN", Name: "Plan", ActorID: "tester"})
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx, Project: p}
}

func (env testEnv) createIssue(t *testing.T, title string, opts engine.IssueCreateOptions) domain.Issue {
	t.Helper()
	opts.ProjectID = env.Project.ID
	opts.Title = title
	if opts.ActorID == "" {
		opts.ActorID = "tester"
	}
	i, err := env.Engine.CreateIssue(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create issue %q: %v", title, err)
	}
	return i
}

// moveDone walks an issue along the default board to its terminal status.
func (env testEnv) moveDone(t *testing.T, issueID string) domain.Issue {
	t.Helper()
	var i domain.Issue
	var err error
	for _, status := range []string{"In Progress", "In Review", "Done"} {
		i, err = env.Engine.MoveIssue(env.Ctx, issueID, status, "tester")
		if err != nil {
			t.Fatalf("move to %s: %v", status, err)
		}
	}
	return i
}

func TestCreateIssueStartsAtInitialStatus(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "first", engine.IssueCreateOptions{})
	if i.Status != "To Do" {
		t.Fatalf("status = %q, want To Do", i.Status)
	}
	if i.Key != "PLAN-1" {
		t.Fatalf("key = %q, want PLAN-1", i.Key)
	}
	second := env.createIssue(t, "second", engine.IssueCreateOptions{})
	if second.Key != "PLAN-2" {
		t.Fatalf("key = %q, want PLAN-2", second.Key)
	}
}

func TestMoveIssueValidPath(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "work", engine.IssueCreateOptions{})
	i = env.moveDone(t, i.ID)
	if i.Status != "Done" {
		t.Fatalf("status = %q", i.Status)
	}
	if i.CompletedAt == nil {
		t.Fatal("completed_at not stamped on terminal status")
	}
	// Reopen clears the completion stamp.
	i, err := env.Engine.MoveIssue(env.Ctx, i.ID, "To Do", "tester")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if i.CompletedAt != nil {
		t.Fatal("completed_at should clear when leaving terminal status")
	}
}

func TestMoveIssueRejectsIllegalTransition(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "work", engine.IssueCreateOptions{})
	_, err := env.Engine.MoveIssue(env.Ctx, i.ID, "Done", "tester")
	var invalid workflow.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidTransitionError", err)
	}
	got, err := env.Engine.Repo.GetIssue(env.Ctx, i.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "To Do" {
		t.Fatalf("rejected move mutated status to %q", got.Status)
	}
}

func TestMoveIssueRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "work", engine.IssueCreateOptions{})
	_, err := env.Engine.MoveIssue(env.Ctx, i.ID, "Cancelled", "tester")
	var unknown workflow.UnknownStatusError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownStatusError", err)
	}
}

func TestMoveIssueSameStatusIsNoop(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "work", engine.IssueCreateOptions{})
	got, err := env.Engine.MoveIssue(env.Ctx, i.ID, "To Do", "tester")
	if err != nil {
		t.Fatalf("self move: %v", err)
	}
	if got.Status != "To Do" {
		t.Fatalf("status = %q", got.Status)
	}
}

func TestDeleteIssueUnreferencedIsPhysical(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "gone", engine.IssueCreateOptions{})
	if err := env.Engine.DeleteIssue(env.Ctx, i.ID, "tester"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := env.Engine.Repo.GetIssue(env.Ctx, i.ID)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteIssueReferencedIsDeactivated(t *testing.T) {
	env := newTestEnv(t)
	ep, err := env.Engine.CreateEpic(env.Ctx, engine.EpicCreateOptions{ProjectID: env.Project.ID, Title: "epic", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	i := env.createIssue(t, "member", engine.IssueCreateOptions{EpicID: ep.ID})
	if err := env.Engine.DeleteIssue(env.Ctx, i.ID, "tester"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := env.Engine.Repo.GetIssue(env.Ctx, i.ID)
	if err != nil {
		t.Fatalf("deactivated issue should remain readable: %v", err)
	}
	if got.Lifecycle != domain.LifecycleDeactivated {
		t.Fatalf("lifecycle = %q", got.Lifecycle)
	}
}

func TestUpdateIssueAssigneeLogsActivity(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "assign", engine.IssueCreateOptions{})
	assignee := "alice"
	if _, err := env.Engine.UpdateIssue(env.Ctx, i.ID, engine.IssueUpdateOptions{AssigneeID: &assignee, ActorID: "tester"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	acts, err := env.Engine.Repo.ListActivities(env.Ctx, repo.ActivityFilter{IssueID: i.ID})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, a := range acts {
		if a.Type == "user_assigned" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected user_assigned activity")
	}
}

func TestActivityAppendedOnStateChanges(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "evented", engine.IssueCreateOptions{})
	env.moveDone(t, i.ID)
	acts, err := env.Engine.Repo.ListActivities(env.Ctx, repo.ActivityFilter{IssueID: i.ID})
	if err != nil {
		t.Fatal(err)
	}
	moves := 0
	for _, a := range acts {
		if a.Type == "issue_moved" {
			moves++
		}
	}
	if moves != 3 {
		t.Fatalf("issue_moved activities = %d, want 3", moves)
	}
}

func TestCrossProjectSprintRejected(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.Engine.InitProject(env.Ctx, engine.ProjectCreateOptions{Key: "OTHER", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	sp, err := env.Engine.CreateSprint(env.Ctx, engine.SprintCreateOptions{
		ProjectID: other.ID, Name: "S1", StartDate: "2024-01-10", EndDate: "2024-01-20", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
		ProjectID: env.Project.ID, Title: "stray", SprintID: sp.ID, ActorID: "tester",
	})
	var cross engine.CrossProjectError
	if !errors.As(err, &cross) {
		t.Fatalf("err = %v, want CrossProjectError", err)
	}
}

func TestSprintLifecycle(t *testing.T) {
	env := newTestEnv(t)
	sp, err := env.Engine.CreateSprint(env.Ctx, engine.SprintCreateOptions{
		ProjectID: env.Project.ID, Name: "S1", StartDate: "2024-01-10", EndDate: "2024-01-20", Capacity: 30, ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	if sp.Status != domain.SprintPlanned {
		t.Fatalf("status = %q", sp.Status)
	}
	// cannot complete before starting
	if _, err := env.Engine.CompleteSprint(env.Ctx, sp.ID, "tester"); err == nil {
		t.Fatal("expected error completing a planned sprint")
	}
	if _, err := env.Engine.StartSprint(env.Ctx, sp.ID, "tester"); err != nil {
		t.Fatalf("start: %v", err)
	}
	done, err := env.Engine.CompleteSprint(env.Ctx, sp.ID, "tester")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.SprintCompleted {
		t.Fatalf("status = %q", done.Status)
	}
	if done.Capacity != 30 {
		t.Fatalf("capacity = %d, should stay operator-set", done.Capacity)
	}
}

func TestConcurrentMovesSerializeToOneStatus(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "contended", engine.IssueCreateOptions{})
	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Engine.MoveIssue(env.Ctx, i.ID, "In Progress", "tester")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("move: %v", err)
		}
	}
	got, err := env.Engine.Repo.GetIssue(env.Ctx, i.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "In Progress" {
		t.Fatalf("status = %q, want In Progress", got.Status)
	}
	// Every request holds the issue lock for its whole
	// read-validate-write, so each one lands and none overwrite another.
	acts, err := env.Engine.Repo.ListActivities(env.Ctx, repo.ActivityFilter{IssueID: i.ID})
	if err != nil {
		t.Fatal(err)
	}
	moves := 0
	for _, a := range acts {
		if a.Type == "issue_moved" {
			moves++
		}
	}
	if moves != n {
		t.Fatalf("issue_moved activities = %d, want %d", moves, n)
	}
}

func TestConcurrentIssueCreationKeysUnique(t *testing.T) {
	env := newTestEnv(t)
	const n = 8
	var wg sync.WaitGroup
	keys := make(chan string, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			i, err := env.Engine.CreateIssue(env.Ctx, engine.IssueCreateOptions{
				ProjectID: env.Project.ID, Title: "parallel", ActorID: "tester",
			})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			keys <- i.Key
		}()
	}
	wg.Wait()
	close(keys)
	seen := map[string]bool{}
	for k := range keys {
		if seen[k] {
			t.Fatalf("duplicate key %s", k)
		}
		seen[k] = true
	}
	if len(seen) != n {
		t.Fatalf("created %d issues, want %d", len(seen), n)
	}
}
