package engine_test

import (
	"errors"
	"sync"
	"testing"

	"planup/internal/engine"
)

func TestLogTimeAccumulates(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "timed", engine.IssueCreateOptions{})
	if _, err := env.Engine.LogTime(env.Ctx, engine.TimeLogOptions{IssueID: i.ID, AuthorID: "alice", Hours: 4, Category: "development"}); err != nil {
		t.Fatalf("log 4h: %v", err)
	}
	if _, err := env.Engine.LogTime(env.Ctx, engine.TimeLogOptions{IssueID: i.ID, AuthorID: "bob", Hours: 2.5, Category: "testing"}); err != nil {
		t.Fatalf("log 2.5h: %v", err)
	}
	got, err := env.Engine.Repo.GetIssue(env.Ctx, i.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LoggedHours != 6.5 {
		t.Fatalf("logged hours = %v, want 6.5", got.LoggedHours)
	}
	total, err := env.Engine.TotalLoggedHours(env.Ctx, i.ID)
	if err != nil {
		t.Fatal(err)
	}
	if total != 6.5 {
		t.Fatalf("ledger total = %v, want 6.5", total)
	}
}

func TestLogTimeRejectsNonPositiveHours(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "timed", engine.IssueCreateOptions{})
	for _, hours := range []float64{0, -1} {
		_, err := env.Engine.LogTime(env.Ctx, engine.TimeLogOptions{IssueID: i.ID, AuthorID: "alice", Hours: hours})
		var invalid engine.InvalidDurationError
		if !errors.As(err, &invalid) {
			t.Fatalf("hours=%v: err = %v, want InvalidDurationError", hours, err)
		}
	}
	got, _ := env.Engine.Repo.GetIssue(env.Ctx, i.ID)
	if got.LoggedHours != 0 {
		t.Fatalf("rejected entries mutated logged hours: %v", got.LoggedHours)
	}
	logs, err := env.Engine.Repo.ListTimeLogs(env.Ctx, i.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 0 {
		t.Fatalf("rejected entries reached the ledger: %d", len(logs))
	}
}

func TestLogTimeRejectsUnknownCategory(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "timed", engine.IssueCreateOptions{})
	_, err := env.Engine.LogTime(env.Ctx, engine.TimeLogOptions{IssueID: i.ID, AuthorID: "alice", Hours: 1, Category: "golfing"})
	var unknown engine.UnknownTimeCategoryError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownTimeCategoryError", err)
	}
}

func TestConcurrentTimeLogsSerialize(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "busy", engine.IssueCreateOptions{})
	const n = 8
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.Engine.LogTime(env.Ctx, engine.TimeLogOptions{IssueID: i.ID, AuthorID: "alice", Hours: 1}); err != nil {
				t.Errorf("log: %v", err)
			}
		}()
	}
	wg.Wait()
	got, err := env.Engine.Repo.GetIssue(env.Ctx, i.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LoggedHours != n {
		t.Fatalf("logged hours = %v, want %d", got.LoggedHours, n)
	}
}

func TestCommentEditInPlace(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "discussed", engine.IssueCreateOptions{})
	c, err := env.Engine.AddComment(env.Ctx, i.ID, "alice", "first draft")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if c.Edited {
		t.Fatal("new comment marked edited")
	}
	edited, err := env.Engine.UpdateComment(env.Ctx, c.ID, "bob", "final text")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.Edited || edited.EditedBy == nil || *edited.EditedBy != "bob" {
		t.Fatalf("edit marker = %+v", edited)
	}
	list, err := env.Engine.Repo.ListComments(env.Ctx, i.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Content != "final text" {
		t.Fatalf("comments = %+v, want single edited comment", list)
	}
}

func TestSubTasksOnIssue(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "parent", engine.IssueCreateOptions{})
	st, err := env.Engine.CreateSubTask(env.Ctx, engine.SubTaskCreateOptions{ParentIssueID: i.ID, Title: "step one", ActorID: "tester"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	done := true
	st, err = env.Engine.UpdateSubTask(env.Ctx, st.ID, engine.SubTaskUpdateOptions{Completed: &done, ActorID: "tester"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !st.Completed || st.Status != "done" {
		t.Fatalf("subtask = %+v", st)
	}
	view, err := env.Engine.IssueView(env.Ctx, i.Key)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.SubTaskIDs) != 1 || view.SubTaskIDs[0] != st.ID {
		t.Fatalf("subtask ids = %v", view.SubTaskIDs)
	}
}

func TestAttachmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	i := env.createIssue(t, "attached", engine.IssueCreateOptions{})
	a, err := env.Engine.AddAttachment(env.Ctx, engine.AttachmentOptions{IssueID: i.ID, Name: "design.png", FileType: "image/png", ActorID: "alice"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	list, err := env.Engine.Repo.ListAttachments(env.Ctx, i.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("attachments = %d, want 1", len(list))
	}
	if err := env.Engine.DeleteAttachment(env.Ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = env.Engine.Repo.ListAttachments(env.Ctx, i.ID)
	if len(list) != 0 {
		t.Fatalf("attachments = %d after delete, want 0", len(list))
	}
}
