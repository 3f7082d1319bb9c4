package engine_test

import (
	"testing"

	"planup/internal/engine"
)

func TestEpicRollup(t *testing.T) {
	env := newTestEnv(t)
	ep, err := env.Engine.CreateEpic(env.Ctx, engine.EpicCreateOptions{ProjectID: env.Project.ID, Title: "epic", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	i1 := env.createIssue(t, "one", engine.IssueCreateOptions{EpicID: ep.ID, StoryPoints: 5})
	env.createIssue(t, "two", engine.IssueCreateOptions{EpicID: ep.ID, StoryPoints: 3})
	i3 := env.createIssue(t, "three", engine.IssueCreateOptions{EpicID: ep.ID, StoryPoints: 8})

	env.moveDone(t, i1.ID)
	env.moveDone(t, i3.ID)

	got, err := env.Engine.Repo.GetEpic(env.Ctx, ep.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.StoryPoints != 16 {
		t.Fatalf("story points = %d, want 16", got.StoryPoints)
	}
	if got.CompletedStoryPoints != 13 {
		t.Fatalf("completed = %d, want 13", got.CompletedStoryPoints)
	}
}

func TestEpicReassignmentRecomputesBoth(t *testing.T) {
	env := newTestEnv(t)
	ep1, err := env.Engine.CreateEpic(env.Ctx, engine.EpicCreateOptions{ProjectID: env.Project.ID, Title: "one", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	ep2, err := env.Engine.CreateEpic(env.Ctx, engine.EpicCreateOptions{ProjectID: env.Project.ID, Title: "two", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	i := env.createIssue(t, "mover", engine.IssueCreateOptions{EpicID: ep1.ID, StoryPoints: 5})

	if _, err := env.Engine.UpdateIssue(env.Ctx, i.ID, engine.IssueUpdateOptions{EpicID: &ep2.ID, ActorID: "tester"}); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	got1, _ := env.Engine.Repo.GetEpic(env.Ctx, ep1.ID)
	got2, _ := env.Engine.Repo.GetEpic(env.Ctx, ep2.ID)
	if got1.StoryPoints != 0 {
		t.Fatalf("old epic story points = %d, want 0", got1.StoryPoints)
	}
	if got2.StoryPoints != 5 {
		t.Fatalf("new epic story points = %d, want 5", got2.StoryPoints)
	}
}

func TestProjectProgressFromEpics(t *testing.T) {
	env := newTestEnv(t)
	ep, err := env.Engine.CreateEpic(env.Ctx, engine.EpicCreateOptions{ProjectID: env.Project.ID, Title: "epic", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	i1 := env.createIssue(t, "a", engine.IssueCreateOptions{EpicID: ep.ID, StoryPoints: 5})
	env.createIssue(t, "b", engine.IssueCreateOptions{EpicID: ep.ID, StoryPoints: 5})
	env.moveDone(t, i1.ID)

	p, err := env.Engine.Repo.GetProject(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Progress != 50 {
		t.Fatalf("progress = %d, want 50", p.Progress)
	}
	if p.IssueCount != 2 {
		t.Fatalf("issue count = %d, want 2", p.IssueCount)
	}
}

func TestProjectProgressZeroWithoutStoryPoints(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.CreateEpic(env.Ctx, engine.EpicCreateOptions{ProjectID: env.Project.ID, Title: "empty", ActorID: "tester"}); err != nil {
		t.Fatal(err)
	}
	env.createIssue(t, "pointless", engine.IssueCreateOptions{})
	p, err := env.Engine.Repo.GetProject(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatal(err)
	}
	if p.Progress != 0 {
		t.Fatalf("progress = %d, want 0", p.Progress)
	}
}

func TestSprintVelocityCountsCompletionsInWindow(t *testing.T) {
	env := newTestEnv(t)
	// The fixed clock stamps completions on 2024-01-15.
	in, err := env.Engine.CreateSprint(env.Ctx, engine.SprintCreateOptions{
		ProjectID: env.Project.ID, Name: "current", StartDate: "2024-01-10", EndDate: "2024-01-20", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := env.Engine.CreateSprint(env.Ctx, engine.SprintCreateOptions{
		ProjectID: env.Project.ID, Name: "past", StartDate: "2023-12-01", EndDate: "2023-12-14", ActorID: "tester",
	})
	if err != nil {
		t.Fatal(err)
	}

	i1 := env.createIssue(t, "in window", engine.IssueCreateOptions{SprintID: in.ID, StoryPoints: 8})
	env.createIssue(t, "not done", engine.IssueCreateOptions{SprintID: in.ID, StoryPoints: 5})
	i3 := env.createIssue(t, "late", engine.IssueCreateOptions{SprintID: out.ID, StoryPoints: 3})
	env.moveDone(t, i1.ID)
	env.moveDone(t, i3.ID)

	gotIn, _ := env.Engine.Repo.GetSprint(env.Ctx, in.ID)
	if gotIn.Velocity != 8 {
		t.Fatalf("velocity = %d, want 8", gotIn.Velocity)
	}
	// i3 completed after its sprint window closed; it must not count.
	gotOut, _ := env.Engine.Repo.GetSprint(env.Ctx, out.ID)
	if gotOut.Velocity != 0 {
		t.Fatalf("out-of-window velocity = %d, want 0", gotOut.Velocity)
	}
}

func TestDeleteIssueRecomputesAggregates(t *testing.T) {
	env := newTestEnv(t)
	ep, err := env.Engine.CreateEpic(env.Ctx, engine.EpicCreateOptions{ProjectID: env.Project.ID, Title: "epic", ActorID: "tester"})
	if err != nil {
		t.Fatal(err)
	}
	i := env.createIssue(t, "doomed", engine.IssueCreateOptions{EpicID: ep.ID, StoryPoints: 5})
	if err := env.Engine.DeleteIssue(env.Ctx, i.ID, "tester"); err != nil {
		t.Fatal(err)
	}
	got, _ := env.Engine.Repo.GetEpic(env.Ctx, ep.ID)
	if got.StoryPoints != 0 {
		t.Fatalf("epic story points = %d after member deleted, want 0", got.StoryPoints)
	}
	p, _ := env.Engine.Repo.GetProject(env.Ctx, env.Project.ID)
	if p.IssueCount != 0 {
		t.Fatalf("issue count = %d, want 0", p.IssueCount)
	}
}
