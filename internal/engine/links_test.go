package engine_test

import (
	"errors"
	"testing"

	"planup/internal/domain"
	"planup/internal/engine"
	"planup/internal/repo"
)

func TestLinkInverseReadings(t *testing.T) {
	env := newTestEnv(t)
	a := env.createIssue(t, "a", engine.IssueCreateOptions{})
	b := env.createIssue(t, "b", engine.IssueCreateOptions{})
	if _, err := env.Engine.AddLink(env.Ctx, a.ID, b.ID, domain.LinkBlocks, "tester"); err != nil {
		t.Fatalf("link: %v", err)
	}

	fromA, err := env.Engine.LinksFor(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fromA) != 1 || fromA[0].LinkType != domain.LinkBlocks || fromA[0].TargetIssueID != b.ID {
		t.Fatalf("links for a = %+v", fromA)
	}
	fromB, err := env.Engine.LinksFor(env.Ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(fromB) != 1 || fromB[0].LinkType != domain.LinkIsBlockedBy || fromB[0].TargetIssueID != a.ID {
		t.Fatalf("links for b = %+v", fromB)
	}
}

func TestReverseLinkTypeNormalized(t *testing.T) {
	env := newTestEnv(t)
	a := env.createIssue(t, "a", engine.IssueCreateOptions{})
	b := env.createIssue(t, "b", engine.IssueCreateOptions{})
	// "a is-blocked-by b" stores as "b blocks a".
	l, err := env.Engine.AddLink(env.Ctx, a.ID, b.ID, domain.LinkIsBlockedBy, "tester")
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if l.LinkType != domain.LinkBlocks || l.SourceIssueID != b.ID || l.TargetIssueID != a.ID {
		t.Fatalf("stored link = %+v", l)
	}
	// The same relation stated forward is now a duplicate.
	_, err = env.Engine.AddLink(env.Ctx, b.ID, a.ID, domain.LinkBlocks, "tester")
	var dup engine.DuplicateLinkError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateLinkError", err)
	}
}

func TestSelfLinkRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.createIssue(t, "a", engine.IssueCreateOptions{})
	_, err := env.Engine.AddLink(env.Ctx, a.ID, a.ID, domain.LinkRelatesTo, "tester")
	var self engine.SelfLinkError
	if !errors.As(err, &self) {
		t.Fatalf("err = %v, want SelfLinkError", err)
	}
}

func TestDuplicateRelatesToEitherDirection(t *testing.T) {
	env := newTestEnv(t)
	a := env.createIssue(t, "a", engine.IssueCreateOptions{})
	b := env.createIssue(t, "b", engine.IssueCreateOptions{})
	if _, err := env.Engine.AddLink(env.Ctx, a.ID, b.ID, domain.LinkRelatesTo, "tester"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.AddLink(env.Ctx, b.ID, a.ID, domain.LinkRelatesTo, "tester")
	var dup engine.DuplicateLinkError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateLinkError", err)
	}
}

func TestParentCycleRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.createIssue(t, "a", engine.IssueCreateOptions{})
	b := env.createIssue(t, "b", engine.IssueCreateOptions{})
	c := env.createIssue(t, "c", engine.IssueCreateOptions{})
	if _, err := env.Engine.AddLink(env.Ctx, a.ID, b.ID, domain.LinkParentOf, "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.AddLink(env.Ctx, b.ID, c.ID, domain.LinkParentOf, "tester"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.AddLink(env.Ctx, c.ID, a.ID, domain.LinkParentOf, "tester")
	var cycle engine.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("err = %v, want CycleError", err)
	}
	// child-of normalizes before the cycle check, so the reverse
	// statement of the same edge is rejected too.
	_, err = env.Engine.AddLink(env.Ctx, a.ID, c.ID, domain.LinkChildOf, "tester")
	if !errors.As(err, &cycle) {
		t.Fatalf("err = %v, want CycleError", err)
	}
}

func TestUnknownLinkType(t *testing.T) {
	env := newTestEnv(t)
	a := env.createIssue(t, "a", engine.IssueCreateOptions{})
	b := env.createIssue(t, "b", engine.IssueCreateOptions{})
	_, err := env.Engine.AddLink(env.Ctx, a.ID, b.ID, "follows", "tester")
	var unknown engine.UnknownLinkTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownLinkTypeError", err)
	}
}

func TestUnlinkByPair(t *testing.T) {
	env := newTestEnv(t)
	a := env.createIssue(t, "a", engine.IssueCreateOptions{})
	b := env.createIssue(t, "b", engine.IssueCreateOptions{})
	if _, err := env.Engine.AddLink(env.Ctx, a.ID, b.ID, domain.LinkBlocks, "tester"); err != nil {
		t.Fatal(err)
	}
	// Remove stated from the target's point of view.
	if err := env.Engine.Unlink(env.Ctx, b.ID, a.ID, domain.LinkIsBlockedBy, "tester"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	links, err := env.Engine.LinksFor(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 0 {
		t.Fatalf("links = %+v, want none", links)
	}
	// Relinking after removal is allowed.
	if _, err := env.Engine.AddLink(env.Ctx, a.ID, b.ID, domain.LinkBlocks, "tester"); err != nil {
		t.Fatalf("relink: %v", err)
	}
}

func TestDeleteIssueAfterUnlinkIsPhysical(t *testing.T) {
	env := newTestEnv(t)
	a := env.createIssue(t, "a", engine.IssueCreateOptions{})
	b := env.createIssue(t, "b", engine.IssueCreateOptions{})
	if _, err := env.Engine.AddLink(env.Ctx, a.ID, b.ID, domain.LinkBlocks, "tester"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.Unlink(env.Ctx, a.ID, b.ID, domain.LinkBlocks, "tester"); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	// Only active links keep an issue referenced; the deactivated row
	// left behind by Unlink must not force a soft delete.
	if err := env.Engine.DeleteIssue(env.Ctx, a.ID, "tester"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err := env.Engine.Repo.GetIssue(env.Ctx, a.ID)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
