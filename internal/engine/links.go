package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"planup/internal/activity"
	"planup/internal/domain"
)

// AddLink records a typed relation between two issues. Reverse-direction
// types (is-blocked-by, is-duplicated-by, child-of) are normalized to a
// single stored record in the forward direction, so both readings of a
// relation always come from the same row.
func (e Engine) AddLink(ctx context.Context, sourceID, targetID, linkType, actorID string) (domain.IssueLink, error) {
	if _, ok := domain.InverseLinkType(linkType); !ok {
		return domain.IssueLink{}, UnknownLinkTypeError{LinkType: linkType}
	}
	canonical, swap := domain.CanonicalLinkType(linkType)
	if swap {
		sourceID, targetID = targetID, sourceID
	}
	if sourceID == targetID {
		return domain.IssueLink{}, SelfLinkError{IssueID: sourceID}
	}

	unlock := e.locks.lock(issueLockKey(sourceID), issueLockKey(targetID))
	defer unlock()

	src, err := e.Repo.GetIssue(ctx, sourceID)
	if err != nil {
		return domain.IssueLink{}, err
	}
	if _, err := e.Repo.GetIssue(ctx, targetID); err != nil {
		return domain.IssueLink{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.IssueLink{}, err
	}
	defer tx.Rollback()

	exists, err := e.Repo.ActiveLinkExists(ctx, tx, sourceID, targetID, canonical)
	if err != nil {
		return domain.IssueLink{}, err
	}
	if !exists && canonical == domain.LinkRelatesTo {
		// relates-to is symmetric, so the mirrored row is the same relation.
		exists, err = e.Repo.ActiveLinkExists(ctx, tx, targetID, sourceID, canonical)
		if err != nil {
			return domain.IssueLink{}, err
		}
	}
	if exists {
		return domain.IssueLink{}, DuplicateLinkError{SourceIssueID: sourceID, TargetIssueID: targetID, LinkType: canonical}
	}
	if canonical == domain.LinkParentOf {
		if err := e.ensureNoParentCycle(ctx, tx, sourceID, targetID); err != nil {
			return domain.IssueLink{}, err
		}
	}

	now := e.ts()
	l := domain.IssueLink{
		ID:            uuid.NewString(),
		SourceIssueID: sourceID,
		TargetIssueID: targetID,
		LinkType:      canonical,
		CreatedByID:   actorID,
		Lifecycle:     domain.LifecycleActive,
		CreatedAt:     now,
	}
	if err := e.Repo.InsertLink(ctx, tx, l); err != nil {
		return domain.IssueLink{}, fmt.Errorf("insert link: %w", err)
	}
	payload := map[string]any{"source": sourceID, "target": targetID, "link_type": canonical}
	if err := e.Activity.Append(ctx, tx, activity.TypeIssueLinked, activity.Ref{ProjectID: src.ProjectID, IssueID: sourceID}, actorID, now, payload); err != nil {
		return domain.IssueLink{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.IssueLink{}, err
	}
	return l, nil
}

// ensureNoParentCycle rejects a parent-of link when the prospective
// child already sits above the parent in the hierarchy. Walks ancestors
// of the parent; finding the child means the new edge would close a loop.
func (e Engine) ensureNoParentCycle(ctx context.Context, tx *sql.Tx, parentID, childID string) error {
	visited := map[string]bool{}
	frontier := []string{parentID}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		parents, err := e.Repo.ActiveParentsOf(ctx, tx, cur)
		if err != nil {
			return err
		}
		for _, p := range parents {
			if p == childID {
				return CycleError{ParentID: parentID, ChildID: childID}
			}
			frontier = append(frontier, p)
		}
	}
	return nil
}

// RemoveLink deactivates a link by id.
func (e Engine) RemoveLink(ctx context.Context, linkID, actorID string) error {
	l, err := e.Repo.GetLink(ctx, linkID)
	if err != nil {
		return err
	}
	unlock := e.locks.lock(issueLockKey(l.SourceIssueID), issueLockKey(l.TargetIssueID))
	defer unlock()

	src, err := e.Repo.GetIssue(ctx, l.SourceIssueID)
	if err != nil {
		return err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.DeactivateLink(ctx, tx, linkID); err != nil {
		return err
	}
	payload := map[string]any{"source": l.SourceIssueID, "target": l.TargetIssueID, "link_type": l.LinkType}
	if err := e.Activity.Append(ctx, tx, activity.TypeIssueUnlinked, activity.Ref{ProjectID: src.ProjectID, IssueID: l.SourceIssueID}, actorID, e.ts(), payload); err != nil {
		return err
	}
	return tx.Commit()
}

// Unlink removes the relation between two issues given in either
// direction.
func (e Engine) Unlink(ctx context.Context, sourceID, targetID, linkType, actorID string) error {
	if _, ok := domain.InverseLinkType(linkType); !ok {
		return UnknownLinkTypeError{LinkType: linkType}
	}
	canonical, swap := domain.CanonicalLinkType(linkType)
	if swap {
		sourceID, targetID = targetID, sourceID
	}
	var id string
	err := e.DB.QueryRowContext(ctx, `SELECT id FROM issue_links WHERE source_issue_id=? AND target_issue_id=? AND link_type=? AND lifecycle='active'`,
		sourceID, targetID, canonical).Scan(&id)
	if err == sql.ErrNoRows && canonical == domain.LinkRelatesTo {
		err = e.DB.QueryRowContext(ctx, `SELECT id FROM issue_links WHERE source_issue_id=? AND target_issue_id=? AND link_type=? AND lifecycle='active'`,
			targetID, sourceID, canonical).Scan(&id)
	}
	if err == sql.ErrNoRows {
		return fmt.Errorf("no active %s link between %s and %s", linkType, sourceID, targetID)
	}
	if err != nil {
		return err
	}
	return e.RemoveLink(ctx, id, actorID)
}

// LinksFor returns every active relation of an issue as seen from that
// issue: stored rows where it is the source, plus the inverse reading of
// rows where it is the target.
func (e Engine) LinksFor(ctx context.Context, issueID string) ([]domain.IssueLink, error) {
	outgoing, err := e.Repo.ActiveLinksFrom(ctx, nil, issueID)
	if err != nil {
		return nil, err
	}
	incoming, err := e.Repo.ActiveLinksTo(ctx, nil, issueID)
	if err != nil {
		return nil, err
	}
	res := append([]domain.IssueLink(nil), outgoing...)
	for _, l := range incoming {
		inv, _ := domain.InverseLinkType(l.LinkType)
		res = append(res, domain.IssueLink{
			ID:            l.ID,
			SourceIssueID: issueID,
			TargetIssueID: l.SourceIssueID,
			LinkType:      inv,
			CreatedByID:   l.CreatedByID,
			Lifecycle:     l.Lifecycle,
			CreatedAt:     l.CreatedAt,
		})
	}
	return res, nil
}
