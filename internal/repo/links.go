package repo

import (
	"context"
	"database/sql"

	"planup/internal/domain"
)

const linkCols = `id,source_issue_id,target_issue_id,link_type,created_by_id,lifecycle,created_at`

func scanLinkRows(rows *sql.Rows) ([]domain.IssueLink, error) {
	defer rows.Close()
	var res []domain.IssueLink
	for rows.Next() {
		var l domain.IssueLink
		if err := rows.Scan(&l.ID, &l.SourceIssueID, &l.TargetIssueID, &l.LinkType, &l.CreatedByID, &l.Lifecycle, &l.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, nil
}

func (r Repo) InsertLink(ctx context.Context, tx *sql.Tx, l domain.IssueLink) error {
	_, err := r.on(tx).ExecContext(ctx, `INSERT INTO issue_links(id,source_issue_id,target_issue_id,link_type,created_by_id,lifecycle,created_at) VALUES (?,?,?,?,?,?,?)`,
		l.ID, l.SourceIssueID, l.TargetIssueID, l.LinkType, l.CreatedByID, l.Lifecycle, l.CreatedAt)
	return err
}

func (r Repo) GetLink(ctx context.Context, id string) (domain.IssueLink, error) {
	var l domain.IssueLink
	err := r.DB.QueryRowContext(ctx, `SELECT `+linkCols+` FROM issue_links WHERE id=?`, id).
		Scan(&l.ID, &l.SourceIssueID, &l.TargetIssueID, &l.LinkType, &l.CreatedByID, &l.Lifecycle, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	return l, err
}

// ActiveLinkExists reports whether an active stored link of the given
// type already connects the pair in the stored direction.
func (r Repo) ActiveLinkExists(ctx context.Context, tx *sql.Tx, sourceID, targetID, linkType string) (bool, error) {
	var n int
	err := r.on(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM issue_links WHERE source_issue_id=? AND target_issue_id=? AND link_type=? AND lifecycle='active'`,
		sourceID, targetID, linkType).Scan(&n)
	return n > 0, err
}

// ActiveLinksFrom returns active stored links where the issue is the source.
func (r Repo) ActiveLinksFrom(ctx context.Context, tx *sql.Tx, issueID string) ([]domain.IssueLink, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT `+linkCols+` FROM issue_links WHERE source_issue_id=? AND lifecycle='active' ORDER BY created_at`, issueID)
	if err != nil {
		return nil, err
	}
	return scanLinkRows(rows)
}

// ActiveLinksTo returns active stored links where the issue is the target.
func (r Repo) ActiveLinksTo(ctx context.Context, tx *sql.Tx, issueID string) ([]domain.IssueLink, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT `+linkCols+` FROM issue_links WHERE target_issue_id=? AND lifecycle='active' ORDER BY created_at`, issueID)
	if err != nil {
		return nil, err
	}
	return scanLinkRows(rows)
}

// ActiveParentsOf returns the source issue ids of active parent-of links
// pointing at the given child. Used by ancestry walks.
func (r Repo) ActiveParentsOf(ctx context.Context, tx *sql.Tx, childID string) ([]string, error) {
	rows, err := r.on(tx).QueryContext(ctx, `SELECT source_issue_id FROM issue_links WHERE target_issue_id=? AND link_type=? AND lifecycle='active'`, childID, domain.LinkParentOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, nil
}

func (r Repo) DeactivateLink(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.on(tx).ExecContext(ctx, `UPDATE issue_links SET lifecycle=? WHERE id=? AND lifecycle='active'`, domain.LifecycleDeactivated, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateLinksOf soft-deletes every active link touching an issue.
func (r Repo) DeactivateLinksOf(ctx context.Context, tx *sql.Tx, issueID string) error {
	_, err := r.on(tx).ExecContext(ctx, `UPDATE issue_links SET lifecycle=? WHERE (source_issue_id=? OR target_issue_id=?) AND lifecycle='active'`,
		domain.LifecycleDeactivated, issueID, issueID)
	return err
}
