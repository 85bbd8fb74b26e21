package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/HendryAvila/reqgraph/internal/links"
)

const linkColumns = `id, project_id, source_type, source_id, target_type, target_id,
	link_type, suspect, suspect_reason, created_at, updated_at`

// InsertLink persists a new link. A second link with the same endpoints and
// type is rejected.
func (s *Store) InsertLink(ctx context.Context, l links.Link) (*links.Link, error) {
	_, err := s.execHook(ctx, s.db,
		`INSERT INTO requirement_links (`+linkColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.ProjectID, string(l.Source.Type), l.Source.ID, string(l.Target.Type), l.Target.ID,
		l.LinkType, l.Suspect, nullableString(l.SuspectReason), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("link already exists: %s → %s (%s)", l.Source, l.Target, l.LinkType)
		}
		return nil, fmt.Errorf("creating link: %w", err)
	}
	return s.GetLink(ctx, l.ProjectID, l.ID)
}

// GetLink returns a link of the project by ID.
func (s *Store) GetLink(ctx context.Context, projectID, id string) (*links.Link, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+linkColumns+` FROM requirement_links WHERE project_id = ? AND id = ?`,
		projectID, id,
	)
	l, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("link %s: %w", id, links.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading link %s: %w", id, err)
	}
	return l, nil
}

// UpdateLinkSuspect writes the suspect flag, reason and updated_at of a link.
func (s *Store) UpdateLinkSuspect(ctx context.Context, l links.Link) (*links.Link, error) {
	res, err := s.execHook(ctx, s.db,
		`UPDATE requirement_links
		 SET suspect = ?, suspect_reason = ?, updated_at = ?
		 WHERE project_id = ? AND id = ?`,
		l.Suspect, nullableString(l.SuspectReason), l.UpdatedAt, l.ProjectID, l.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating link %s: %w", l.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("link %s: %w", l.ID, links.ErrNotFound)
	}
	return s.GetLink(ctx, l.ProjectID, l.ID)
}

// ListLinks returns the project's links matching f, ordered by updated_at
// then id.
func (s *Store) ListLinks(ctx context.Context, projectID string, f links.Filter) ([]links.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM requirement_links WHERE project_id = ?`
	args := []any{projectID}
	if f.Suspect != nil {
		query += " AND suspect = ?"
		args = append(args, *f.Suspect)
	}
	if f.Node != nil {
		query += " AND ((source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?))"
		args = append(args, string(f.Node.Type), f.Node.ID, string(f.Node.Type), f.Node.ID)
	}
	query += " ORDER BY updated_at, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying links: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []links.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// DeleteLinksForNode hard-deletes every link touching the node and returns
// how many were removed.
func (s *Store) DeleteLinksForNode(ctx context.Context, projectID string, ref links.NodeRef) (int, error) {
	res, err := s.execHook(ctx, s.db,
		`DELETE FROM requirement_links
		 WHERE project_id = ?
		   AND ((source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?))`,
		projectID, string(ref.Type), ref.ID, string(ref.Type), ref.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting links of %s: %w", ref, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(r rowScanner) (*links.Link, error) {
	var (
		l                      links.Link
		sourceType, targetType string
	)
	if err := r.Scan(
		&l.ID, &l.ProjectID, &sourceType, &l.Source.ID, &targetType, &l.Target.ID,
		&l.LinkType, &l.Suspect, &l.SuspectReason, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.Source.Type = links.NodeType(sourceType)
	l.Target.Type = links.NodeType(targetType)
	return &l, nil
}
