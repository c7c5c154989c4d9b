package sqlite

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// LinkType discriminates the four row-to-row relationship kinds.
type LinkType string

const (
	LinkReply     LinkType = "reply"
	LinkQuote     LinkType = "quote"
	LinkRelates   LinkType = "relates"
	LinkContinues LinkType = "continues"
)

// AddTag records a many-to-many tag on rowID. Idempotent.
func (s *Store) AddTag(ctx context.Context, rowID, tag string) error {
	query, _, err := s.goqu.Insert(s.tables.tags).Rows(goqu.Record{
		"row_id": rowID, "tag": tag,
	}).OnConflict(goqu.DoNothing()).ToSQL()
	if err != nil {
		return fmt.Errorf("build add tag query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("add tag %q to row %q: %w", tag, rowID, err)
	}
	return nil
}

// RemoveTag removes a tag from rowID.
func (s *Store) RemoveTag(ctx context.Context, rowID, tag string) error {
	query, _, err := s.goqu.Delete(s.tables.tags).
		Where(goqu.I("row_id").Eq(rowID), goqu.I("tag").Eq(tag)).ToSQL()
	if err != nil {
		return fmt.Errorf("build remove tag query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("remove tag %q from row %q: %w", tag, rowID, err)
	}
	return nil
}

// ListTags returns every tag on rowID.
func (s *Store) ListTags(ctx context.Context, rowID string) ([]string, error) {
	query, _, err := s.goqu.From(s.tables.tags).Select("tag").
		Where(goqu.I("row_id").Eq(rowID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list tags query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tags for row %q: %w", rowID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scan tag row: %w", err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

// AddReaction records agentID's reaction on rowID. One reaction per
// (row, agent, reaction) is enforced by the primary key; a duplicate
// is a silent no-op.
func (s *Store) AddReaction(ctx context.Context, rowID, agentID, reaction string) error {
	query, _, err := s.goqu.Insert(s.tables.reactions).Rows(goqu.Record{
		"row_id": rowID, "agent_id": agentID, "reaction": reaction, "created_at": nowMillis(),
	}).OnConflict(goqu.DoNothing()).ToSQL()
	if err != nil {
		return fmt.Errorf("build add reaction query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("add reaction %q on row %q: %w", reaction, rowID, err)
	}
	return nil
}

// RemoveReaction removes agentID's reaction from rowID.
func (s *Store) RemoveReaction(ctx context.Context, rowID, agentID, reaction string) error {
	query, _, err := s.goqu.Delete(s.tables.reactions).
		Where(goqu.I("row_id").Eq(rowID), goqu.I("agent_id").Eq(agentID), goqu.I("reaction").Eq(reaction)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build remove reaction query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("remove reaction %q on row %q: %w", reaction, rowID, err)
	}
	return nil
}

// CreateLink records a typed relationship between two rows; the
// caller must ensure both endpoints exist (enforced at the SQL layer
// by the foreign keys).
func (s *Store) CreateLink(ctx context.Context, fromRow, toRow string, linkType LinkType) (string, error) {
	id := s.newID()
	query, _, err := s.goqu.Insert(s.tables.links).Rows(goqu.Record{
		"id": id, "from_row": fromRow, "to_row": toRow,
		"link_type": string(linkType), "created_at": nowMillis(),
	}).ToSQL()
	if err != nil {
		return "", fmt.Errorf("build create link query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return "", fmt.Errorf("create link %s->%s: %w", fromRow, toRow, err)
	}
	return id, nil
}
