package sqlite

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// PushView appends viewName to agentID's navigation view stack, the
// additive supplement backing the region-view layering the layout
// resolver composes against.
func (s *Store) PushView(ctx context.Context, agentID, viewName string) error {
	stack, err := s.ViewStack(ctx, agentID)
	if err != nil {
		return err
	}
	query, _, err := s.goqu.Insert(s.tables.viewStack).Rows(goqu.Record{
		"agent_id": agentID, "position": len(stack), "view_name": viewName, "pushed_at": nowMillis(),
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("build push view query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("push view %q for agent %q: %w", viewName, agentID, err)
	}
	return nil
}

// PopView removes and returns the top of agentID's view stack, or ""
// if the stack is empty.
func (s *Store) PopView(ctx context.Context, agentID string) (string, error) {
	stack, err := s.ViewStack(ctx, agentID)
	if err != nil {
		return "", err
	}
	if len(stack) == 0 {
		return "", nil
	}
	top := stack[len(stack)-1]
	delQuery, _, err := s.goqu.Delete(s.tables.viewStack).
		Where(goqu.I("agent_id").Eq(agentID), goqu.I("position").Eq(len(stack)-1)).ToSQL()
	if err != nil {
		return "", fmt.Errorf("build pop view query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, delQuery); err != nil {
		return "", fmt.Errorf("pop view for agent %q: %w", agentID, err)
	}
	return top, nil
}

// ViewStack returns agentID's full view stack, bottom to top.
func (s *Store) ViewStack(ctx context.Context, agentID string) ([]string, error) {
	query, _, err := s.goqu.From(s.tables.viewStack).Select("view_name").
		Where(goqu.I("agent_id").Eq(agentID)).
		Order(goqu.I("position").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build view stack query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list view stack for %q: %w", agentID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan view stack row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SetScrollOffset records agentID's scroll position within bufferID,
// restored the next time that buffer is rendered for that agent.
func (s *Store) SetScrollOffset(ctx context.Context, bufferID, agentID string, offset int) error {
	now := nowMillis()
	query, _, err := s.goqu.Insert(s.tables.bufferScroll).Rows(goqu.Record{
		"buffer_id": bufferID, "agent_id": agentID, "scroll_offset": offset, "updated_at": now,
	}).OnConflict(goqu.DoUpdate("buffer_id, agent_id", goqu.Record{
		"scroll_offset": offset, "updated_at": now,
	})).ToSQL()
	if err != nil {
		return fmt.Errorf("build set scroll offset query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("set scroll offset for %q/%q: %w", bufferID, agentID, err)
	}
	return nil
}

// ScrollOffset returns agentID's last recorded scroll offset within
// bufferID, or 0 if never set.
func (s *Store) ScrollOffset(ctx context.Context, bufferID, agentID string) (int, error) {
	query, _, err := s.goqu.From(s.tables.bufferScroll).Select("scroll_offset").
		Where(goqu.I("buffer_id").Eq(bufferID), goqu.I("agent_id").Eq(agentID)).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build scroll offset query: %w", err)
	}
	var offset int
	err = s.db.QueryRowContext(ctx, query).Scan(&offset)
	if err != nil {
		return 0, nil //nolint:nilerr // absent row means "never scrolled", i.e. offset 0
	}
	return offset, nil
}
