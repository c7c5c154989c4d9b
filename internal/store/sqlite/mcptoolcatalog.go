package sqlite

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// McpToolEntry is one row of the mcp_tool_catalog table, rebuilt
// wholesale each time a connection's tools refresh.
type McpToolEntry struct {
	MCPID       string
	ToolName    string
	Description string
	InputSchema string
}

// ReplaceToolCatalog atomically replaces every cataloged tool for
// mcpID with entries, keeping the on-disk catalog synchronized with
// the live MCP manager state after a refresh_tools or a reconnect.
func (s *Store) ReplaceToolCatalog(ctx context.Context, mcpID string, entries []McpToolEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tool catalog transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	delQuery, _, err := s.goqu.Delete(s.tables.mcpToolCatalog).
		Where(goqu.I("mcp_id").Eq(mcpID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete tool catalog query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, delQuery); err != nil {
		return fmt.Errorf("clear tool catalog for %q: %w", mcpID, err)
	}

	now := nowMillis()
	for _, e := range entries {
		insQuery, _, err := s.goqu.Insert(s.tables.mcpToolCatalog).Rows(goqu.Record{
			"mcp_id": mcpID, "tool_name": e.ToolName, "description": e.Description,
			"input_schema": e.InputSchema, "updated_at": now,
		}).ToSQL()
		if err != nil {
			return fmt.Errorf("build insert tool catalog entry query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insQuery); err != nil {
			return fmt.Errorf("insert tool catalog entry %q/%q: %w", mcpID, e.ToolName, err)
		}
	}

	return tx.Commit()
}

// ListToolCatalog returns every cataloged tool for mcpID.
func (s *Store) ListToolCatalog(ctx context.Context, mcpID string) ([]McpToolEntry, error) {
	query, _, err := s.goqu.From(s.tables.mcpToolCatalog).
		Select("mcp_id", "tool_name", "description", "input_schema").
		Where(goqu.I("mcp_id").Eq(mcpID)).
		Order(goqu.I("tool_name").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list tool catalog query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tool catalog for %q: %w", mcpID, err)
	}
	defer rows.Close()

	var out []McpToolEntry
	for rows.Next() {
		var e McpToolEntry
		if err := rows.Scan(&e.MCPID, &e.ToolName, &e.Description, &e.InputSchema); err != nil {
			return nil, fmt.Errorf("scan tool catalog row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
