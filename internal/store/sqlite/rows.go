package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// ContentFormat discriminates how a row's content is interpreted for
// display.
type ContentFormat string

const (
	ContentText     ContentFormat = "text"
	ContentMarkdown ContentFormat = "markdown"
	ContentJSON     ContentFormat = "json"
	ContentANSI     ContentFormat = "ansi"
)

// Well-known content_method discriminators. The set is open-ended
// (content_method is a free-form string); these are the ones the core
// itself writes.
const (
	MethodPresenceJoin  = "presence.join"
	MethodPresenceLeave = "presence.leave"
	MethodMessageUser   = "message.user"
	MethodMessageModel  = "message.model"
	MethodToolCall      = "tool.call"
	MethodToolResult    = "tool.result"
	MethodThinkingChunk = "thinking.stream"
)

// Row is one row of the rows table.
type Row struct {
	ID            string
	BufferID      string
	ParentRowID   *string
	Position      float64
	SourceAgentID *string
	SessionID     *string
	ContentMethod string
	ContentFormat ContentFormat
	ContentMeta   json.RawMessage
	Content       string
	Collapsed     bool
	Ephemeral     bool
	Mutable       bool
	Pinned        bool
	Hidden        bool
	TokenCount    *int64
	CostUSD       *float64
	LatencyMS     *int64
	CreatedAt     int64
	UpdatedAt     int64
	FinalizedAt   *int64
}

// AppendRowParams are the fields a writer supplies; the store fills in
// id, position, and timestamps.
type AppendRowParams struct {
	BufferID      string
	ParentRowID   *string
	SourceAgentID *string
	SessionID     *string
	ContentMethod string
	ContentFormat ContentFormat
	ContentMeta   json.RawMessage
	Content       string
	Ephemeral     bool
	Mutable       bool
	Pinned        bool
}

// nextPosition returns the fractional position one gap past the
// highest existing position within (bufferID, parentRowID), so new
// appends never collide and insertions can still use a midpoint
// between two neighbors.
func (s *Store) nextPosition(ctx context.Context, bufferID string, parentRowID *string) (float64, error) {
	qb := s.goqu.From(s.tables.rows).Select(goqu.MAX("position")).
		Where(goqu.I("buffer_id").Eq(bufferID))
	if parentRowID != nil {
		qb = qb.Where(goqu.I("parent_row_id").Eq(*parentRowID))
	} else {
		qb = qb.Where(goqu.I("parent_row_id").IsNull())
	}
	query, _, err := qb.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build next position query: %w", err)
	}
	var max sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return 0, fmt.Errorf("query next position: %w", err)
	}
	if !max.Valid {
		return 1000, nil
	}
	return max.Float64 + 1000, nil
}

// AppendRow inserts a new row at the end of its (buffer, parent)
// sequence, the single mutation point every dispatch path (chat,
// commands, tool results, presence) funnels through.
func (s *Store) AppendRow(ctx context.Context, p AppendRowParams) (*Row, error) {
	pos, err := s.nextPosition(ctx, p.BufferID, p.ParentRowID)
	if err != nil {
		return nil, err
	}

	id := s.newID()
	now := nowMillis()
	if p.ContentFormat == "" {
		p.ContentFormat = ContentText
	}
	if p.ContentMeta == nil {
		p.ContentMeta = json.RawMessage("{}")
	}

	record := goqu.Record{
		"id": id, "buffer_id": p.BufferID, "position": pos,
		"content_method": p.ContentMethod, "content_format": string(p.ContentFormat),
		"content_meta": string(p.ContentMeta), "content": p.Content,
		"ephemeral": p.Ephemeral, "mutable": p.Mutable, "pinned": p.Pinned,
		"created_at": now, "updated_at": now,
	}
	if p.ParentRowID != nil {
		record["parent_row_id"] = *p.ParentRowID
	}
	if p.SourceAgentID != nil {
		record["source_agent_id"] = *p.SourceAgentID
	}
	if p.SessionID != nil {
		record["session_id"] = *p.SessionID
	}

	query, _, err := s.goqu.Insert(s.tables.rows).Rows(record).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build append row query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("append row to buffer %q: %w", p.BufferID, err)
	}

	return &Row{
		ID: id, BufferID: p.BufferID, ParentRowID: p.ParentRowID, Position: pos,
		SourceAgentID: p.SourceAgentID, SessionID: p.SessionID, ContentMethod: p.ContentMethod,
		ContentFormat: p.ContentFormat, ContentMeta: p.ContentMeta, Content: p.Content,
		Ephemeral: p.Ephemeral, Mutable: p.Mutable, Pinned: p.Pinned,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

var rowColumns = []any{
	"id", "buffer_id", "parent_row_id", "position", "source_agent_id", "session_id",
	"content_method", "content_format", "content_meta", "content",
	"collapsed", "ephemeral", "mutable", "pinned", "hidden",
	"token_count", "cost_usd", "latency_ms", "created_at", "updated_at", "finalized_at",
}

func scanRowRow(scanner interface{ Scan(...any) error }) (*Row, error) {
	var (
		r             Row
		parentRowID   sql.NullString
		sourceAgentID sql.NullString
		sessionID     sql.NullString
		tokenCount    sql.NullInt64
		costUSD       sql.NullFloat64
		latencyMS     sql.NullInt64
		finalizedAt   sql.NullInt64
	)
	err := scanner.Scan(&r.ID, &r.BufferID, &parentRowID, &r.Position, &sourceAgentID, &sessionID,
		&r.ContentMethod, &r.ContentFormat, &r.ContentMeta, &r.Content,
		&r.Collapsed, &r.Ephemeral, &r.Mutable, &r.Pinned, &r.Hidden,
		&tokenCount, &costUSD, &latencyMS, &r.CreatedAt, &r.UpdatedAt, &finalizedAt)
	if err != nil {
		return nil, err
	}
	if parentRowID.Valid {
		r.ParentRowID = &parentRowID.String
	}
	if sourceAgentID.Valid {
		r.SourceAgentID = &sourceAgentID.String
	}
	if sessionID.Valid {
		r.SessionID = &sessionID.String
	}
	if tokenCount.Valid {
		r.TokenCount = &tokenCount.Int64
	}
	if costUSD.Valid {
		r.CostUSD = &costUSD.Float64
	}
	if latencyMS.Valid {
		r.LatencyMS = &latencyMS.Int64
	}
	if finalizedAt.Valid {
		r.FinalizedAt = &finalizedAt.Int64
	}
	return &r, nil
}

// ListRows returns up to limit most-recent rows of bufferID in
// ascending position order (oldest first), the shape /history wants.
// limit ≤ 0 means unlimited.
func (s *Store) ListRows(ctx context.Context, bufferID string, limit int) ([]*Row, error) {
	qb := s.goqu.From(s.tables.rows).Select(rowColumns...).
		Where(goqu.I("buffer_id").Eq(bufferID)).
		Order(goqu.I("position").Desc())
	if limit > 0 {
		qb = qb.Limit(uint(limit))
	}
	query, _, err := qb.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list rows query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rows for buffer %q: %w", bufferID, err)
	}
	defer rows.Close()

	var out []*Row
	for rows.Next() {
		r, err := scanRowRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse to ascending position order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// FinalizeRow marks content as no-further-edits, stamping
// finalized_at. Required before a mutable row can be excluded from
// further streaming updates.
func (s *Store) FinalizeRow(ctx context.Context, rowID string) error {
	now := nowMillis()
	query, _, err := s.goqu.Update(s.tables.rows).Set(goqu.Record{
		"mutable": false, "finalized_at": now, "updated_at": now,
	}).Where(goqu.I("id").Eq(rowID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build finalize row query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("finalize row %q: %w", rowID, err)
	}
	return nil
}

// UpdateRowContent overwrites the content of a still-mutable row, e.g.
// to append the next chunk of a streamed model reply.
func (s *Store) UpdateRowContent(ctx context.Context, rowID, content string) error {
	query, _, err := s.goqu.Update(s.tables.rows).Set(goqu.Record{
		"content": content, "updated_at": nowMillis(),
	}).Where(goqu.I("id").Eq(rowID), goqu.I("mutable").Eq(true)).ToSQL()
	if err != nil {
		return fmt.Errorf("build update row content query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("update row %q: %w", rowID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update row %q: not found or no longer mutable", rowID)
	}
	return nil
}

// PresentAgentNames runs the event-sourced presence query for bufferID
// (S2's /who): group presence.join/presence.leave rows by
// source_agent_id, keep only the latest top-level row (by position,
// which grows with every top-level append) per agent, and return the
// names of agents whose latest presence row is a join.
func (s *Store) PresentAgentNames(ctx context.Context, bufferID string) ([]string, error) {
	const query = `
SELECT a.name
FROM (
	SELECT r.source_agent_id, r.content_method
	FROM {{PREFIX}}rows r
	INNER JOIN (
		SELECT source_agent_id, MAX(position) AS latest
		FROM {{PREFIX}}rows
		WHERE buffer_id = ? AND content_method IN (?, ?) AND source_agent_id IS NOT NULL AND parent_row_id IS NULL
		GROUP BY source_agent_id
	) latest_per_agent
	ON r.source_agent_id = latest_per_agent.source_agent_id AND r.position = latest_per_agent.latest
	WHERE r.buffer_id = ? AND r.parent_row_id IS NULL
) presence
JOIN {{PREFIX}}agents a ON a.id = presence.source_agent_id
WHERE presence.content_method = ?
ORDER BY a.name ASC`

	sqlText := replacePrefix(query, s.prefix)
	rows, err := s.db.QueryContext(ctx, sqlText, bufferID, MethodPresenceJoin, MethodPresenceLeave, bufferID, MethodPresenceJoin)
	if err != nil {
		return nil, fmt.Errorf("presence query for buffer %q: %w", bufferID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan presence row: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func replacePrefix(sqlText, prefix string) string {
	out := make([]byte, 0, len(sqlText))
	for i := 0; i < len(sqlText); {
		if i+len("{{PREFIX}}") <= len(sqlText) && sqlText[i:i+len("{{PREFIX}}")] == "{{PREFIX}}" {
			out = append(out, prefix...)
			i += len("{{PREFIX}}")
			continue
		}
		out = append(out, sqlText[i])
		i++
	}
	return string(out)
}
