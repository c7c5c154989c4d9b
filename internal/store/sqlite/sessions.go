package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// SessionKind discriminates the four session transports.
type SessionKind string

const (
	SessionSSH      SessionKind = "ssh"
	SessionMCP      SessionKind = "mcp"
	SessionAPI      SessionKind = "api"
	SessionInternal SessionKind = "internal"
)

// AgentSession is one row of the agent_sessions table.
type AgentSession struct {
	ID             string
	AgentID        string
	Kind           SessionKind
	ConnectedAt    int64
	DisconnectedAt *int64
	Metadata       json.RawMessage
}

// OpenSession records a new connected session for agentID.
func (s *Store) OpenSession(ctx context.Context, agentID string, kind SessionKind, metadata json.RawMessage) (*AgentSession, error) {
	id := s.newID()
	now := nowMillis()
	if metadata == nil {
		metadata = json.RawMessage("{}")
	}

	query, _, err := s.goqu.Insert(s.tables.agentSessions).Rows(goqu.Record{
		"id": id, "agent_id": agentID, "kind": string(kind),
		"connected_at": now, "metadata": string(metadata),
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build open session query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("open session for agent %q: %w", agentID, err)
	}
	return &AgentSession{ID: id, AgentID: agentID, Kind: kind, ConnectedAt: now, Metadata: metadata}, nil
}

// CloseSession stamps disconnected_at for id. disconnectedAt must be
// ≥ the session's connected_at per the invariant; callers pass the
// current time.
func (s *Store) CloseSession(ctx context.Context, id string, disconnectedAt int64) error {
	query, _, err := s.goqu.Update(s.tables.agentSessions).
		Set(goqu.Record{"disconnected_at": disconnectedAt}).
		Where(goqu.I("id").Eq(id), goqu.I("connected_at").Lte(disconnectedAt)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build close session query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("close session %q: %w", id, err)
	}
	return nil
}

// GetSession returns nil, nil if absent.
func (s *Store) GetSession(ctx context.Context, id string) (*AgentSession, error) {
	query, _, err := s.goqu.From(s.tables.agentSessions).
		Select("id", "agent_id", "kind", "connected_at", "disconnected_at", "metadata").
		Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get session query: %w", err)
	}

	var (
		row            AgentSession
		kind           string
		disconnectedAt sql.NullInt64
		metadata       string
	)
	err = s.db.QueryRowContext(ctx, query).Scan(&row.ID, &row.AgentID, &kind, &row.ConnectedAt, &disconnectedAt, &metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %q: %w", id, err)
	}
	row.Kind = SessionKind(kind)
	row.Metadata = json.RawMessage(metadata)
	if disconnectedAt.Valid {
		row.DisconnectedAt = &disconnectedAt.Int64
	}
	return &row, nil
}
