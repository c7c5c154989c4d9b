package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// AgentKind discriminates the four agent kinds.
type AgentKind string

const (
	AgentHuman     AgentKind = "human"
	AgentModel     AgentKind = "model"
	AgentMCPClient AgentKind = "mcp-client"
	AgentBot       AgentKind = "bot"
)

// ModelBackend describes a model-kind agent's backend binding.
// Present iff Agent.Kind == AgentModel.
type ModelBackend struct {
	Kind         string          `json:"kind"`
	ModelID      string          `json:"model_id"`
	Endpoint     string          `json:"endpoint"`
	Config       json.RawMessage `json:"config,omitempty"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
}

// Agent is one row of the agents table.
type Agent struct {
	ID           string
	Name         string
	Kind         AgentKind
	Capabilities []string
	Backend      *ModelBackend
	ScriptBodies json.RawMessage
	CreatedAt    int64
	UpdatedAt    int64
}

type agentRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	Kind            string         `db:"kind"`
	Capabilities    string         `db:"capabilities"`
	BackendKind     sql.NullString `db:"backend_kind"`
	BackendModelID  sql.NullString `db:"backend_model_id"`
	BackendEndpoint sql.NullString `db:"backend_endpoint"`
	BackendConfig   sql.NullString `db:"backend_config"`
	SystemPrompt    sql.NullString `db:"system_prompt"`
	ScriptBodies    sql.NullString `db:"script_bodies"`
	CreatedAt       int64          `db:"created_at"`
	UpdatedAt       int64          `db:"updated_at"`
}

func (r agentRow) toAgent() (*Agent, error) {
	var caps []string
	if r.Capabilities != "" {
		if err := json.Unmarshal([]byte(r.Capabilities), &caps); err != nil {
			return nil, fmt.Errorf("unmarshal capabilities for agent %q: %w", r.ID, err)
		}
	}
	a := &Agent{
		ID:           r.ID,
		Name:         r.Name,
		Kind:         AgentKind(r.Kind),
		Capabilities: caps,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.BackendKind.Valid {
		a.Backend = &ModelBackend{
			Kind:         r.BackendKind.String,
			ModelID:      r.BackendModelID.String,
			Endpoint:     r.BackendEndpoint.String,
			SystemPrompt: r.SystemPrompt.String,
		}
		if r.BackendConfig.Valid {
			a.Backend.Config = json.RawMessage(r.BackendConfig.String)
		}
	}
	if r.ScriptBodies.Valid {
		a.ScriptBodies = json.RawMessage(r.ScriptBodies.String)
	}
	return a, nil
}

const agentColumns = "id, name, kind, capabilities, backend_kind, backend_model_id, backend_endpoint, backend_config, system_prompt, script_bodies, created_at, updated_at"

func scanAgentRow(scanner interface{ Scan(...any) error }) (*Agent, error) {
	var r agentRow
	err := scanner.Scan(&r.ID, &r.Name, &r.Kind, &r.Capabilities, &r.BackendKind, &r.BackendModelID,
		&r.BackendEndpoint, &r.BackendConfig, &r.SystemPrompt, &r.ScriptBodies, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r.toAgent()
}

// CreateAgent inserts a new human/bot agent (model-kind agents set
// Backend via CreateModelAgent).
func (s *Store) CreateAgent(ctx context.Context, name string, kind AgentKind) (*Agent, error) {
	id := s.newID()
	now := nowMillis()

	query, _, err := s.goqu.Insert(s.tables.agents).Rows(goqu.Record{
		"id": id, "name": name, "kind": string(kind), "capabilities": "[]",
		"created_at": now, "updated_at": now,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build create agent query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create agent %q: %w", name, err)
	}
	return &Agent{ID: id, Name: name, Kind: kind, Capabilities: []string{}, CreatedAt: now, UpdatedAt: now}, nil
}

// GetAgentByName returns nil, nil if no live agent has that name.
func (s *Store) GetAgentByName(ctx context.Context, name string) (*Agent, error) {
	query, _, err := s.goqu.From(s.tables.agents).Select(goqu.L(agentColumns)).
		Where(goqu.I("name").Eq(name)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get agent query: %w", err)
	}
	a, err := scanAgentRow(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %q: %w", name, err)
	}
	return a, nil
}

// GetAgentByID returns nil, nil if no agent has that id.
func (s *Store) GetAgentByID(ctx context.Context, id string) (*Agent, error) {
	query, _, err := s.goqu.From(s.tables.agents).Select(goqu.L(agentColumns)).
		Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get agent by id query: %w", err)
	}
	a, err := scanAgentRow(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %q: %w", id, err)
	}
	return a, nil
}

// ListAgents returns every agent, ordered by name.
func (s *Store) ListAgents(ctx context.Context) ([]*Agent, error) {
	query, _, err := s.goqu.From(s.tables.agents).Select(goqu.L(agentColumns)).
		Order(goqu.I("name").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list agents query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var out []*Agent
	for rows.Next() {
		a, err := scanAgentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertAgentAuth records or rotates agent's credential for authKind.
func (s *Store) UpsertAgentAuth(ctx context.Context, agentID, authKind, authData string) error {
	now := nowMillis()
	query, _, err := s.goqu.Insert(s.tables.agentAuth).Rows(goqu.Record{
		"agent_id": agentID, "auth_kind": authKind, "auth_data": authData,
		"created_at": now, "updated_at": now,
	}).OnConflict(goqu.DoUpdate("agent_id, auth_kind", goqu.Record{
		"auth_data": authData, "updated_at": now,
	})).ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert agent_auth query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("upsert agent_auth for %q/%q: %w", agentID, authKind, err)
	}
	return nil
}

// FindAgentByAuth resolves the agent owning a given (authKind,
// authData) credential, the lookup at the heart of pubkey re-auth
// (S1): a returning connection with the same canonicalized key
// resolves to the same agent id rather than minting a new one.
func (s *Store) FindAgentByAuth(ctx context.Context, authKind, authData string) (*Agent, error) {
	query, _, err := s.goqu.From(s.tables.agentAuth).
		Select("agent_id").
		Where(goqu.I("auth_kind").Eq(authKind), goqu.I("auth_data").Eq(authData)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build find agent by auth query: %w", err)
	}
	var agentID string
	err = s.db.QueryRowContext(ctx, query).Scan(&agentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find agent by auth: %w", err)
	}
	return s.GetAgentByID(ctx, agentID)
}

// EnsureHumanByPubkey implements S1's full flow: find the agent owning
// canonicalizedKey, or create one named name plus its agent_auth row
// if none exists yet. Safe to call on every connection.
func (s *Store) EnsureHumanByPubkey(ctx context.Context, name, canonicalizedKey string) (*Agent, error) {
	existing, err := s.FindAgentByAuth(ctx, "pubkey", canonicalizedKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	agent, err := s.CreateAgent(ctx, name, AgentHuman)
	if err != nil {
		return nil, err
	}
	if err := s.UpsertAgentAuth(ctx, agent.ID, "pubkey", canonicalizedKey); err != nil {
		return nil, err
	}
	return agent, nil
}

// CreateModelAgent inserts a model-kind agent with its backend
// descriptor.
func (s *Store) CreateModelAgent(ctx context.Context, name string, backend ModelBackend) (*Agent, error) {
	id := s.newID()
	now := nowMillis()

	query, _, err := s.goqu.Insert(s.tables.agents).Rows(goqu.Record{
		"id": id, "name": name, "kind": string(AgentModel), "capabilities": "[]",
		"backend_kind": backend.Kind, "backend_model_id": backend.ModelID,
		"backend_endpoint": backend.Endpoint, "backend_config": string(backend.Config),
		"system_prompt": backend.SystemPrompt,
		"created_at":    now, "updated_at": now,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build create model agent query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create model agent %q: %w", name, err)
	}
	return &Agent{ID: id, Name: name, Kind: AgentModel, Capabilities: []string{}, Backend: &backend, CreatedAt: now, UpdatedAt: now}, nil
}

// DeleteAgent removes an agent and its credentials, for
// sshwarma-admin's "remove" subcommand.
func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	query, _, err := s.goqu.Delete(s.tables.agentAuth).Where(goqu.I("agent_id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete agent_auth query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete agent_auth for %q: %w", id, err)
	}

	query, _, err = s.goqu.Delete(s.tables.agents).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete agent query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete agent %q: %w", id, err)
	}
	return nil
}

// RemoveAgentAuth drops one credential kind from an agent, for
// sshwarma-admin's "remove-key" subcommand.
func (s *Store) RemoveAgentAuth(ctx context.Context, agentID, authKind string) error {
	query, _, err := s.goqu.Delete(s.tables.agentAuth).
		Where(goqu.I("agent_id").Eq(agentID), goqu.I("auth_kind").Eq(authKind)).ToSQL()
	if err != nil {
		return fmt.Errorf("build remove agent_auth query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("remove agent_auth %q/%q: %w", agentID, authKind, err)
	}
	return nil
}

// AgentAuth is one credential row, for sshwarma-admin's "keys" listing.
type AgentAuth struct {
	AuthKind  string
	AuthData  string
	CreatedAt int64
}

// ListAgentAuth returns every credential recorded for agentID.
func (s *Store) ListAgentAuth(ctx context.Context, agentID string) ([]AgentAuth, error) {
	query, _, err := s.goqu.From(s.tables.agentAuth).
		Select("auth_kind", "auth_data", "created_at").
		Where(goqu.I("agent_id").Eq(agentID)).
		Order(goqu.I("created_at").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list agent_auth query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list agent_auth for %q: %w", agentID, err)
	}
	defer rows.Close()

	var out []AgentAuth
	for rows.Next() {
		var a AgentAuth
		if err := rows.Scan(&a.AuthKind, &a.AuthData, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan agent_auth row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
