package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// ScriptScope discriminates where a script module is bound.
type ScriptScope string

const (
	ScriptSystem ScriptScope = "system"
	ScriptUser   ScriptScope = "user"
	ScriptRoom   ScriptScope = "room"
)

// Script is one row of the copy-on-write scripts table.
type Script struct {
	ID          string
	Scope       ScriptScope
	ScopeID     *string
	ModulePath  string
	Code        string
	ParentID    *string
	Description *string
	CreatedAt   int64
	CreatedBy   *string
}

var scriptColumns = []any{
	"id", "scope", "scope_id", "module_path", "code", "parent_id", "description", "created_at", "created_by",
}

func scanScriptRow(scanner interface{ Scan(...any) error }) (*Script, error) {
	var (
		sc          Script
		scopeID     sql.NullString
		parentID    sql.NullString
		description sql.NullString
		createdBy   sql.NullString
	)
	err := scanner.Scan(&sc.ID, &sc.Scope, &scopeID, &sc.ModulePath, &sc.Code, &parentID,
		&description, &sc.CreatedAt, &createdBy)
	if err != nil {
		return nil, err
	}
	if scopeID.Valid {
		sc.ScopeID = &scopeID.String
	}
	if parentID.Valid {
		sc.ParentID = &parentID.String
	}
	if description.Valid {
		sc.Description = &description.String
	}
	if createdBy.Valid {
		sc.CreatedBy = &createdBy.String
	}
	return &sc, nil
}

// CreateScriptVersion inserts a new version of (scope, scopeID,
// modulePath), chaining parentID to the previous current version if
// one exists. Older versions are retained for rollback; nothing is
// ever overwritten.
func (s *Store) CreateScriptVersion(ctx context.Context, scope ScriptScope, scopeID *string, modulePath, code, description string, createdBy *string) (*Script, error) {
	current, err := s.GetCurrentScript(ctx, scope, scopeID, modulePath)
	if err != nil {
		return nil, err
	}

	id := s.newID()
	now := nowMillis()
	record := goqu.Record{
		"id": id, "scope": string(scope), "module_path": modulePath, "code": code,
		"description": description, "created_at": now,
	}
	if scopeID != nil {
		record["scope_id"] = *scopeID
	}
	if current != nil {
		record["parent_id"] = current.ID
	}
	if createdBy != nil {
		record["created_by"] = *createdBy
	}

	query, _, err := s.goqu.Insert(s.tables.scripts).Rows(record).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build create script version query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create script version for %q: %w", modulePath, err)
	}

	result := &Script{
		ID: id, Scope: scope, ScopeID: scopeID, ModulePath: modulePath, Code: code,
		Description: &description, CreatedAt: now, CreatedBy: createdBy,
	}
	if current != nil {
		result.ParentID = &current.ID
	}
	return result, nil
}

// GetCurrentScript returns the row with the greatest (created_at, id)
// for (scope, scopeID, modulePath), or nil, nil if none exists. ULIDs
// are lexically sortable by creation time, so ordering by id alongside
// created_at breaks ties deterministically without a second clock
// read.
func (s *Store) GetCurrentScript(ctx context.Context, scope ScriptScope, scopeID *string, modulePath string) (*Script, error) {
	qb := s.goqu.From(s.tables.scripts).Select(scriptColumns...).
		Where(goqu.I("scope").Eq(string(scope)), goqu.I("module_path").Eq(modulePath))
	if scopeID != nil {
		qb = qb.Where(goqu.I("scope_id").Eq(*scopeID))
	} else {
		qb = qb.Where(goqu.I("scope_id").IsNull())
	}
	query, _, err := qb.Order(goqu.I("created_at").Desc(), goqu.I("id").Desc()).Limit(1).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get current script query: %w", err)
	}
	sc, err := scanScriptRow(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get current script %q: %w", modulePath, err)
	}
	return sc, nil
}

// ListScriptVersions returns every version of (scope, scopeID,
// modulePath) newest first, the order property 7 requires.
func (s *Store) ListScriptVersions(ctx context.Context, scope ScriptScope, scopeID *string, modulePath string) ([]*Script, error) {
	qb := s.goqu.From(s.tables.scripts).Select(scriptColumns...).
		Where(goqu.I("scope").Eq(string(scope)), goqu.I("module_path").Eq(modulePath))
	if scopeID != nil {
		qb = qb.Where(goqu.I("scope_id").Eq(*scopeID))
	} else {
		qb = qb.Where(goqu.I("scope_id").IsNull())
	}
	query, _, err := qb.Order(goqu.I("created_at").Desc(), goqu.I("id").Desc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list script versions query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list script versions for %q: %w", modulePath, err)
	}
	defer rows.Close()

	var out []*Script
	for rows.Next() {
		sc, err := scanScriptRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan script row: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
