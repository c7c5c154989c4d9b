package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// ThingKind discriminates the seven node kinds in the world tree.
type ThingKind string

const (
	ThingContainer ThingKind = "container"
	ThingRoom      ThingKind = "room"
	ThingAgent     ThingKind = "agent"
	ThingMCP       ThingKind = "mcp"
	ThingTool      ThingKind = "tool"
	ThingData      ThingKind = "data"
	ThingReference ThingKind = "reference"
)

// Thing is one node of the world tree.
type Thing struct {
	ID            string
	ParentID      *string
	Kind          ThingKind
	Name          string
	QualifiedName *string
	Content       *string
	URI           *string
	Metadata      string
	Code          *string
	DefaultSlot   *string
	Params        *string
	Availability  bool
	CreatedAt     int64
	UpdatedAt     int64
	DeletedAt     *int64
}

var thingColumns = []any{
	"id", "parent_id", "kind", "name", "qualified_name", "content", "uri", "metadata",
	"code", "default_slot", "params", "availability", "created_at", "updated_at", "deleted_at",
}

func scanThingRow(scanner interface{ Scan(...any) error }) (*Thing, error) {
	var (
		t             Thing
		parentID      sql.NullString
		qualifiedName sql.NullString
		content       sql.NullString
		uri           sql.NullString
		code          sql.NullString
		defaultSlot   sql.NullString
		params        sql.NullString
		deletedAt     sql.NullInt64
	)
	err := scanner.Scan(&t.ID, &parentID, &t.Kind, &t.Name, &qualifiedName, &content, &uri,
		&t.Metadata, &code, &defaultSlot, &params, &t.Availability, &t.CreatedAt, &t.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if parentID.Valid {
		t.ParentID = &parentID.String
	}
	if qualifiedName.Valid {
		t.QualifiedName = &qualifiedName.String
	}
	if content.Valid {
		t.Content = &content.String
	}
	if uri.Valid {
		t.URI = &uri.String
	}
	if code.Valid {
		t.Code = &code.String
	}
	if defaultSlot.Valid {
		t.DefaultSlot = &defaultSlot.String
	}
	if params.Valid {
		t.Params = &params.String
	}
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Int64
	}
	return &t, nil
}

// CreateThing inserts a new node under parentID (nil for the tree
// root), after checking that parentID exists and does not introduce a
// cycle (impossible for a freshly-created node with no descendants
// yet, but checked anyway for symmetry with MoveThing). qualifiedName
// is not checked here; the table's UNIQUE constraint rejects a
// duplicate, and it counts soft-deleted things too, so a deleted
// thing's qualified name cannot be reused.
func (s *Store) CreateThing(ctx context.Context, parentID *string, kind ThingKind, name string, qualifiedName *string) (*Thing, error) {
	if parentID != nil {
		cyclic, err := s.wouldCycle(ctx, *parentID, "")
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, errors.New("create thing: parent does not exist or introduces a cycle")
		}
	}

	id := s.newID()
	now := nowMillis()
	record := goqu.Record{
		"id": id, "kind": string(kind), "name": name, "metadata": "{}",
		"availability": true, "created_at": now, "updated_at": now,
	}
	if parentID != nil {
		record["parent_id"] = *parentID
	}
	if qualifiedName != nil {
		record["qualified_name"] = *qualifiedName
	}

	query, _, err := s.goqu.Insert(s.tables.things).Rows(record).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build create thing query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create thing %q: %w", name, err)
	}

	return &Thing{
		ID: id, ParentID: parentID, Kind: kind, Name: name, QualifiedName: qualifiedName,
		Metadata: "{}", Availability: true, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// GetThing returns nil, nil if id is absent or soft-deleted.
func (s *Store) GetThing(ctx context.Context, id string) (*Thing, error) {
	query, _, err := s.goqu.From(s.tables.things).Select(thingColumns...).
		Where(goqu.I("id").Eq(id), goqu.I("deleted_at").IsNull()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get thing query: %w", err)
	}
	t, err := scanThingRow(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get thing %q: %w", id, err)
	}
	return t, nil
}

// GetThingByQualifiedName returns nil, nil if no undeleted thing has
// that qualified name.
func (s *Store) GetThingByQualifiedName(ctx context.Context, qualifiedName string) (*Thing, error) {
	query, _, err := s.goqu.From(s.tables.things).Select(thingColumns...).
		Where(goqu.I("qualified_name").Eq(qualifiedName), goqu.I("deleted_at").IsNull()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get thing by qualified name query: %w", err)
	}
	t, err := scanThingRow(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get thing by qualified name %q: %w", qualifiedName, err)
	}
	return t, nil
}

// ListChildren returns the undeleted direct children of parentID (nil
// for the tree root).
func (s *Store) ListChildren(ctx context.Context, parentID *string) ([]*Thing, error) {
	qb := s.goqu.From(s.tables.things).Select(thingColumns...).Where(goqu.I("deleted_at").IsNull())
	if parentID != nil {
		qb = qb.Where(goqu.I("parent_id").Eq(*parentID))
	} else {
		qb = qb.Where(goqu.I("parent_id").IsNull())
	}
	query, _, err := qb.Order(goqu.I("name").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list children query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var out []*Thing
	for rows.Next() {
		t, err := scanThingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thing row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// MoveThing reparents id under newParentID, rejecting moves that would
// create a cycle (newParentID is id itself, or a descendant of id).
func (s *Store) MoveThing(ctx context.Context, id string, newParentID *string) error {
	if newParentID != nil {
		cyclic, err := s.wouldCycle(ctx, *newParentID, id)
		if err != nil {
			return err
		}
		if cyclic {
			return fmt.Errorf("move thing %q: would introduce a cycle under %q", id, *newParentID)
		}
	}

	record := goqu.Record{"updated_at": nowMillis()}
	if newParentID != nil {
		record["parent_id"] = *newParentID
	} else {
		record["parent_id"] = nil
	}

	query, _, err := s.goqu.Update(s.tables.things).Set(record).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build move thing query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("move thing %q: %w", id, err)
	}
	return nil
}

// wouldCycle walks up from candidateParent toward the root, returning
// true if it encounters excludeID (the node being moved) or never
// reaches a root (candidateParent or one of its ancestors does not
// exist or is soft-deleted).
func (s *Store) wouldCycle(ctx context.Context, candidateParent, excludeID string) (bool, error) {
	current := candidateParent
	for depth := 0; depth < 10000; depth++ {
		t, err := s.GetThing(ctx, current)
		if err != nil {
			return false, err
		}
		if t == nil {
			return true, nil
		}
		if t.ID == excludeID {
			return true, nil
		}
		if t.ParentID == nil {
			return false, nil
		}
		current = *t.ParentID
	}
	return true, errors.New("thing tree exceeds maximum depth during cycle check")
}

// SoftDeleteThing stamps deleted_at on id. Descendants are left in
// place (still reachable by direct id lookup) per the spec's
// soft-delete semantics; pruning them is a script-layer decision.
func (s *Store) SoftDeleteThing(ctx context.Context, id string) error {
	now := nowMillis()
	query, _, err := s.goqu.Update(s.tables.things).
		Set(goqu.Record{"deleted_at": now, "updated_at": now}).
		Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build soft delete thing query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("soft delete thing %q: %w", id, err)
	}
	return nil
}
