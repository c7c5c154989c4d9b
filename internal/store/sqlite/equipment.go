package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// Equipment is one row of the equipment table: an attachment of
// equippedThing onto contextThing, optionally into a named slot.
type Equipment struct {
	ContextThing  string
	EquippedThing string
	Slot          *string
	Priority      int
	Config        string
	CreatedAt     int64
	DeletedAt     *int64
}

// Attach records equippedThing attached to contextThing, enforcing
// uniqueness per (context, thing, slot) while active via the partial
// unique index.
func (s *Store) Attach(ctx context.Context, contextThing, equippedThing string, slot *string, priority int, config string) error {
	if config == "" {
		config = "{}"
	}
	record := goqu.Record{
		"context_thing": contextThing, "equipped_thing": equippedThing,
		"priority": priority, "config": config, "created_at": nowMillis(),
	}
	if slot != nil {
		record["slot"] = *slot
	}
	query, _, err := s.goqu.Insert(s.tables.equipment).Rows(record).ToSQL()
	if err != nil {
		return fmt.Errorf("build attach equipment query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("attach %q to %q: %w", equippedThing, contextThing, err)
	}
	return nil
}

// Detach soft-deletes the active equipment row matching the triple.
func (s *Store) Detach(ctx context.Context, contextThing, equippedThing string, slot *string) error {
	where := []goqu.Expression{
		goqu.I("context_thing").Eq(contextThing),
		goqu.I("equipped_thing").Eq(equippedThing),
		goqu.I("deleted_at").IsNull(),
	}
	if slot != nil {
		where = append(where, goqu.I("slot").Eq(*slot))
	} else {
		where = append(where, goqu.I("slot").IsNull())
	}

	query, _, err := s.goqu.Update(s.tables.equipment).
		Set(goqu.Record{"deleted_at": nowMillis()}).
		Where(where...).ToSQL()
	if err != nil {
		return fmt.Errorf("build detach equipment query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("detach %q from %q: %w", equippedThing, contextThing, err)
	}
	return nil
}

// ListEquipped returns the active equipment attached to contextThing,
// ordered by priority descending.
func (s *Store) ListEquipped(ctx context.Context, contextThing string) ([]*Equipment, error) {
	query, _, err := s.goqu.From(s.tables.equipment).
		Select("context_thing", "equipped_thing", "slot", "priority", "config", "created_at", "deleted_at").
		Where(goqu.I("context_thing").Eq(contextThing), goqu.I("deleted_at").IsNull()).
		Order(goqu.I("priority").Desc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list equipped query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list equipped for %q: %w", contextThing, err)
	}
	defer rows.Close()

	var out []*Equipment
	for rows.Next() {
		var (
			e         Equipment
			slot      sql.NullString
			deletedAt sql.NullInt64
		)
		if err := rows.Scan(&e.ContextThing, &e.EquippedThing, &slot, &e.Priority, &e.Config, &e.CreatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("scan equipment row: %w", err)
		}
		if slot.Valid {
			e.Slot = &slot.String
		}
		if deletedAt.Valid {
			e.DeletedAt = &deletedAt.Int64
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
