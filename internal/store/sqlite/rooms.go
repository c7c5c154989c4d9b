package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// Room is one row of the rooms table.
type Room struct {
	ID        string
	Name      string
	CreatedAt int64
}

// CreateRoom inserts a new room. The caller must validate the name
// charset and uniqueness preconditions named in spec §4.11 before
// calling; the unique index is the final backstop.
func (s *Store) CreateRoom(ctx context.Context, name string) (*Room, error) {
	id := s.newID()
	now := nowMillis()

	query, _, err := s.goqu.Insert(s.tables.rooms).Rows(goqu.Record{
		"id": id, "name": name, "created_at": now,
	}).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build create room query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create room %q: %w", name, err)
	}
	return &Room{ID: id, Name: name, CreatedAt: now}, nil
}

// GetRoomByName returns nil, nil if no room has that name.
func (s *Store) GetRoomByName(ctx context.Context, name string) (*Room, error) {
	query, _, err := s.goqu.From(s.tables.rooms).
		Select("id", "name", "created_at").
		Where(goqu.I("name").Eq(name)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get room query: %w", err)
	}
	var r Room
	err = s.db.QueryRowContext(ctx, query).Scan(&r.ID, &r.Name, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room %q: %w", name, err)
	}
	return &r, nil
}

// ListRooms returns every room, ordered by name.
func (s *Store) ListRooms(ctx context.Context) ([]*Room, error) {
	query, _, err := s.goqu.From(s.tables.rooms).
		Select("id", "name", "created_at").
		Order(goqu.I("name").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list rooms query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []*Room
	for rows.Next() {
		var r Room
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room row: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteRoom removes roomID; room_kv rows cascade via the foreign key.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	query, _, err := s.goqu.Delete(s.tables.rooms).Where(goqu.I("id").Eq(roomID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete room query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete room %q: %w", roomID, err)
	}
	return nil
}

// SetRoomKV upserts one key on roomID. Keys prefixed "exit." encode
// navigation edges, interpreted by the command layer, not the store.
func (s *Store) SetRoomKV(ctx context.Context, roomID, key, value string) error {
	now := nowMillis()
	query, _, err := s.goqu.Insert(s.tables.roomKV).Rows(goqu.Record{
		"room_id": roomID, "key": key, "value": value, "updated_at": now,
	}).OnConflict(goqu.DoUpdate("room_id, key", goqu.Record{
		"value": value, "updated_at": now,
	})).ToSQL()
	if err != nil {
		return fmt.Errorf("build set room_kv query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("set room_kv %q/%q: %w", roomID, key, err)
	}
	return nil
}

// DeleteRoomKV removes one key from roomID.
func (s *Store) DeleteRoomKV(ctx context.Context, roomID, key string) error {
	query, _, err := s.goqu.Delete(s.tables.roomKV).
		Where(goqu.I("room_id").Eq(roomID), goqu.I("key").Eq(key)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete room_kv query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("delete room_kv %q/%q: %w", roomID, key, err)
	}
	return nil
}

// ListRoomKV returns every key/value pair for roomID.
func (s *Store) ListRoomKV(ctx context.Context, roomID string) (map[string]string, error) {
	query, _, err := s.goqu.From(s.tables.roomKV).
		Select("key", "value").Where(goqu.I("room_id").Eq(roomID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list room_kv query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list room_kv %q: %w", roomID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan room_kv row: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Exits returns the navigation edges of roomID: every room_kv key
// prefixed "exit." with the prefix stripped as the direction name.
func (s *Store) Exits(ctx context.Context, roomID string) (map[string]string, error) {
	kv, err := s.ListRoomKV(ctx, roomID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	const prefix = "exit."
	for k, v := range kv {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = v
		}
	}
	return out, nil
}
