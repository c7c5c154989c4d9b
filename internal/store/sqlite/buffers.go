package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
)

// BufferType discriminates the four buffer kinds.
type BufferType string

const (
	BufferRoomChat   BufferType = "room_chat"
	BufferThinking   BufferType = "thinking"
	BufferToolOutput BufferType = "tool_output"
	BufferScratch    BufferType = "scratch"
)

// TombstoneStatus is the terminal state of a tombstoned buffer.
type TombstoneStatus string

const (
	TombstoneSuccess   TombstoneStatus = "success"
	TombstoneFailure   TombstoneStatus = "failure"
	TombstoneCancelled TombstoneStatus = "cancelled"
)

// Buffer is one row of the buffers table.
type Buffer struct {
	ID               string
	RoomID           *string
	OwnerAgentID     *string
	BufferType       BufferType
	Tombstoned       bool
	TombstoneStatus  *TombstoneStatus
	TombstoneSummary *string
	TombstonedAt     *int64
	ParentBufferID   *string
	IncludeInWrap    bool
	WrapPriority     int
	CreatedAt        int64
	UpdatedAt        int64
}

// CreateRoomChatBuffer creates the single room_chat buffer attached to
// roomID, as happens on room creation (S2).
func (s *Store) CreateRoomChatBuffer(ctx context.Context, roomID string) (*Buffer, error) {
	return s.createBuffer(ctx, &roomID, nil, BufferRoomChat, nil)
}

// CreateOwnedBuffer creates a thinking/tool_output/scratch buffer owned
// by an agent rather than attached to a room.
func (s *Store) CreateOwnedBuffer(ctx context.Context, ownerAgentID string, bufferType BufferType, parentBufferID *string) (*Buffer, error) {
	return s.createBuffer(ctx, nil, &ownerAgentID, bufferType, parentBufferID)
}

func (s *Store) createBuffer(ctx context.Context, roomID, ownerAgentID *string, bufferType BufferType, parentBufferID *string) (*Buffer, error) {
	id := s.newID()
	now := nowMillis()

	record := goqu.Record{
		"id": id, "buffer_type": string(bufferType),
		"include_in_wrap": true, "wrap_priority": 0,
		"created_at": now, "updated_at": now,
	}
	if roomID != nil {
		record["room_id"] = *roomID
	}
	if ownerAgentID != nil {
		record["owner_agent_id"] = *ownerAgentID
	}
	if parentBufferID != nil {
		record["parent_buffer_id"] = *parentBufferID
	}

	query, _, err := s.goqu.Insert(s.tables.buffers).Rows(record).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build create buffer query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return nil, fmt.Errorf("create buffer: %w", err)
	}

	return &Buffer{
		ID: id, RoomID: roomID, OwnerAgentID: ownerAgentID, BufferType: bufferType,
		ParentBufferID: parentBufferID, IncludeInWrap: true, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// GetRoomChatBuffer returns the room_chat buffer for roomID, or nil,
// nil if it has none.
func (s *Store) GetRoomChatBuffer(ctx context.Context, roomID string) (*Buffer, error) {
	query, _, err := s.goqu.From(s.tables.buffers).
		Select(bufferColumns...).
		Where(goqu.I("room_id").Eq(roomID), goqu.I("buffer_type").Eq(string(BufferRoomChat))).
		Limit(1).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get room chat buffer query: %w", err)
	}
	b, err := scanBufferRow(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get room chat buffer for %q: %w", roomID, err)
	}
	return b, nil
}

var bufferColumns = []any{
	"id", "room_id", "owner_agent_id", "buffer_type", "tombstoned", "tombstone_status",
	"tombstone_summary", "tombstoned_at", "parent_buffer_id", "include_in_wrap", "wrap_priority",
	"created_at", "updated_at",
}

func scanBufferRow(scanner interface{ Scan(...any) error }) (*Buffer, error) {
	var (
		b               Buffer
		roomID          sql.NullString
		ownerAgentID    sql.NullString
		tombstoned      bool
		tombstoneStatus sql.NullString
		tombstoneSum    sql.NullString
		tombstonedAt    sql.NullInt64
		parentBufferID  sql.NullString
	)
	err := scanner.Scan(&b.ID, &roomID, &ownerAgentID, &b.BufferType, &tombstoned, &tombstoneStatus,
		&tombstoneSum, &tombstonedAt, &parentBufferID, &b.IncludeInWrap, &b.WrapPriority,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Tombstoned = tombstoned
	if roomID.Valid {
		b.RoomID = &roomID.String
	}
	if ownerAgentID.Valid {
		b.OwnerAgentID = &ownerAgentID.String
	}
	if tombstoneStatus.Valid {
		st := TombstoneStatus(tombstoneStatus.String)
		b.TombstoneStatus = &st
	}
	if tombstoneSum.Valid {
		b.TombstoneSummary = &tombstoneSum.String
	}
	if tombstonedAt.Valid {
		b.TombstonedAt = &tombstonedAt.Int64
	}
	if parentBufferID.Valid {
		b.ParentBufferID = &parentBufferID.String
	}
	return &b, nil
}

// GetBuffer returns nil, nil if id is absent.
func (s *Store) GetBuffer(ctx context.Context, id string) (*Buffer, error) {
	query, _, err := s.goqu.From(s.tables.buffers).
		Select(bufferColumns...).Where(goqu.I("id").Eq(id)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get buffer query: %w", err)
	}
	b, err := scanBufferRow(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get buffer %q: %w", id, err)
	}
	return b, nil
}

// ForkBuffer creates a new buffer of the same type with parentBufferID
// set, the snapshot mechanism used to branch a sub-task off an
// existing conversation.
func (s *Store) ForkBuffer(ctx context.Context, parent *Buffer) (*Buffer, error) {
	return s.createBuffer(ctx, parent.RoomID, parent.OwnerAgentID, parent.BufferType, &parent.ID)
}

// TombstoneBuffer finalizes buf with a terminal status and summary,
// the transition that marks a sub-task as terminated.
func (s *Store) TombstoneBuffer(ctx context.Context, bufferID string, status TombstoneStatus, summary string) error {
	now := nowMillis()
	query, _, err := s.goqu.Update(s.tables.buffers).Set(goqu.Record{
		"tombstoned": true, "tombstone_status": string(status), "tombstone_summary": summary,
		"tombstoned_at": now, "updated_at": now,
	}).Where(goqu.I("id").Eq(bufferID)).ToSQL()
	if err != nil {
		return fmt.Errorf("build tombstone buffer query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("tombstone buffer %q: %w", bufferID, err)
	}
	return nil
}
