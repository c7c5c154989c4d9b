package commands

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

var roomNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateRoomName enforces spec.md §4.11's room-name charset.
func ValidateRoomName(name string) error {
	if name == "" || !roomNamePattern.MatchString(name) {
		return fmt.Errorf("room name %q must match [A-Za-z0-9_-]+", name)
	}
	return nil
}

// requireJoinedRoom returns the current room/buffer or an error if the
// session isn't in one. Every write command calls this first.
func requireJoinedRoom(sess Session) (roomID, bufferID string, err error) {
	room, buf, ok := sess.CurrentRoom()
	if !ok {
		return "", "", fmt.Errorf("you must join a room first")
	}
	return room.ID, buf.ID, nil
}

// requireRoomExists resolves name to a room or errors that it doesn't
// exist, as `join` and `go` both need.
func requireRoomExists(ctx context.Context, sess Session, name string) (*sqlite.Room, error) {
	if err := ValidateRoomName(name); err != nil {
		return nil, err
	}
	room, err := sess.Store().GetRoomByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("look up room %q: %w", name, err)
	}
	if room == nil {
		return nil, fmt.Errorf("no room named %q", name)
	}
	return room, nil
}

// requireRoomNotExists is `create`'s precondition: the name must be
// free.
func requireRoomNotExists(ctx context.Context, sess Session, name string) error {
	if err := ValidateRoomName(name); err != nil {
		return err
	}
	room, err := sess.Store().GetRoomByName(ctx, name)
	if err != nil {
		return fmt.Errorf("look up room %q: %w", name, err)
	}
	if room != nil {
		return fmt.Errorf("room %q already exists", name)
	}
	return nil
}
