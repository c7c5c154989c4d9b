package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

func cmdJoin(ctx context.Context, sess Session, args string) (string, error) {
	room, err := requireRoomExists(ctx, sess, strings.TrimSpace(args))
	if err != nil {
		return "", err
	}
	return enterRoom(ctx, sess, room)
}

func cmdLeave(ctx context.Context, sess Session, args string) (string, error) {
	room, buf, ok := sess.CurrentRoom()
	if !ok {
		return "You are not in a room.", nil
	}
	agent := sess.Agent()
	if _, err := sess.Store().AppendRow(ctx, sqlite.AppendRowParams{
		BufferID:      buf.ID,
		SourceAgentID: &agent.ID,
		ContentMethod: sqlite.MethodPresenceLeave,
		ContentFormat: sqlite.ContentText,
		Content:       fmt.Sprintf("%s left", agent.Name),
	}); err != nil {
		return "", fmt.Errorf("append leave row: %w", err)
	}
	sess.MarkDirty("room." + room.ID)
	sess.ClearRoom()
	return fmt.Sprintf("Left %s.", room.Name), nil
}

func cmdGo(ctx context.Context, sess Session, args string) (string, error) {
	current, _, ok := sess.CurrentRoom()
	if !ok {
		return "", fmt.Errorf("you must join a room first")
	}
	direction := strings.TrimSpace(args)
	if direction == "" {
		return "", fmt.Errorf("go requires a direction")
	}
	exits, err := sess.Store().Exits(ctx, current.ID)
	if err != nil {
		return "", fmt.Errorf("list exits: %w", err)
	}
	target, ok := exits[direction]
	if !ok {
		return "", fmt.Errorf("no exit %q from %s", direction, current.Name)
	}
	room, err := requireRoomExists(ctx, sess, target)
	if err != nil {
		return "", err
	}
	return enterRoom(ctx, sess, room)
}

func cmdCreate(ctx context.Context, sess Session, args string) (string, error) {
	name := strings.TrimSpace(args)
	if err := requireRoomNotExists(ctx, sess, name); err != nil {
		return "", err
	}
	room, err := sess.Store().CreateRoom(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create room %q: %w", name, err)
	}
	if _, err := sess.Store().CreateRoomChatBuffer(ctx, room.ID); err != nil {
		return "", fmt.Errorf("create chat buffer for %q: %w", name, err)
	}
	return enterRoom(ctx, sess, room)
}

func cmdFork(ctx context.Context, sess Session, args string) (string, error) {
	_, buf, ok := sess.CurrentRoom()
	if !ok {
		return "", fmt.Errorf("you must join a room first")
	}
	forked, err := sess.Store().ForkBuffer(ctx, buf)
	if err != nil {
		return "", fmt.Errorf("fork buffer: %w", err)
	}
	return fmt.Sprintf("Forked into buffer %s.", forked.ID), nil
}

// enterRoom records a join row against room's chat buffer and points
// the session at it.
func enterRoom(ctx context.Context, sess Session, room *sqlite.Room) (string, error) {
	buf, err := sess.Store().GetRoomChatBuffer(ctx, room.ID)
	if err != nil {
		return "", fmt.Errorf("get chat buffer for %q: %w", room.Name, err)
	}
	agent := sess.Agent()
	if _, err := sess.Store().AppendRow(ctx, sqlite.AppendRowParams{
		BufferID:      buf.ID,
		SourceAgentID: &agent.ID,
		ContentMethod: sqlite.MethodPresenceJoin,
		ContentFormat: sqlite.ContentText,
		Content:       fmt.Sprintf("%s joined", agent.Name),
	}); err != nil {
		return "", fmt.Errorf("append join row: %w", err)
	}
	sess.SetRoom(room, buf)
	sess.MarkDirty("room."+room.ID, "chat", "exits")
	return fmt.Sprintf("Joined %s.", room.Name), nil
}
