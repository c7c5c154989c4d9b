package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

func cmdLook(ctx context.Context, sess Session, args string) (string, error) {
	room, buf, ok := sess.CurrentRoom()
	if !ok {
		return "You are nowhere. Use /join <room> or /create <room>.", nil
	}
	names, err := sess.Store().PresentAgentNames(ctx, buf.ID)
	if err != nil {
		return "", fmt.Errorf("list presence: %w", err)
	}
	exits, err := sess.Store().Exits(ctx, room.ID)
	if err != nil {
		return "", fmt.Errorf("list exits: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nPresent: %s\n", room.Name, strings.Join(names, ", "))
	if len(exits) > 0 {
		dirs := make([]string, 0, len(exits))
		for dir := range exits {
			dirs = append(dirs, dir)
		}
		fmt.Fprintf(&b, "Exits: %s\n", strings.Join(dirs, ", "))
	}
	return b.String(), nil
}

func cmdWho(ctx context.Context, sess Session, args string) (string, error) {
	_, buf, ok := sess.CurrentRoom()
	if !ok {
		return "You are nowhere.", nil
	}
	names, err := sess.Store().PresentAgentNames(ctx, buf.ID)
	if err != nil {
		return "", fmt.Errorf("list presence: %w", err)
	}
	if len(names) == 0 {
		return "No one is here.", nil
	}
	return strings.Join(names, ", "), nil
}

func cmdRooms(ctx context.Context, sess Session, args string) (string, error) {
	rooms, err := sess.Store().ListRooms(ctx)
	if err != nil {
		return "", fmt.Errorf("list rooms: %w", err)
	}
	names := make([]string, len(rooms))
	for i, r := range rooms {
		names[i] = r.Name
	}
	return strings.Join(names, ", "), nil
}

const defaultHistoryLines = 20

func cmdHistory(ctx context.Context, sess Session, args string) (string, error) {
	_, buf, ok := sess.CurrentRoom()
	if !ok {
		return "You are nowhere.", nil
	}
	n := defaultHistoryLines
	if strings.TrimSpace(args) != "" {
		if v, err := strconv.Atoi(strings.TrimSpace(args)); err == nil && v > 0 {
			n = v
		}
	}
	rows, err := sess.Store().ListRows(ctx, buf.ID, n)
	if err != nil {
		return "", fmt.Errorf("list rows: %w", err)
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "[%s] %s\n", r.ContentMethod, r.Content)
	}
	return b.String(), nil
}

func cmdExits(ctx context.Context, sess Session, args string) (string, error) {
	room, _, ok := sess.CurrentRoom()
	if !ok {
		return "You are nowhere.", nil
	}
	exits, err := sess.Store().Exits(ctx, room.ID)
	if err != nil {
		return "", fmt.Errorf("list exits: %w", err)
	}
	if len(exits) == 0 {
		return "No exits.", nil
	}
	var b strings.Builder
	for dir, target := range exits {
		fmt.Fprintf(&b, "%s -> %s\n", dir, target)
	}
	return b.String(), nil
}

var journalMethods = map[string]bool{
	"chat.decide":    true,
	"chat.idea":      true,
	"chat.milestone": true,
}

func cmdJournal(ctx context.Context, sess Session, args string) (string, error) {
	_, buf, ok := sess.CurrentRoom()
	if !ok {
		return "You are nowhere.", nil
	}
	rows, err := sess.Store().ListRows(ctx, buf.ID, 500)
	if err != nil {
		return "", fmt.Errorf("list rows: %w", err)
	}
	var b strings.Builder
	for _, r := range rows {
		if !journalMethods[r.ContentMethod] {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", r.ContentMethod, r.Content)
	}
	if b.Len() == 0 {
		return "No journal entries yet.", nil
	}
	return b.String(), nil
}

func cmdTools(ctx context.Context, sess Session, args string) (string, error) {
	var b strings.Builder
	for name, tools := range sess.MCP().ListTools() {
		for _, t := range tools {
			fmt.Fprintf(&b, "%s/%s: %s\n", name, t.Name, t.Description)
		}
	}
	for _, c := range Catalog() {
		fmt.Fprintf(&b, "/%s: %s\n", c.Name, c.Description)
	}
	if b.Len() == 0 {
		return "No tools available.", nil
	}
	return b.String(), nil
}
