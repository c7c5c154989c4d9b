package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

// cmdSay returns a Run func that appends args as a row with the given
// content_method, optionally prefixed with label for the echoed text
// (say has no label, vibe/note/decide/idea/milestone echo their kind).
func cmdSay(method, label string) RunFunc {
	return func(ctx context.Context, sess Session, args string) (string, error) {
		roomID, bufID, err := requireJoinedRoom(sess)
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(args)
		if text == "" {
			return "", fmt.Errorf("%s requires text", method)
		}
		agent := sess.Agent()
		if _, err := sess.Store().AppendRow(ctx, sqlite.AppendRowParams{
			BufferID:      bufID,
			SourceAgentID: &agent.ID,
			ContentMethod: method,
			ContentFormat: sqlite.ContentText,
			Content:       text,
		}); err != nil {
			return "", fmt.Errorf("append row: %w", err)
		}
		sess.MarkDirty("room."+roomID, "chat")
		if label != "" {
			return fmt.Sprintf("%s: %s", label, text), nil
		}
		return text, nil
	}
}

func cmdInspire(ctx context.Context, sess Session, args string) (string, error) {
	roomID, bufID, err := requireJoinedRoom(sess)
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(args)
	if prompt == "" {
		prompt = "What should this room try next?"
	}
	agent := sess.Agent()
	if _, err := sess.Store().AppendRow(ctx, sqlite.AppendRowParams{
		BufferID:      bufID,
		SourceAgentID: &agent.ID,
		ContentMethod: "chat.inspire",
		ContentFormat: sqlite.ContentText,
		Content:       prompt,
	}); err != nil {
		return "", fmt.Errorf("append row: %w", err)
	}
	sess.MarkDirty("room."+roomID, "chat")
	return prompt, nil
}
