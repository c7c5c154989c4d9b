package sessioncore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rakunlabs/sshwarma/internal/commands"
	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
	"github.com/rakunlabs/sshwarma/internal/termio"
)

// HandleByte feeds one SSH input byte through the escape parser and
// the line editor. It returns an error only for conditions the caller
// must act on (a quit request).
func (s *Session) HandleByte(ctx context.Context, b byte) error {
	ev, ok := s.parser.Feed(b)
	if !ok {
		return nil
	}
	return s.handleEvent(ctx, ev)
}

// Flush drains a pending bare-escape from the parser, e.g. on a read
// timeout, mirroring HandleByte's event handling.
func (s *Session) Flush(ctx context.Context) error {
	ev, ok := s.parser.Flush()
	if !ok {
		return nil
	}
	return s.handleEvent(ctx, ev)
}

func (s *Session) handleEvent(ctx context.Context, ev termio.Event) error {
	result := s.editor.Handle(ev)
	switch result.Action {
	case ActionExecute:
		out, err := s.Execute(ctx, result.Line)
		if err != nil {
			out = "error: " + err.Error()
		}
		if out != "" {
			s.appendSystemLine(ctx, out)
		}
		s.dirty.Mark("input")
	case ActionQuit:
		return errQuit
	case ActionClearScreen:
		s.dirty.Mark("clear")
	case ActionRedraw, ActionTab, ActionPageUp, ActionPageDown:
		s.dirty.Mark("input")
	}
	return nil
}

// Action aliases termio's Action constants so callers of this package
// don't need to import termio directly for the common cases.
const (
	ActionExecute     = termio.ActionExecute
	ActionQuit        = termio.ActionQuit
	ActionClearScreen = termio.ActionClearScreen
	ActionRedraw      = termio.ActionRedraw
	ActionTab         = termio.ActionTab
	ActionPageUp      = termio.ActionPageUp
	ActionPageDown    = termio.ActionPageDown
)

var errQuit = fmt.Errorf("session requested quit")

// ErrQuit is returned by HandleByte/Flush, unwrapped, when the client
// asked to close the connection (Ctrl-D on an empty line).
func ErrQuit() error { return errQuit }

// Execute dispatches one submitted line per spec.md §4.9: "/" to the
// command table, "@" to model-mention handling, everything else to
// room chat.
func (s *Session) Execute(ctx context.Context, line string) (string, error) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "/"):
		return commands.Dispatch(ctx, s, trimmed)
	case strings.HasPrefix(trimmed, "@"):
		return "", s.handleMention(ctx, trimmed)
	case trimmed == "":
		return "", nil
	default:
		return commands.Dispatch(ctx, s, "/say "+trimmed)
	}
}

// appendSystemLine records a one-line system/error row in the current
// room, if any, so the user sees command output/errors in scrollback.
func (s *Session) appendSystemLine(ctx context.Context, text string) {
	_, buf, ok := s.CurrentRoom()
	if !ok {
		return
	}
	if _, err := s.store.AppendRow(ctx, sqlite.AppendRowParams{
		BufferID:      buf.ID,
		ContentMethod: "system.output",
		ContentFormat: sqlite.ContentText,
		Content:       text,
		Ephemeral:     true,
	}); err != nil {
		s.log.Error("append system line", "error", err)
	}
	s.dirty.Mark("chat")
}
