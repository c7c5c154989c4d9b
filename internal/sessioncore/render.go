package sessioncore

import (
	"context"
	"fmt"

	"github.com/rakunlabs/sshwarma/internal/render"
)

// Render re-runs the session's HUD module against the current screen
// buffer and writes the resulting frame, wrapped in the cursor
// save/clear/restore sequence every frame write uses so the client's
// own scrollback and cursor position are left undisturbed between
// frames.
func (s *Session) Render(ctx context.Context) error {
	region := render.Full(s.width, s.height)
	s.screen.Clear()

	var userID, roomID *string
	userID = &s.agent.ID
	if room, _, ok := s.CurrentRoom(); ok {
		roomID = &room.ID
	}

	if err := s.scripts.Render(ctx, userID, roomID, s.hudModule, s.screen, region, s.Room()); err != nil {
		return fmt.Errorf("render %s: %w", s.hudModule, err)
	}

	frame := render.SerializeANSI(s.screen)
	if _, err := fmt.Fprint(s.out, render.CursorSave+render.ClearScreen+frame+render.CursorRestore); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
