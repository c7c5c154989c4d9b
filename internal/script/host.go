package script

import (
	"encoding/json"
	"time"

	"github.com/rakunlabs/sshwarma/internal/dirtytag"
	"github.com/rakunlabs/sshwarma/internal/mcpmanager"
	"github.com/rakunlabs/sshwarma/internal/statustrack"
	"github.com/rakunlabs/sshwarma/internal/toolcache"
)

// RoomSnapshot is the read-only room/participant state a script can
// observe when building its HUD.
type RoomSnapshot struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

// ToolHandler is a script-registered tool implementation, already
// unwrapped from its goja callable so the rest of the session never has
// to know scripts exist.
type ToolHandler func(args map[string]any) (any, error)

// ToolDef is one tool a script adds to the session's tool catalog,
// surfaced to joined model agents alongside MCP and command-backed
// tools.
type ToolDef struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Handler     ToolHandler
}

// Host is the set of session-scoped resources a script's host functions
// read from or write to. internal/sessioncore implements this.
type Host interface {
	Room() RoomSnapshot
	MCPStatus() []mcpmanager.Status
	Statuses() map[string]statustrack.ParticipantStatus
	SessionDuration() time.Duration
	ToolCache() *toolcache.Cache
	DirtyTags() *dirtytag.Set
	RegisterTool(def ToolDef)
}
