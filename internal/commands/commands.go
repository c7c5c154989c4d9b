// Package commands is the single catalog of slash-commands, shared
// between the human-facing dispatcher (dispatch.go) and the tool
// definitions offered to model agents joined to a room (tooldef.go).
// Every command is implemented once; validate.go carries the
// precondition checks both surfaces call before Run.
package commands

import (
	"context"

	"github.com/rakunlabs/sshwarma/internal/mcpmanager"
	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

// Kind discriminates how a command is gated: read-only commands need
// no joined room; join, create and leave run without one; the other
// write and navigation commands require one. No per-room navigation
// setting is checked.
type Kind int

const (
	ReadOnly Kind = iota
	Write
	Navigation
	MCPControl
)

// Session is the narrow view of session state a command operates
// against. internal/sessioncore implements it; commands never import
// sessioncore, so the dependency runs one way.
type Session interface {
	Store() *sqlite.Store
	Agent() *sqlite.Agent
	CurrentRoom() (*sqlite.Room, *sqlite.Buffer, bool)
	SetRoom(room *sqlite.Room, buf *sqlite.Buffer)
	ClearRoom()
	MCP() *mcpmanager.Manager
	MarkDirty(tags ...string)
}

// RunFunc executes one command invocation and returns the text to
// show the caller (echoed to the terminal, or returned as tool-call
// output to a model).
type RunFunc func(ctx context.Context, sess Session, args string) (string, error)

// Command is one catalog entry, usable both as a slash-command and,
// via ToolDef, as a tool definition exposed to joined model agents.
type Command struct {
	Name        string
	Kind        Kind
	Description string
	InputSchema map[string]any
	Run         RunFunc
}

// Catalog returns every command named in spec.md §4.11, in a stable
// order (read-only, then write, then navigation, then MCP control).
func Catalog() []Command {
	return []Command{
		{Name: "look", Kind: ReadOnly, Description: "Show the current room and who's present.", Run: cmdLook},
		{Name: "who", Kind: ReadOnly, Description: "List agents present in the current room.", Run: cmdWho},
		{Name: "rooms", Kind: ReadOnly, Description: "List every room on the server.", Run: cmdRooms},
		{Name: "history", Kind: ReadOnly, Description: "Show the last n rows of the current room's chat.", InputSchema: intArgSchema("n", "number of rows to show"), Run: cmdHistory},
		{Name: "exits", Kind: ReadOnly, Description: "List the current room's navigation exits.", Run: cmdExits},
		{Name: "journal", Kind: ReadOnly, Description: "Show decide/idea/milestone entries for the current room.", Run: cmdJournal},
		{Name: "tools", Kind: ReadOnly, Description: "List tools available in the current room (MCP and commands).", Run: cmdTools},

		{Name: "say", Kind: Write, Description: "Say something in the current room.", InputSchema: textArgSchema("text", "message text"), Run: cmdSay(sqlite.MethodMessageUser, "")},
		{Name: "vibe", Kind: Write, Description: "Post a vibe-check note.", InputSchema: textArgSchema("text", "vibe text"), Run: cmdSay("chat.vibe", "vibe")},
		{Name: "note", Kind: Write, Description: "Post a freeform note.", InputSchema: textArgSchema("text", "note text"), Run: cmdSay("chat.note", "note")},
		{Name: "decide", Kind: Write, Description: "Record a decision.", InputSchema: textArgSchema("text", "decision text"), Run: cmdSay("chat.decide", "decision")},
		{Name: "idea", Kind: Write, Description: "Record an idea.", InputSchema: textArgSchema("text", "idea text"), Run: cmdSay("chat.idea", "idea")},
		{Name: "milestone", Kind: Write, Description: "Record a milestone.", InputSchema: textArgSchema("text", "milestone text"), Run: cmdSay("chat.milestone", "milestone")},
		{Name: "inspire", Kind: Write, Description: "Post an inspiration prompt to the room.", Run: cmdInspire},

		{Name: "join", Kind: Navigation, Description: "Join a room by name.", InputSchema: textArgSchema("room", "room name"), Run: cmdJoin},
		{Name: "leave", Kind: Navigation, Description: "Leave the current room.", Run: cmdLeave},
		{Name: "go", Kind: Navigation, Description: "Move through a named exit of the current room.", InputSchema: textArgSchema("direction", "exit name"), Run: cmdGo},
		{Name: "create", Kind: Navigation, Description: "Create a new room.", InputSchema: textArgSchema("name", "room name"), Run: cmdCreate},
		{Name: "fork", Kind: Navigation, Description: "Fork the current room's chat buffer into a new branch.", Run: cmdFork},

		{Name: "mcp", Kind: MCPControl, Description: "Control MCP connections: list|connect <name> <endpoint>|disconnect <name>|refresh <name>.", InputSchema: textArgSchema("args", "subcommand and arguments"), Run: cmdMCP},
		{Name: "run", Kind: MCPControl, Description: "Call an MCP tool by name with JSON arguments.", InputSchema: textArgSchema("args", "tool name and JSON arguments"), Run: cmdRun},
	}
}

func textArgSchema(name, desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			name: map[string]any{"type": "string", "description": desc},
		},
		"required": []string{name},
	}
}

func intArgSchema(name, desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			name: map[string]any{"type": "integer", "description": desc},
		},
	}
}

// byName indexes Catalog() for dispatch and tool-definition lookup.
func byName() map[string]Command {
	out := make(map[string]Command, 32)
	for _, c := range Catalog() {
		out[c.Name] = c
	}
	return out
}

// Lookup returns the catalog entry named name, if any.
func Lookup(name string) (Command, bool) {
	c, ok := byName()[name]
	return c, ok
}
