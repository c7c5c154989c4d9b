// Package sessioncore owns the per-SSH-connection state machine: the
// input path (bytes → escape events → editor actions → dispatch), the
// render path (dirty tags → script runtime → ANSI frame), and the
// ~10 Hz tick driving both. internal/server wires one Session per
// accepted channel; everything else in the module is a component this
// package composes.
package sessioncore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rakunlabs/sshwarma/internal/commands"
	"github.com/rakunlabs/sshwarma/internal/dirtytag"
	"github.com/rakunlabs/sshwarma/internal/mcpmanager"
	"github.com/rakunlabs/sshwarma/internal/modelclient"
	"github.com/rakunlabs/sshwarma/internal/render"
	"github.com/rakunlabs/sshwarma/internal/script"
	"github.com/rakunlabs/sshwarma/internal/statustrack"
	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
	"github.com/rakunlabs/sshwarma/internal/termio"
	"github.com/rakunlabs/sshwarma/internal/toolcache"
)

// Session is one authenticated connection's cooperative single-thread
// of control: the SSH layer feeds it bytes and reads back ANSI frames,
// everything else happens on the session's own goroutine.
type Session struct {
	log *slog.Logger
	out io.Writer

	store   *sqlite.Store
	agent   *sqlite.Agent
	session *sqlite.AgentSession

	mcp      *mcpmanager.Manager
	models   *modelclient.Registry
	scripts  *script.Engine
	reloads  *script.Watcher

	parser *termio.EscapeParser
	editor *termio.Editor

	roomMu sync.Mutex
	room   *sqlite.Room
	buffer *sqlite.Buffer

	dirty     *dirtytag.Set
	statuses  *statustrack.Tracker
	toolCache *toolcache.Cache

	width, height int
	screen        *render.Buffer

	scriptTools   map[string]script.ToolDef
	scriptToolsMu sync.Mutex

	hudModule string // dotted module path rendered each frame
}

// Deps bundles the shared, process-wide services a Session composes.
// Every field is shared by reference across all sessions except the
// per-session ones built by New itself (editor, parser, buffers).
type Deps struct {
	Store   *sqlite.Store
	MCP     *mcpmanager.Manager
	Models  *modelclient.Registry
	Scripts *script.Engine
	Reloads *script.Watcher
	Log     *slog.Logger
}

// New returns a Session for agent, writing frames to out, with a PTY
// of the given geometry. hudModule is the dotted script module path
// rendered every tick (e.g. "hud" or a per-room override resolved by
// the caller before construction).
func New(deps Deps, out io.Writer, agent *sqlite.Agent, width, height int, hudModule string) *Session {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		log:         log,
		out:         out,
		store:       deps.Store,
		agent:       agent,
		mcp:         deps.MCP,
		models:      deps.Models,
		scripts:     deps.Scripts,
		reloads:     deps.Reloads,
		parser:      termio.NewEscapeParser(),
		editor:      termio.NewEditor(),
		dirty:       dirtytag.New(),
		statuses:    statustrack.New(time.Now()),
		toolCache:   toolcache.New(),
		width:       width,
		height:      height,
		screen:      render.NewBuffer(width, height),
		scriptTools: make(map[string]script.ToolDef),
		hudModule:   hudModule,
	}
}

// AttachScripts binds a fresh script.Engine to this session: an Engine
// is scoped to a single Host for its whole lifetime (its goja Runtimes
// close over host function values), so every Session builds its own
// rather than sharing one across connections. Call once, right after
// New.
func (s *Session) AttachScripts(loader *script.Loader, log *slog.Logger) {
	if log == nil {
		log = s.log
	}
	s.scripts = script.NewEngine(loader, s, log)
}

// AttachSession records the transport-level agent_sessions row this
// Session is backing, so Close can mark it disconnected. Callers that
// open the row themselves (cmd/sshwarmad, over SSH) call this right
// after New; tests that never open a row leave it nil.
func (s *Session) AttachSession(session *sqlite.AgentSession) {
	s.session = session
}

// Resize updates the PTY geometry and the render buffer sized to it,
// then marks the HUD dirty so the next tick redraws at the new size.
func (s *Session) Resize(width, height int) {
	s.width, s.height = width, height
	s.screen = render.NewBuffer(width, height)
	s.dirty.Mark("resize")
}

// --- script.Host ---

var _ script.Host = (*Session)(nil)

// Room returns the current room/participants snapshot a script sees.
func (s *Session) Room() script.RoomSnapshot {
	s.roomMu.Lock()
	room, buf := s.room, s.buffer
	s.roomMu.Unlock()
	if room == nil {
		return script.RoomSnapshot{}
	}
	names, err := s.store.PresentAgentNames(context.Background(), buf.ID)
	if err != nil {
		s.log.Error("present agent names", "error", err)
		return script.RoomSnapshot{Name: room.Name}
	}
	return script.RoomSnapshot{Name: room.Name, Participants: names}
}

func (s *Session) MCPStatus() []mcpmanager.Status { return s.mcp.List() }

func (s *Session) Statuses() map[string]statustrack.ParticipantStatus { return s.statuses.Snapshot() }

func (s *Session) SessionDuration() time.Duration { return s.statuses.Duration(time.Now()) }

func (s *Session) ToolCache() *toolcache.Cache { return s.toolCache }

func (s *Session) DirtyTags() *dirtytag.Set { return s.dirty }

// RegisterTool adds a script-defined tool to this session's catalog,
// alongside MCP and command-backed tools, so any model agent joined to
// the room can invoke it.
func (s *Session) RegisterTool(def script.ToolDef) {
	s.scriptToolsMu.Lock()
	defer s.scriptToolsMu.Unlock()
	s.scriptTools[def.Name] = def
}

func (s *Session) scriptToolSnapshot() map[string]script.ToolDef {
	s.scriptToolsMu.Lock()
	defer s.scriptToolsMu.Unlock()
	out := make(map[string]script.ToolDef, len(s.scriptTools))
	for k, v := range s.scriptTools {
		out[k] = v
	}
	return out
}

// --- commands.Session ---

var _ commands.Session = (*Session)(nil)

func (s *Session) Store() *sqlite.Store     { return s.store }
func (s *Session) Agent() *sqlite.Agent     { return s.agent }
func (s *Session) MCP() *mcpmanager.Manager { return s.mcp }

func (s *Session) MarkDirty(tags ...string) {
	for _, t := range tags {
		s.dirty.Mark(t)
	}
}

func (s *Session) SetRoom(room *sqlite.Room, buf *sqlite.Buffer) {
	s.roomMu.Lock()
	s.room, s.buffer = room, buf
	s.roomMu.Unlock()
}

func (s *Session) ClearRoom() {
	s.roomMu.Lock()
	s.room, s.buffer = nil, nil
	s.roomMu.Unlock()
}

func (s *Session) CurrentRoom() (*sqlite.Room, *sqlite.Buffer, bool) {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()
	if s.room == nil {
		return nil, nil, false
	}
	return s.room, s.buffer, true
}

// Close finalizes the session by closing its agent_sessions row. It
// does not touch the script-reload subscription; RunTick closes that
// when it returns.
func (s *Session) Close(ctx context.Context) error {
	if s.session != nil {
		if err := s.store.CloseSession(ctx, s.session.ID, time.Now().UnixMilli()); err != nil {
			return err
		}
	}
	return nil
}
