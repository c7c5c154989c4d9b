package commands

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rakunlabs/sshwarma/internal/mcpmanager"
	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "sshwarma.db")
	st, err := sqlite.Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

// fakeSession is a minimal Session backed by a real store, for
// exercising commands without internal/sessioncore.
type fakeSession struct {
	store *sqlite.Store
	agent *sqlite.Agent
	mcp   *mcpmanager.Manager

	room   *sqlite.Room
	buffer *sqlite.Buffer

	marked []string
}

var _ Session = (*fakeSession)(nil)

func newFakeSession(t *testing.T, st *sqlite.Store) *fakeSession {
	t.Helper()
	agent, err := st.CreateAgent(context.Background(), "alice", sqlite.AgentHuman)
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	return &fakeSession{store: st, agent: agent, mcp: mcpmanager.New(nil)}
}

func (f *fakeSession) Store() *sqlite.Store        { return f.store }
func (f *fakeSession) Agent() *sqlite.Agent        { return f.agent }
func (f *fakeSession) MCP() *mcpmanager.Manager    { return f.mcp }
func (f *fakeSession) MarkDirty(tags ...string)    { f.marked = append(f.marked, tags...) }
func (f *fakeSession) SetRoom(r *sqlite.Room, b *sqlite.Buffer) {
	f.room, f.buffer = r, b
}
func (f *fakeSession) ClearRoom() { f.room, f.buffer = nil, nil }
func (f *fakeSession) CurrentRoom() (*sqlite.Room, *sqlite.Buffer, bool) {
	if f.room == nil {
		return nil, nil, false
	}
	return f.room, f.buffer, true
}

func TestDispatchUnknownCommand(t *testing.T) {
	sess := newFakeSession(t, newTestStore(t))
	if _, err := Dispatch(context.Background(), sess, "/nope"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestDispatchWriteWithoutRoomErrors(t *testing.T) {
	sess := newFakeSession(t, newTestStore(t))
	if _, err := Dispatch(context.Background(), sess, "/say hello"); err == nil {
		t.Fatal("expected error: say requires a joined room")
	}
}

func TestCreateThenSayThenHistory(t *testing.T) {
	ctx := context.Background()
	sess := newFakeSession(t, newTestStore(t))

	if _, err := Dispatch(ctx, sess, "/create lobby"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Dispatch(ctx, sess, "/say hello world"); err != nil {
		t.Fatalf("say: %v", err)
	}

	out, err := Dispatch(ctx, sess, "/history 10")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty history")
	}
	if len(sess.marked) == 0 {
		t.Fatal("expected dirty tags to be marked")
	}
}

func TestJoinRejectsUnknownRoom(t *testing.T) {
	sess := newFakeSession(t, newTestStore(t))
	if _, err := Dispatch(context.Background(), sess, "/join nowhere"); err == nil {
		t.Fatal("expected error joining nonexistent room")
	}
}

func TestCreateRejectsDuplicateRoom(t *testing.T) {
	ctx := context.Background()
	sess := newFakeSession(t, newTestStore(t))
	if _, err := Dispatch(ctx, sess, "/create lobby"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := Dispatch(ctx, sess, "/create lobby"); err == nil {
		t.Fatal("expected error creating duplicate room")
	}
}

func TestValidateRoomNameRejectsBadCharset(t *testing.T) {
	if err := ValidateRoomName("has a space"); err == nil {
		t.Fatal("expected error for space in room name")
	}
	if err := ValidateRoomName("valid-name_123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGoFollowsExit(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	sess := newFakeSession(t, st)

	if _, err := Dispatch(ctx, sess, "/create lobby"); err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	lobbyID := sess.room.ID
	if _, err := Dispatch(ctx, sess, "/create garden"); err != nil {
		t.Fatalf("create garden: %v", err)
	}

	if err := st.SetRoomKV(ctx, lobbyID, "exit.north", "garden"); err != nil {
		t.Fatalf("SetRoomKV: %v", err)
	}

	if _, err := Dispatch(ctx, sess, "/join lobby"); err != nil {
		t.Fatalf("join lobby: %v", err)
	}
	if _, err := Dispatch(ctx, sess, "/go north"); err != nil {
		t.Fatalf("go north: %v", err)
	}
	if sess.room.Name != "garden" {
		t.Fatalf("room = %q, want garden", sess.room.Name)
	}
}

func TestToolCatalogFlattensSingleStringArg(t *testing.T) {
	ctx := context.Background()
	sess := newFakeSession(t, newTestStore(t))

	var join, say ToolDef
	for _, td := range ToolCatalog() {
		switch td.Tool.Name {
		case "create":
			join = td
		case "say":
			say = td
		}
	}

	if _, err := join.Handler(ctx, sess, map[string]any{"name": "lobby"}); err != nil {
		t.Fatalf("create via tool: %v", err)
	}
	if _, err := say.Handler(ctx, sess, map[string]any{"text": "hi there"}); err != nil {
		t.Fatalf("say via tool: %v", err)
	}
}
