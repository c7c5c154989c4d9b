package sessioncore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/rakunlabs/sshwarma/internal/mcpmanager"
	"github.com/rakunlabs/sshwarma/internal/modelclient"
	"github.com/rakunlabs/sshwarma/internal/script"
	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

// fakeBackend is a canned modelclient.Backend for exercising the
// @mention loop without a real provider.
type fakeBackend struct {
	responses []*modelclient.Response
	calls     int
}

func (b *fakeBackend) Chat(ctx context.Context, model string, messages []modelclient.Message, tools []modelclient.Tool) (*modelclient.Response, error) {
	resp := b.responses[b.calls]
	if b.calls < len(b.responses)-1 {
		b.calls++
	}
	return resp, nil
}

func newTestDeps(t *testing.T) (Deps, *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "sshwarma.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(st.Close)

	watcher, err := script.NewWatcher(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { watcher.Close() })

	deps := Deps{
		Store:   st,
		MCP:     mcpmanager.New(nil),
		Models:  modelclient.NewRegistry(func(cfg modelclient.BackendConfig) (modelclient.Backend, error) { return nil, nil }),
		Reloads: watcher,
	}
	return deps, st
}

func newTestSession(t *testing.T) (*Session, *sqlite.Store) {
	t.Helper()
	deps, st := newTestDeps(t)
	agent, err := st.CreateAgent(context.Background(), "alice", sqlite.AgentHuman)
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	sess := New(deps, &bytes.Buffer{}, agent, 80, 24, "hud")
	loader := script.NewLoader(st, t.TempDir())
	sess.scripts = script.NewEngine(loader, sess, nil)
	return sess, st
}

func TestSessionCreateThenSayViaExecute(t *testing.T) {
	ctx := context.Background()
	sess, _ := newTestSession(t)

	if _, err := sess.Execute(ctx, "/create lobby"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := sess.Execute(ctx, "hello there"); err != nil {
		t.Fatalf("implicit say: %v", err)
	}
	if sess.dirty.Empty() {
		t.Fatal("expected dirty tags after say")
	}
}

func TestSessionSayWithoutRoomErrors(t *testing.T) {
	ctx := context.Background()
	sess, _ := newTestSession(t)
	if _, err := sess.Execute(ctx, "hello"); err == nil {
		t.Fatal("expected error: say requires a joined room")
	}
}

func TestSessionMentionUnknownModel(t *testing.T) {
	ctx := context.Background()
	sess, _ := newTestSession(t)
	if _, err := sess.Execute(ctx, "/create lobby"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := sess.handleMention(ctx, "@nope hi"); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestSessionMentionRunsToolCallLoop(t *testing.T) {
	ctx := context.Background()
	sess, _ := newTestSession(t)
	if _, err := sess.Execute(ctx, "/create lobby"); err != nil {
		t.Fatalf("create: %v", err)
	}

	backend := &fakeBackend{responses: []*modelclient.Response{
		{
			Content:   "let me check",
			ToolCalls: []modelclient.ToolCall{{ID: "1", Name: "who", Arguments: map[string]any{}}},
		},
		{Content: "alice is here", Finished: true},
	}}
	deps := Deps{Models: modelclient.NewRegistry(func(cfg modelclient.BackendConfig) (modelclient.Backend, error) { return backend, nil })}
	if err := deps.Models.Register(modelclient.BackendConfig{Name: "bot", Kind: modelclient.BackendOpenAI, ModelID: "x"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	sess.models = deps.Models

	if err := sess.handleMention(ctx, "@bot are you there"); err != nil {
		t.Fatalf("handleMention: %v", err)
	}
}

func TestSessionResize(t *testing.T) {
	sess, _ := newTestSession(t)
	sess.Resize(100, 40)
	if sess.screen.Width != 100 || sess.screen.Height != 40 {
		t.Fatalf("resize did not rebuild screen: got %dx%d", sess.screen.Width, sess.screen.Height)
	}
	if sess.dirty.Empty() {
		t.Fatal("expected resize to mark dirty")
	}
}

func TestScriptHostRoomEmptyOutsideRoom(t *testing.T) {
	sess, _ := newTestSession(t)
	snap := sess.Room()
	if snap.Name != "" {
		t.Fatalf("expected empty snapshot outside a room, got %+v", snap)
	}
}
