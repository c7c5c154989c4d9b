package script

import (
	"context"
	"testing"

	"github.com/rakunlabs/sshwarma/internal/render"
	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

func TestEngineRenderWritesIntoBuffer(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateScriptVersion(ctx, sqlite.ScriptSystem, nil, "hud", `
		function render(ctx, snapshot) {
			ctx.print(0, 0, "room:" + snapshot.name, {});
		}
	`, "", nil); err != nil {
		t.Fatalf("CreateScriptVersion: %v", err)
	}

	loader := NewLoader(st, t.TempDir())
	host := newFakeHost()
	engine := NewEngine(loader, host, nil)

	buf := render.NewBuffer(20, 1)
	if err := engine.Render(ctx, nil, nil, "hud", buf, render.Rect{Width: 20, Height: 1}, host.Room()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	got := render.SerializeANSI(buf)
	want := "room:lobby          "
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEngineRenderReturnsScriptErrorAsError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateScriptVersion(ctx, sqlite.ScriptSystem, nil, "broken", `
		function render(ctx, snapshot) {
			undefinedFunctionCall();
		}
	`, "", nil); err != nil {
		t.Fatalf("CreateScriptVersion: %v", err)
	}

	loader := NewLoader(st, t.TempDir())
	host := newFakeHost()
	engine := NewEngine(loader, host, nil)

	buf := render.NewBuffer(10, 1)
	err := engine.Render(ctx, nil, nil, "broken", buf, render.Rect{Width: 10, Height: 1}, host.Room())
	if err == nil {
		t.Fatalf("expected error from broken script, got nil")
	}
}

func TestEngineRenderMissingRenderFunctionErrors(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateScriptVersion(ctx, sqlite.ScriptSystem, nil, "norender", `
		var x = 1;
	`, "", nil); err != nil {
		t.Fatalf("CreateScriptVersion: %v", err)
	}

	loader := NewLoader(st, t.TempDir())
	host := newFakeHost()
	engine := NewEngine(loader, host, nil)

	buf := render.NewBuffer(10, 1)
	err := engine.Render(ctx, nil, nil, "norender", buf, render.Rect{Width: 10, Height: 1}, host.Room())
	if err == nil {
		t.Fatalf("expected error for module with no render function")
	}
}

// TestEngineCachesRuntimeAcrossRenderCalls proves a module's top-level
// state survives between Render calls (the Runtime is cached, not
// rebuilt per frame) and that Invalidate forces a fresh Runtime whose
// top-level state starts over.
func TestEngineCachesRuntimeAcrossRenderCalls(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if _, err := st.CreateScriptVersion(ctx, sqlite.ScriptSystem, nil, "counter", `
		var n = 0;
		function render(ctx, snapshot) { n++; ctx.print(0, 0, "" + n, {}); }
	`, "", nil); err != nil {
		t.Fatalf("CreateScriptVersion: %v", err)
	}

	loader := NewLoader(st, t.TempDir())
	host := newFakeHost()
	engine := NewEngine(loader, host, nil)

	render1 := func() string {
		buf := render.NewBuffer(5, 1)
		if err := engine.Render(ctx, nil, nil, "counter", buf, render.Rect{Width: 5, Height: 1}, host.Room()); err != nil {
			t.Fatalf("Render: %v", err)
		}
		return render.SerializeANSI(buf)
	}

	if got := render1(); got != "1    " {
		t.Fatalf("first render = %q, want n=1", got)
	}
	if got := render1(); got != "2    " {
		t.Fatalf("second render = %q, want n=2 (Runtime state persisted)", got)
	}

	engine.Invalidate("counter")

	if got := render1(); got != "1    " {
		t.Fatalf("render after Invalidate = %q, want n=1 (fresh Runtime)", got)
	}
}
