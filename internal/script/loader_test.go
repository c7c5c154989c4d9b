package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"

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

func TestResolvePrefersDatabaseOverFilesystem(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	scriptsDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(scriptsDir, "ui.js"), []byte("// disk version"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := st.CreateScriptVersion(ctx, sqlite.ScriptSystem, nil, "ui", "// db version", "", nil); err != nil {
		t.Fatalf("CreateScriptVersion: %v", err)
	}

	loader := NewLoader(st, scriptsDir)
	code, err := loader.Resolve(ctx, nil, nil, "ui")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if code != "// db version" {
		t.Fatalf("code = %q, want db version", code)
	}
}

func TestResolveScopePrecedenceUserOverRoomOverSystem(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	loader := NewLoader(st, t.TempDir())

	userID := "user-1"
	roomID := "room-1"

	if _, err := st.CreateScriptVersion(ctx, sqlite.ScriptSystem, nil, "ui", "// system", "", nil); err != nil {
		t.Fatalf("CreateScriptVersion system: %v", err)
	}
	if _, err := st.CreateScriptVersion(ctx, sqlite.ScriptRoom, &roomID, "ui", "// room", "", nil); err != nil {
		t.Fatalf("CreateScriptVersion room: %v", err)
	}

	code, err := loader.Resolve(ctx, &userID, &roomID, "ui")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if code != "// room" {
		t.Fatalf("code = %q, want room (system exists but room outranks it, user row absent)", code)
	}

	if _, err := st.CreateScriptVersion(ctx, sqlite.ScriptUser, &userID, "ui", "// user", "", nil); err != nil {
		t.Fatalf("CreateScriptVersion user: %v", err)
	}
	code, err = loader.Resolve(ctx, &userID, &roomID, "ui")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if code != "// user" {
		t.Fatalf("code = %q, want user to outrank room and system", code)
	}
}

func TestResolveFallsBackToFilesystem(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	scriptsDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(scriptsDir, "ui"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(scriptsDir, "ui", "bars.js"), []byte("// bars"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(st, scriptsDir)
	code, err := loader.Resolve(ctx, nil, nil, "ui.bars")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if code != "// bars" {
		t.Fatalf("code = %q, want bars", code)
	}
}

func TestResolveDirectoryInitConvention(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	scriptsDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(scriptsDir, "ui"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(scriptsDir, "ui", "init.js"), []byte("// ui init"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	loader := NewLoader(st, scriptsDir)
	code, err := loader.Resolve(ctx, nil, nil, "ui")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if code != "// ui init" {
		t.Fatalf("code = %q, want ui init", code)
	}
}

func TestResolveNotFoundErrors(t *testing.T) {
	st := newTestStore(t)
	loader := NewLoader(st, t.TempDir())
	if _, err := loader.Resolve(context.Background(), nil, nil, "missing"); err == nil {
		t.Fatalf("expected error for missing module")
	}
}

func TestFileToDottedRoundTrip(t *testing.T) {
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{"ui/bars.js", "ui.bars", true},
		{"ui/init.js", "ui", true},
		{"standalone.js", "standalone", true},
		{"readme.txt", "", false},
		{"../outside.js", "", false},
	}
	root := "/scripts"
	for _, c := range cases {
		got, ok := FileToDotted(root, filepath.Join(root, c.path))
		if ok != c.ok {
			t.Errorf("FileToDotted(%q) ok = %v, want %v", c.path, ok, c.ok)
			continue
		}
		if ok && got != c.want {
			t.Errorf("FileToDotted(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}
