package script

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherPublishesCreatedAndChangedEvents(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	sub := w.Subscribe()
	t.Cleanup(sub.Close)

	path := filepath.Join(root, "ui.js")
	if err := os.WriteFile(path, []byte("// v1"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-sub.C:
		if ev.Module != "ui" {
			t.Fatalf("module = %q, want ui", ev.Module)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for create event")
	}

	if err := os.WriteFile(path, []byte("// v2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-sub.C:
		if ev.Module != "ui" {
			t.Fatalf("module = %q, want ui", ev.Module)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestWatcherIgnoresNonJSFiles(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	sub := w.Subscribe()
	t.Cleanup(sub.Close)

	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event for non-.js file: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherWatchesNewSubdirectories(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher(root, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	sub := w.Subscribe()
	t.Cleanup(sub.Close)

	sub2dir := filepath.Join(root, "ui")
	if err := os.Mkdir(sub2dir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	// Give fsnotify time to pick up the new directory and add a watch on it.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(sub2dir, "bars.js"), []byte("// bars"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case ev := <-sub.C:
		if ev.Module != "ui.bars" {
			t.Fatalf("module = %q, want ui.bars", ev.Module)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event in new subdirectory")
	}
}
