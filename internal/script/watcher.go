package script

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/rakunlabs/sshwarma/internal/broadcast"
)

// EventKind discriminates a filesystem-driven module reload event.
type EventKind int

const (
	Created EventKind = iota
	Changed
	Deleted
)

func (k EventKind) String() string {
	switch k {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ReloadEvent names the dotted module whose backing file changed.
type ReloadEvent struct {
	Module string
	Kind   EventKind
}

// Watcher watches root (config_dir()/scripts) for .js file changes and
// publishes ReloadEvent values. Each session subscribes independently
// and invalidates its own cached compiled module on next tick; a
// lagged subscriber drops old events and simply re-resolves against
// storage, which is eventually consistent regardless.
type Watcher struct {
	root string
	bus  *broadcast.Bus[ReloadEvent]
	fsw  *fsnotify.Watcher
	log  *slog.Logger
	done chan struct{}
}

// NewWatcher starts watching root non-recursively plus every existing
// subdirectory (fsnotify does not watch recursively on its own).
func NewWatcher(root string, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("script watcher: %w", err)
	}

	w := &Watcher{
		root: root,
		bus:  broadcast.New[ReloadEvent](broadcast.DefaultCapacity),
		fsw:  fsw,
		log:  log,
		done: make(chan struct{}),
	}

	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Subscribe returns a live subscription to reload events.
func (w *Watcher) Subscribe() *broadcast.Subscription[ReloadEvent] {
	return w.bus.Subscribe()
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("script watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, err := statDir(ev.Name); err == nil && info {
			if err := w.fsw.Add(ev.Name); err != nil {
				w.log.Warn("script watcher: failed to watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}

	module, ok := FileToDotted(w.root, ev.Name)
	if !ok {
		return
	}

	var kind EventKind
	switch {
	case ev.Op&fsnotify.Create != 0:
		kind = Created
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = Deleted
	default:
		kind = Changed
	}

	w.log.Info("script reload event", "module", module, "kind", kind)
	w.bus.Publish(ReloadEvent{Module: module, Kind: kind})
}

func (w *Watcher) addTree(root string) error {
	return walkDirs(root, w.fsw.Add)
}

// walkDirs calls add for root and every directory beneath it, skipping
// root silently if it does not exist yet (scripts/ is created lazily).
func walkDirs(root string, add func(string) error) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return add(path)
		}
		return nil
	})
}

// statDir reports whether path is a directory.
func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}
