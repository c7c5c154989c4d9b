// Package script is the host-embedded ECMAScript runtime: module
// resolution against the database and a filesystem fallback (loader.go),
// the host function bindings a script sees as its global environment
// (vm.go), and the filesystem watcher that invalidates cached modules
// when their source changes on disk (watcher.go).
//
// A script's render entry point is a single global function,
// `render(ctx, snapshot)`, called once per dirty region per frame. A
// panic anywhere inside a host callback — the render call itself, or a
// registered tool handler invoked later — is recovered at the boundary
// and turned into "nothing rendered" for that region, never propagated
// into the session's render loop.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dop251/goja"

	"github.com/rakunlabs/sshwarma/internal/render"
)

// Engine is one script runtime bound to a single session's Host. It
// keeps one persistent goja.Runtime per loaded module — not a fresh
// Runtime per call — because a module's register_tool call captures
// that Runtime in a closure the session may invoke long after the
// render call that registered it returned, and goja.Runtime is not
// safe for concurrent use, so every entry into a module's Runtime
// (render calls and later tool-handler calls alike) is serialized
// through that module's own mutex.
type Engine struct {
	loader *Loader
	host   Host
	log    *slog.Logger

	mu      sync.Mutex
	modules map[string]*moduleRuntime
}

type moduleRuntime struct {
	mu sync.Mutex
	vm *goja.Runtime
}

// NewEngine returns an Engine that resolves modules via loader and
// binds host functions against host.
func NewEngine(loader *Loader, host Host, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{loader: loader, host: host, log: log, modules: make(map[string]*moduleRuntime)}
}

// Invalidate drops the cached Runtime for modulePath, forcing the next
// Render call to re-resolve and recompile the module's source. Called
// by the session on a matching watcher.ReloadEvent.
func (e *Engine) Invalidate(modulePath string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.modules, modulePath)
}

// Render resolves and evaluates modulePath the first time it is seen
// (or again after Invalidate), then calls its global render(ctx,
// snapshot) function with a draw context scoped to region within buf.
// The draw context object is built against modulePath's own Runtime —
// a goja.Value is only ever valid within the Runtime that created it,
// so it cannot be constructed by the caller and passed in. Any error —
// resolution, compilation, or a panic/thrown error inside render —
// returns a non-nil error; panics and errors thrown inside render are
// also logged with the module name. The caller
// treats that as "nothing rendered" for the region and must not
// propagate it further.
func (e *Engine) Render(ctx context.Context, userID, roomID *string, modulePath string, buf *render.Buffer, region render.Rect, snapshot RoomSnapshot) (err error) {
	mr, err := e.moduleFor(ctx, userID, roomID, modulePath)
	if err != nil {
		return fmt.Errorf("script %q: %w", modulePath, err)
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("script panic during render", "module", modulePath, "panic", r)
			err = fmt.Errorf("script %q panicked: %v", modulePath, r)
		}
	}()

	renderFn, ok := goja.AssertFunction(mr.vm.Get("render"))
	if !ok {
		return fmt.Errorf("script %q: no global render(ctx, snapshot) function", modulePath)
	}

	drawCtx := drawContextObject(mr.vm, render.NewDrawContext(buf).Sub(region.X, region.Y, region.Width, region.Height))
	if _, callErr := renderFn(goja.Undefined(), drawCtx, mr.vm.ToValue(snapshot)); callErr != nil {
		e.log.Error("script error during render", "module", modulePath, "error", callErr)
		return fmt.Errorf("script %q: %w", modulePath, callErr)
	}
	return nil
}

// moduleFor returns the cached Runtime for modulePath without touching
// the loader. Resolution only happens once, the first time a module is
// requested, or again after Invalidate drops the cache entry — not on
// every frame — so a render tick at ~10 Hz never hits the database or
// disk unless a watcher event (or a first load) says the module's
// source may have changed.
func (e *Engine) moduleFor(ctx context.Context, userID, roomID *string, modulePath string) (*moduleRuntime, error) {
	e.mu.Lock()
	mr, ok := e.modules[modulePath]
	e.mu.Unlock()
	if ok {
		return mr, nil
	}

	source, err := e.loader.Resolve(ctx, userID, roomID, modulePath)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	if err := setupHostEnv(vm, e.host); err != nil {
		return nil, fmt.Errorf("bind host environment: %w", err)
	}
	if _, err := vm.RunString(source); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	mr = &moduleRuntime{vm: vm}
	e.mu.Lock()
	e.modules[modulePath] = mr
	e.mu.Unlock()
	return mr, nil
}
