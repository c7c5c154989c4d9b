package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rakunlabs/sshwarma/internal/store/sqlite"
)

// Loader resolves a dotted module name ("ui.bars") to JavaScript source,
// consulting the database first (scope precedence user > room > system,
// each the current copy-on-write version) and falling back to a
// filesystem directory rooted at config_dir()/scripts, mapping nested
// paths to dotted module names ("ui/bars.js" -> "ui.bars", "ui/init.js"
// -> "ui").
type Loader struct {
	store      *sqlite.Store
	scriptsDir string
}

// NewLoader builds a Loader backed by store for the database tier and
// scriptsDir for the filesystem fallback tier.
func NewLoader(store *sqlite.Store, scriptsDir string) *Loader {
	return &Loader{store: store, scriptsDir: scriptsDir}
}

// Resolve returns modulePath's current source. userID and roomID are
// nil when the caller has no user/room scope to check (e.g. a system
// bootstrap script); either being non-nil narrows the precedence chain
// to the scopes that could apply to the caller.
func (l *Loader) Resolve(ctx context.Context, userID, roomID *string, modulePath string) (string, error) {
	if userID != nil {
		if s, err := l.store.GetCurrentScript(ctx, sqlite.ScriptUser, userID, modulePath); err == nil && s != nil {
			return s.Code, nil
		}
	}
	if roomID != nil {
		if s, err := l.store.GetCurrentScript(ctx, sqlite.ScriptRoom, roomID, modulePath); err == nil && s != nil {
			return s.Code, nil
		}
	}
	if s, err := l.store.GetCurrentScript(ctx, sqlite.ScriptSystem, nil, modulePath); err == nil && s != nil {
		return s.Code, nil
	}

	path, err := dottedToFile(l.scriptsDir, modulePath)
	if err != nil {
		return "", err
	}
	code, err := os.ReadFile(path)
	if err == nil {
		return string(code), nil
	}

	// "ui" may resolve to either ui.js or ui/init.js.
	initPath, initErr := dottedToFile(l.scriptsDir, modulePath+".init")
	if initErr == nil {
		if code, err := os.ReadFile(initPath); err == nil {
			return string(code), nil
		}
	}

	return "", fmt.Errorf("resolve module %q: not found in database or at %s: %w", modulePath, path, err)
}

// dottedToFile maps "ui.bars" to "<root>/ui/bars.js", per the nested
// directory naming convention.
func dottedToFile(root, modulePath string) (string, error) {
	if modulePath == "" {
		return "", fmt.Errorf("empty module path")
	}
	rel := filepath.FromSlash(strings.ReplaceAll(modulePath, ".", "/")) + ".js"
	return filepath.Join(root, rel), nil
}

// FileToDotted maps a path relative to root ("ui/bars.js", or
// "ui/init.js") back to its dotted module name ("ui.bars", "ui"), the
// inverse dottedToFile performs for the filesystem watcher.
func FileToDotted(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if filepath.Ext(rel) != ".js" {
		return "", false
	}
	rel = strings.TrimSuffix(rel, ".js")
	dotted := strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
	dotted = strings.TrimSuffix(dotted, ".init")
	return dotted, true
}
