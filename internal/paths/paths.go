// Package paths resolves sshwarma's on-disk locations from the
// environment, following the XDG Base Directory layout with 12-factor
// env var overrides.
//
//	~/.local/share/sshwarma/     (XDG_DATA_HOME)
//	├── sshwarma.db
//	└── host_key
//
//	~/.config/sshwarma/          (XDG_CONFIG_HOME)
//	├── models.toml
//	└── scripts/
package paths

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// DataDir returns the XDG data directory for sshwarma.
// Priority: XDG_DATA_HOME > $HOME/.local/share > current directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "sshwarma")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".local/share/sshwarma")
	}
	return "."
}

// ConfigDir returns the XDG config directory for sshwarma.
// Priority: XDG_CONFIG_HOME > $HOME/.config > current directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sshwarma")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".config/sshwarma")
	}
	return "."
}

// DBPath returns the sqlite database path.
// Priority: SSHWARMA_DB > DataDir()/sshwarma.db.
func DBPath() string {
	if v := os.Getenv("SSHWARMA_DB"); v != "" {
		return v
	}
	return filepath.Join(DataDir(), "sshwarma.db")
}

// HostKeyPath returns the SSH host key path.
// Priority: SSHWARMA_HOST_KEY > DataDir()/host_key.
func HostKeyPath() string {
	if v := os.Getenv("SSHWARMA_HOST_KEY"); v != "" {
		return v
	}
	return filepath.Join(DataDir(), "host_key")
}

// ModelsConfigPath returns the model-registry TOML path.
// Priority: SSHWARMA_MODELS_CONFIG > ConfigDir()/models.toml.
func ModelsConfigPath() string {
	if v := os.Getenv("SSHWARMA_MODELS_CONFIG"); v != "" {
		return v
	}
	return filepath.Join(ConfigDir(), "models.toml")
}

// ScriptsDir returns the directory watched for user script modules.
func ScriptsDir() string {
	return filepath.Join(ConfigDir(), "scripts")
}

// EnsureDirs creates DataDir and ConfigDir if they don't already exist.
func EnsureDirs() error {
	for _, dir := range []string{DataDir(), ConfigDir()} {
		if _, err := os.Stat(dir); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("stat %s: %w", dir, err)
			}
			slog.Debug("creating directory", "path", dir)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", dir, err)
			}
		}
	}
	return nil
}

// LogPaths logs every resolved path at info level for discoverability.
func LogPaths() {
	slog.Info("resolved paths",
		"data_dir", DataDir(),
		"config_dir", ConfigDir(),
		"db", DBPath(),
		"host_key", HostKeyPath(),
		"models_config", ModelsConfigPath(),
	)
}
