// Package config loads sshwarma's process configuration the way the
// teacher loads its own: chu.Load against a struct of `cfg` tags, with
// an env-loader prefix supplying overrides.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rakunlabs/chu"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"
)

var Service = ""

// Config is sshwarma's full process configuration, loaded from
// environment variables prefixed SSHWARMA_.
type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	// ListenAddr is the SSH listener's bind address.
	ListenAddr string `cfg:"listen_addr" default:":2222"`

	// OpenRegistration, when true, accepts any previously-unseen
	// public key on connect and implicitly creates an agent named
	// after the SSH username, instead of rejecting unknown keys.
	OpenRegistration bool `cfg:"open_registration"`

	// MCPPort is advertised to operators for reference; the manager
	// itself dials whatever endpoints MCPEndpoints lists.
	MCPPort int `cfg:"mcp_port"`

	// MCPEndpoints is the initial set of MCP server endpoints to
	// connect on startup, named by their position (mcp-0, mcp-1, ...).
	MCPEndpoints []string `cfg:"mcp_endpoints"`
}

// Load reads Config from the environment, prefixed SSHWARMA_, and
// applies LogLevel to the process logger. name identifies the calling
// binary (e.g. "sshwarmad") and doubles as the config file stem chu
// searches for alongside the environment.
func Load(ctx context.Context, name string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, name, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("SSHWARMA_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}

// ParseMCPEndpoints takes the already-split SSHWARMA_MCP_ENDPOINTS
// entries, trims each one and drops the empty ones.
func ParseMCPEndpoints(raw []string) []string {
	var out []string
	for _, e := range raw {
		e = strings.TrimSpace(e)
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
