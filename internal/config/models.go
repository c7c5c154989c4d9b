package config

import (
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rakunlabs/sshwarma/internal/modelclient"
)

// modelEntry is one models.toml entry in its on-disk shape: short
// name, display label, upstream model id/backend kind, an optional
// per-entry endpoint override, an enabled switch, and the optional
// system prompt / context window hint.
type modelEntry struct {
	Name          string `toml:"name"`
	Display       string `toml:"display"`
	Model         string `toml:"model"`
	Backend       string `toml:"backend"`
	Endpoint      string `toml:"endpoint"`
	Enabled       *bool  `toml:"enabled"`
	SystemPrompt  string `toml:"system_prompt"`
	ContextWindow int    `toml:"context_window"`
}

// modelsFile is models.toml's root table.
type modelsFile struct {
	OllamaEndpoint string       `toml:"ollama_endpoint"`
	Models         []modelEntry `toml:"models"`
}

// LoadModels reads path (config_dir()/models.toml) and returns its
// entries resolved into modelclient.BackendConfig, ready for
// Registry.Register. A missing file is not an error: sshwarma runs
// with zero configured models until an operator adds one, so callers
// get an empty list and a logged warning instead of a startup
// failure.
func LoadModels(path string) ([]modelclient.BackendConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("no models file found, starting with no configured models", "path", path)
			return nil, nil
		}
		return nil, err
	}

	var file modelsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, err
	}

	var out []modelclient.BackendConfig
	for _, m := range file.Models {
		if m.Enabled != nil && !*m.Enabled {
			continue
		}

		endpoint := m.Endpoint
		if endpoint == "" && m.Backend == string(modelclient.BackendOllama) {
			endpoint = file.OllamaEndpoint
		}

		out = append(out, modelclient.BackendConfig{
			Name:         m.Name,
			Kind:         modelclient.BackendKind(m.Backend),
			ModelID:      m.Model,
			Endpoint:     endpoint,
			SystemPrompt: m.SystemPrompt,
		})
	}

	return out, nil
}
