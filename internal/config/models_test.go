package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rakunlabs/sshwarma/internal/modelclient"
)

func TestLoadModelsMissingFileReturnsEmpty(t *testing.T) {
	backends, err := LoadModels(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("LoadModels: %v", err)
	}
	if len(backends) != 0 {
		t.Fatalf("expected no backends, got %d", len(backends))
	}
}

func TestLoadModelsParsesAndFiltersDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.toml")
	data := `
ollama_endpoint = "http://localhost:11434"

[[models]]
name = "claude"
display = "Claude"
model = "claude-opus"
backend = "anthropic"
enabled = true
system_prompt = "be terse"

[[models]]
name = "llama"
display = "Llama"
model = "llama3"
backend = "ollama"
enabled = true

[[models]]
name = "retired"
display = "Retired"
model = "gpt-3"
backend = "openai"
enabled = false
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write models.toml: %v", err)
	}

	backends, err := LoadModels(path)
	if err != nil {
		t.Fatalf("LoadModels: %v", err)
	}
	if len(backends) != 2 {
		t.Fatalf("expected 2 enabled backends, got %d", len(backends))
	}

	byName := map[string]modelclient.BackendConfig{}
	for _, b := range backends {
		byName[b.Name] = b
	}

	claude, ok := byName["claude"]
	if !ok {
		t.Fatal("missing claude backend")
	}
	if claude.Kind != modelclient.BackendAnthropic || claude.ModelID != "claude-opus" || claude.SystemPrompt != "be terse" {
		t.Fatalf("claude backend decoded wrong: %+v", claude)
	}

	llama, ok := byName["llama"]
	if !ok {
		t.Fatal("missing llama backend")
	}
	if llama.Endpoint != "http://localhost:11434" {
		t.Fatalf("llama endpoint should fall back to ollama_endpoint, got %q", llama.Endpoint)
	}

	if _, ok := byName["retired"]; ok {
		t.Fatal("disabled backend should have been filtered out")
	}
}
