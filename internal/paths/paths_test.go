package paths

import "testing"

// These tests mutate the process environment and must run serially
// within this package; go test already runs one package's tests
// single-threaded by default, so no extra locking is needed.

func clearPathEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SSHWARMA_DB", "SSHWARMA_HOST_KEY", "SSHWARMA_MODELS_CONFIG",
		"XDG_DATA_HOME", "XDG_CONFIG_HOME",
	} {
		t.Setenv(k, "")
		// t.Setenv can't unset, but every lookup in this package
		// treats an empty value as unset, so "" clears the override.
	}
}

func TestDBPathEnvOverride(t *testing.T) {
	clearPathEnv(t)
	t.Setenv("SSHWARMA_DB", "/custom/path/test.db")
	if got := DBPath(); got != "/custom/path/test.db" {
		t.Fatalf("DBPath() = %q, want /custom/path/test.db", got)
	}
}

func TestHostKeyPathEnvOverride(t *testing.T) {
	clearPathEnv(t)
	t.Setenv("SSHWARMA_HOST_KEY", "/custom/host_key")
	if got := HostKeyPath(); got != "/custom/host_key" {
		t.Fatalf("HostKeyPath() = %q, want /custom/host_key", got)
	}
}

func TestModelsConfigPathEnvOverride(t *testing.T) {
	clearPathEnv(t)
	t.Setenv("SSHWARMA_MODELS_CONFIG", "/custom/models.toml")
	if got := ModelsConfigPath(); got != "/custom/models.toml" {
		t.Fatalf("ModelsConfigPath() = %q, want /custom/models.toml", got)
	}
}

func TestXDGDataHomeOverride(t *testing.T) {
	clearPathEnv(t)
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	if got := DataDir(); got != "/xdg/data/sshwarma" {
		t.Fatalf("DataDir() = %q, want /xdg/data/sshwarma", got)
	}
	if got := DBPath(); got != "/xdg/data/sshwarma/sshwarma.db" {
		t.Fatalf("DBPath() = %q, want /xdg/data/sshwarma/sshwarma.db", got)
	}
}

func TestXDGConfigHomeOverride(t *testing.T) {
	clearPathEnv(t)
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	if got := ConfigDir(); got != "/xdg/config/sshwarma" {
		t.Fatalf("ConfigDir() = %q, want /xdg/config/sshwarma", got)
	}
	if got := ModelsConfigPath(); got != "/xdg/config/sshwarma/models.toml" {
		t.Fatalf("ModelsConfigPath() = %q, want /xdg/config/sshwarma/models.toml", got)
	}
}
