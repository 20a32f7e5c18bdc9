package config

import (
	"os"
	"testing"
)

// unsetenv clears name for the duration of the test; t.Setenv first so the
// original value is restored afterwards.
func unsetenv(t *testing.T, name string) {
	t.Helper()
	t.Setenv(name, "")
	os.Unsetenv(name)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WEAVE_API_KEY", "sk-test")
	unsetenv(t, "WEAVE_WORLD_ID")
	unsetenv(t, "WEAVE_URL")
	unsetenv(t, "WEAVE_DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.APIKey)
	}
	if cfg.URL != "wss://api.weave.dev/ws" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.Debug {
		t.Error("Debug should default to false")
	}
}

func TestLoadFullEnvironment(t *testing.T) {
	t.Setenv("WEAVE_API_KEY", "sk-test")
	t.Setenv("WEAVE_WORLD_ID", "world-9")
	t.Setenv("WEAVE_URL", "ws://localhost:9090/ws")
	t.Setenv("WEAVE_DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorldID != "world-9" {
		t.Errorf("WorldID = %q", cfg.WorldID)
	}
	if cfg.URL != "ws://localhost:9090/ws" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("WEAVE_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without WEAVE_API_KEY")
	}
}
