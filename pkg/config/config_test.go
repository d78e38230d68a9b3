package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("got listen addr %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Model.RepairModel == "" {
		t.Error("repair model should default")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  listen_addr: ":9090"
model:
  name: custom-model
disabled_tools:
  - search_tweets
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("got %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Model.Name != "custom-model" {
		t.Errorf("got %q, want custom-model", cfg.Model.Name)
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "search_tweets" {
		t.Errorf("unexpected disabled tools: %v", cfg.DisabledTools)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"NEUR_LISTEN_ADDR":    ":7070",
		"OPENAI_API_KEY":      "sk-test",
		"NEUR_DISABLED_TOOLS": `["swap_tokens","transfer_tokens"]`,
		"NEUR_TRACING":        "true",
	}
	applyEnv(&cfg, func(k string) (string, bool) { v, ok := env[k]; return v, ok })

	if cfg.Server.ListenAddr != ":7070" {
		t.Errorf("env override lost: %q", cfg.Server.ListenAddr)
	}
	if cfg.Model.APIKey != "sk-test" {
		t.Errorf("api key not applied")
	}
	if len(cfg.DisabledTools) != 2 {
		t.Errorf("got %v, want two disabled tools", cfg.DisabledTools)
	}
	if !cfg.Telemetry.TracingEnabled {
		t.Error("tracing flag not applied")
	}
}

func TestApplyEnvMalformedDisabledTools(t *testing.T) {
	cfg := Default()
	env := map[string]string{"NEUR_DISABLED_TOOLS": `not json`}
	applyEnv(&cfg, func(k string) (string, bool) { v, ok := env[k]; return v, ok })

	if len(cfg.DisabledTools) != 0 {
		t.Errorf("malformed value should be ignored, got %v", cfg.DisabledTools)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation failure without secrets")
	}
	cfg.Server.JWTSecret = "secret"
	cfg.Model.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}
