package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.NATS.Port != 4222 {
		t.Errorf("expected nats port 4222, got %d", cfg.NATS.Port)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("expected web port 8080, got %d", cfg.Web.Port)
	}
	if !cfg.Web.Enabled {
		t.Error("expected web enabled by default")
	}
	if cfg.Store.Path != "data/conclave.db" {
		t.Errorf("expected store path data/conclave.db, got %s", cfg.Store.Path)
	}
	if cfg.Analysis.MaxConcurrentAgents != 4 {
		t.Errorf("expected max_concurrent_agents 4, got %d", cfg.Analysis.MaxConcurrentAgents)
	}
	if cfg.Analysis.PerAgentTimeout != 5*time.Minute {
		t.Errorf("expected per_agent_timeout 5m, got %v", cfg.Analysis.PerAgentTimeout)
	}
	if !cfg.Analysis.FallbackEnabled {
		t.Error("expected fallback enabled by default")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	// Point config to a non-existent file so we use defaults
	t.Setenv("CONCLAVE_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("CONCLAVE_WEB_PASSWORD", "secret")
	t.Setenv("CONCLAVE_WEB_PORT", "9090")
	t.Setenv("CONCLAVE_VAULT_PASSPHRASE", "hunter2")
	t.Setenv("CONCLAVE_STORE_PATH", "/tmp/c.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Web.Auth != "secret" {
		t.Errorf("expected web auth secret, got %s", cfg.Web.Auth)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected web port 9090, got %d", cfg.Web.Port)
	}
	if cfg.Vault.Passphrase != "hunter2" {
		t.Errorf("expected vault passphrase override, got %s", cfg.Vault.Passphrase)
	}
	if cfg.Store.Path != "/tmp/c.db" {
		t.Errorf("expected store path override, got %s", cfg.Store.Path)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
web:
  port: 3000
  enabled: false
analysis:
  max_concurrent_agents: 8
  fallback_enabled: true
providers:
  openrouter:
    base_url: "https://openrouter.ai/api/v1"
    api_key: "secret:openrouter"
  anthropic:
    api_key: "sk-test"
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONCLAVE_CONFIG", cfgPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Web.Port != 3000 {
		t.Errorf("expected web port 3000, got %d", cfg.Web.Port)
	}
	if cfg.Web.Enabled {
		t.Error("expected web disabled")
	}
	if cfg.Analysis.MaxConcurrentAgents != 8 {
		t.Errorf("expected max_concurrent_agents 8, got %d", cfg.Analysis.MaxConcurrentAgents)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cfg.Providers))
	}
	if cfg.Providers["openrouter"].APIKey != "secret:openrouter" {
		t.Errorf("expected secret reference preserved, got %s", cfg.Providers["openrouter"].APIKey)
	}
}
