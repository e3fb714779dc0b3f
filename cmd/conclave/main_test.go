package main

import (
	"path/filepath"
	"strings"
	"testing"

	"conclave/internal/config"
	"conclave/internal/store"
	"conclave/internal/vault"
)

func TestResolveProvidersOpensSealedSecret(t *testing.T) {
	db, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "conclave.db")})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer db.Close()

	v := vault.New("passphrase")
	sealed, err := v.Seal([]byte("sk-live-123"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if err := db.SaveSecret(&store.Secret{ID: "s1", Name: "anthropic-key", Sealed: sealed}); err != nil {
		t.Fatalf("save secret: %v", err)
	}

	cfg := &config.Config{Providers: map[string]config.ProviderConfig{
		"anthropic":  {BaseURL: "https://api.anthropic.com", APIKey: "secret:anthropic-key"},
		"openrouter": {APIKey: "sk-literal"},
	}}

	providers, err := resolveProviders(cfg, db, v)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := providers["anthropic"].APIKey; got != "sk-live-123" {
		t.Errorf("anthropic api key = %q, want the opened secret", got)
	}
	if got := providers["openrouter"].APIKey; got != "sk-literal" {
		t.Errorf("openrouter api key = %q", got)
	}
}

func TestResolveProvidersMissingSecret(t *testing.T) {
	db, err := store.New(config.StoreConfig{Path: filepath.Join(t.TempDir(), "conclave.db")})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer db.Close()

	cfg := &config.Config{Providers: map[string]config.ProviderConfig{
		"anthropic": {APIKey: "secret:never-stored"},
	}}

	_, err = resolveProviders(cfg, db, vault.New("passphrase"))
	if err == nil || !strings.Contains(err.Error(), "never-stored") {
		t.Fatalf("expected missing-secret error, got %v", err)
	}
}
