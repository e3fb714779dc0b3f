package config

import (
	"testing"
	"time"
)

func TestDiff_NoChanges(t *testing.T) {
	cfg := &Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {BaseURL: "https://api.anthropic.com", APIKey: "secret:anthropic"},
		},
		Scheduler: SchedulerConfig{PollInterval: 30 * time.Second},
	}
	d := Diff(cfg, cfg)
	if d.HasChanges() {
		t.Error("expected no changes")
	}
}

func TestDiff_ProviderAdded(t *testing.T) {
	old := &Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKey: "k"},
		},
	}
	new := &Config{
		Providers: map[string]ProviderConfig{
			"anthropic":  {APIKey: "k"},
			"openrouter": {APIKey: "k2"},
		},
	}
	d := Diff(old, new)
	if len(d.ProvidersAdded) != 1 || d.ProvidersAdded[0] != "openrouter" {
		t.Errorf("expected openrouter added, got %v", d.ProvidersAdded)
	}
	if len(d.ProvidersRemoved) != 0 {
		t.Errorf("expected no removals, got %v", d.ProvidersRemoved)
	}
	if len(d.ProvidersChanged) != 0 {
		t.Errorf("expected no changes, got %v", d.ProvidersChanged)
	}
}

func TestDiff_ProviderRemoved(t *testing.T) {
	old := &Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKey: "k"},
			"deepseek":  {APIKey: "k2"},
		},
	}
	new := &Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKey: "k"},
		},
	}
	d := Diff(old, new)
	if len(d.ProvidersRemoved) != 1 || d.ProvidersRemoved[0] != "deepseek" {
		t.Errorf("expected deepseek removed, got %v", d.ProvidersRemoved)
	}
}

func TestDiff_ProviderKeyChanged(t *testing.T) {
	old := &Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKey: "old-key"},
		},
	}
	new := &Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKey: "new-key"},
		},
	}
	d := Diff(old, new)
	if len(d.ProvidersChanged) != 1 || d.ProvidersChanged[0] != "anthropic" {
		t.Errorf("expected anthropic changed, got %v", d.ProvidersChanged)
	}
}

func TestDiff_AnalysisChanged(t *testing.T) {
	old := &Config{
		Analysis: AnalysisConfig{MaxConcurrentAgents: 4, PerAgentTimeout: 5 * time.Minute},
	}
	new := &Config{
		Analysis: AnalysisConfig{MaxConcurrentAgents: 8, PerAgentTimeout: 5 * time.Minute},
	}
	d := Diff(old, new)
	if !d.AnalysisChanged {
		t.Error("expected analysis changed")
	}
	if d.NewAnalysis.MaxConcurrentAgents != 8 {
		t.Errorf("expected new limit 8, got %d", d.NewAnalysis.MaxConcurrentAgents)
	}
}

func TestDiff_SchedulerChanged(t *testing.T) {
	old := &Config{Scheduler: SchedulerConfig{PollInterval: 30 * time.Second}}
	new := &Config{Scheduler: SchedulerConfig{PollInterval: 60 * time.Second}}
	d := Diff(old, new)
	if !d.SchedulerChanged {
		t.Error("expected scheduler changed")
	}
	if d.NewScheduler.PollInterval != 60*time.Second {
		t.Errorf("expected 60s, got %v", d.NewScheduler.PollInterval)
	}
}

func TestDiff_NonReloadable(t *testing.T) {
	old := &Config{
		Web:   WebConfig{Port: 8080},
		Store: StoreConfig{Path: "data/a.db"},
	}
	new := &Config{
		Web:   WebConfig{Port: 9090},
		Store: StoreConfig{Path: "data/b.db"},
	}
	d := Diff(old, new)
	if len(d.NonReloadable) != 2 {
		t.Errorf("expected 2 non-reloadable warnings, got %v", d.NonReloadable)
	}
	if d.HasChanges() {
		t.Error("non-reloadable changes should not count as reloadable")
	}
}
