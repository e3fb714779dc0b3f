package analysis

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"security", RoleSecurity, true},
		{"Security", RoleSecurity, true},
		{"  SECURITY ", RoleSecurity, true},
		{"codeQuality", RoleQuality, true},
		{"code_quality", RoleQuality, true},
		{"Code-Quality", RoleQuality, true},
		{"deps", RoleDependencies, true},
		{"dependency", RoleDependencies, true},
		{"perf", RolePerformance, true},
		{"docs", RoleDocumentation, true},
		{"arch", RoleArchitecture, true},
		{"astrology", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := NormalizeRole(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("NormalizeRole(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleSecurity.Valid() {
		t.Error("expected security to be valid")
	}
	if Role("Security").Valid() {
		t.Error("non-canonical spelling must not be Valid")
	}
	if Role("astrology").Valid() {
		t.Error("unknown role must not be Valid")
	}
}

func validConfig() RunConfig {
	return RunConfig{
		Name:     "test",
		Strategy: StrategySpecialized,
		Agents: []AgentSpec{
			{Role: RoleSecurity, Provider: "anthropic", Model: "claude-sonnet-4-5", Position: PositionPrimary},
			{Role: RoleSecurity, Provider: "openrouter", Model: "deepseek/deepseek-chat", Position: PositionFallback, Priority: 1},
			{Role: RoleArchitecture, Provider: "anthropic", Model: "claude-sonnet-4-5", Position: PositionPrimary},
		},
		PerAgentTimeout:     30 * time.Second,
		MaxConcurrentAgents: 3,
	}
}

func TestValidateOK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RunConfig)
	}{
		{"no agents", func(c *RunConfig) { c.Agents = nil }},
		{"unknown strategy", func(c *RunConfig) { c.Strategy = "clever" }},
		{"unknown role", func(c *RunConfig) { c.Agents[0].Role = "astrology" }},
		{"missing provider", func(c *RunConfig) { c.Agents[0].Provider = "" }},
		{"duplicate pair", func(c *RunConfig) {
			c.Agents = append(c.Agents, AgentSpec{Role: RoleSecurity, Provider: "anthropic", Position: PositionFallback, Priority: 2})
		}},
		{"two primaries", func(c *RunConfig) {
			c.Agents = append(c.Agents, AgentSpec{Role: RoleSecurity, Provider: "google", Position: PositionPrimary})
		}},
		{"no primary", func(c *RunConfig) { c.Agents[2].Position = PositionFallback }},
		{"duplicate fallback priority", func(c *RunConfig) {
			c.Agents = append(c.Agents, AgentSpec{Role: RoleSecurity, Provider: "google", Position: PositionFallback, Priority: 1})
		}},
		{"unknown position", func(c *RunConfig) { c.Agents[0].Position = "backup" }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected validation error", tc.name)
			continue
		}
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("%s: expected ConfigError, got %T", tc.name, err)
		}
	}
}

func TestValidateNormalizesRoleSpelling(t *testing.T) {
	// The same role spelled differently across entries must be treated as one
	// role, so a second primary under a variant spelling is rejected.
	cfg := validConfig()
	cfg.Agents = append(cfg.Agents, AgentSpec{Role: "SECURITY", Provider: "google", Position: PositionPrimary})
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate primary to be detected across spellings")
	}
}

func TestFallbackChainOrder(t *testing.T) {
	cfg := RunConfig{
		Name:     "chain",
		Strategy: StrategyParallel,
		Agents: []AgentSpec{
			{Role: RoleSecurity, Provider: "p0", Position: PositionPrimary},
			{Role: RoleSecurity, Provider: "f2", Position: PositionFallback, Priority: 2},
			{Role: RoleSecurity, Provider: "s1", Position: PositionSecondary, Priority: 1},
			{Role: RoleSecurity, Provider: "f1", Position: PositionFallback, Priority: 1},
		},
	}
	chain := cfg.FallbackChain(RoleSecurity)
	want := []string{"s1", "f1", "f2"}
	if len(chain) != len(want) {
		t.Fatalf("chain length = %d, want %d", len(chain), len(want))
	}
	for i, p := range want {
		if chain[i].Provider != p {
			t.Errorf("chain[%d].Provider = %q, want %q", i, chain[i].Provider, p)
		}
	}
}

func TestAttemptTimeout(t *testing.T) {
	cfg := RunConfig{PerAgentTimeout: 10 * time.Second, FallbackTimeout: 3 * time.Second}
	primary := AgentSpec{Position: PositionPrimary}
	fb := AgentSpec{Position: PositionFallback}

	if got := cfg.AttemptTimeout(primary); got != 10*time.Second {
		t.Errorf("primary timeout = %v", got)
	}
	if got := cfg.AttemptTimeout(fb); got != 3*time.Second {
		t.Errorf("fallback timeout = %v", got)
	}

	cfg.FallbackTimeout = 0
	if got := cfg.AttemptTimeout(fb); got != 10*time.Second {
		t.Errorf("fallback without dedicated timeout = %v, want per-agent value", got)
	}
}

func TestRolesDeclaredOrder(t *testing.T) {
	cfg := validConfig()
	roles := cfg.Roles()
	if len(roles) != 2 || roles[0] != RoleSecurity || roles[1] != RoleArchitecture {
		t.Fatalf("roles = %v", roles)
	}
}
