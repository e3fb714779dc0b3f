package registry

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"conclave/internal/analysis"
	"conclave/internal/config"
)

// RegisterDefaults installs the built-in presets using the configured run
// limits. Provider/model choices mirror what the analysis agents actually
// serve; fallbacks route through openrouter so a single provider outage
// never sinks a run.
func RegisterDefaults(r *Registry, limits config.AnalysisConfig) error {
	opts := BuildOpts{
		FallbackEnabled:     limits.FallbackEnabled,
		FallbackTimeout:     limits.FallbackTimeout,
		PerAgentTimeout:     limits.PerAgentTimeout,
		MaxConcurrentAgents: limits.MaxConcurrentAgents,
	}

	primary := func(role analysis.Role) analysis.AgentSpec {
		return analysis.AgentSpec{
			Role:     role,
			Provider: "anthropic",
			Model:    "claude-sonnet-4-5",
		}
	}
	fallback := func(role analysis.Role, prio int, provider, model string) analysis.AgentSpec {
		return analysis.AgentSpec{
			Role:     role,
			Provider: provider,
			Model:    model,
			Position: analysis.PositionFallback,
			Priority: prio,
		}
	}
	chainFor := func(roles ...analysis.Role) []analysis.AgentSpec {
		var chain []analysis.AgentSpec
		for _, role := range roles {
			chain = append(chain,
				fallback(role, 1, "openrouter", "anthropic/claude-3-7-sonnet"),
				fallback(role, 2, "deepseek", "deepseek-chat"),
			)
		}
		return chain
	}

	presets := []struct {
		name     string
		strategy analysis.Strategy
		roles    []analysis.Role
	}{
		{"quick-scan", analysis.StrategyParallel,
			[]analysis.Role{analysis.RoleSecurity, analysis.RoleQuality}},
		{"security-standard", analysis.StrategySpecialized,
			[]analysis.Role{analysis.RoleDependencies, analysis.RoleSecurity}},
		{"full-review", analysis.StrategySpecialized,
			[]analysis.Role{analysis.RoleSecurity, analysis.RolePerformance, analysis.RoleArchitecture,
				analysis.RoleQuality, analysis.RoleDependencies}},
		{"deep-review", analysis.StrategySpecialized,
			[]analysis.Role{analysis.RoleSecurity, analysis.RolePerformance, analysis.RoleArchitecture,
				analysis.RoleQuality, analysis.RoleDependencies, analysis.RoleDocumentation}},
	}

	for _, p := range presets {
		var primaries []analysis.AgentSpec
		for _, role := range p.roles {
			primaries = append(primaries, primary(role))
		}
		if _, err := r.Build(p.name, p.strategy, primaries, chainFor(p.roles...), opts); err != nil {
			return fmt.Errorf("register preset %s: %w", p.name, err)
		}
	}
	return nil
}

// presetFile is the YAML shape for user-supplied presets. Timeouts are given
// in milliseconds.
type presetFile struct {
	Presets []presetEntry `yaml:"presets"`
}

type presetEntry struct {
	Name                string               `yaml:"name"`
	Strategy            analysis.Strategy    `yaml:"strategy"`
	Agents              []analysis.AgentSpec `yaml:"agents"`
	FallbackEnabled     *bool                `yaml:"fallback_enabled"`
	FallbackTimeoutMs   int64                `yaml:"fallback_timeout_ms"`
	PerAgentTimeoutMs   int64                `yaml:"per_agent_timeout_ms"`
	MaxConcurrentAgents int                  `yaml:"max_concurrent_agents"`
}

// LoadPresetsFile reads additional presets from a YAML file and registers
// them, filling unset limits from the configured defaults.
func LoadPresetsFile(r *Registry, path string, limits config.AnalysisConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read presets: %w", err)
	}

	var pf presetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse presets: %w", err)
	}

	for _, p := range pf.Presets {
		cfg := analysis.RunConfig{
			Name:                p.Name,
			Strategy:            p.Strategy,
			Agents:              p.Agents,
			FallbackEnabled:     limits.FallbackEnabled,
			FallbackTimeout:     limits.FallbackTimeout,
			PerAgentTimeout:     limits.PerAgentTimeout,
			MaxConcurrentAgents: limits.MaxConcurrentAgents,
		}
		if p.FallbackEnabled != nil {
			cfg.FallbackEnabled = *p.FallbackEnabled
		}
		if p.FallbackTimeoutMs > 0 {
			cfg.FallbackTimeout = time.Duration(p.FallbackTimeoutMs) * time.Millisecond
		}
		if p.PerAgentTimeoutMs > 0 {
			cfg.PerAgentTimeout = time.Duration(p.PerAgentTimeoutMs) * time.Millisecond
		}
		if p.MaxConcurrentAgents > 0 {
			cfg.MaxConcurrentAgents = p.MaxConcurrentAgents
		}
		if err := r.Register(p.Name, cfg); err != nil {
			return fmt.Errorf("register preset %s: %w", p.Name, err)
		}
	}
	return nil
}
