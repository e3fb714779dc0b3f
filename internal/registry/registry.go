package registry

import (
	"sort"
	"sync"
	"time"

	"conclave/internal/analysis"
)

// Registry holds named, reusable run configurations. It is an explicit
// instance handed to whoever needs it; there is no package-level registry,
// so tests and parallel gateways each get their own.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]analysis.RunConfig
}

func New() *Registry {
	return &Registry{
		configs: make(map[string]analysis.RunConfig),
	}
}

// BuildOpts carries the run limits applied to a built configuration.
type BuildOpts struct {
	FallbackEnabled     bool
	FallbackTimeout     time.Duration
	PerAgentTimeout     time.Duration
	MaxConcurrentAgents int
}

// Build assembles a run configuration from a set of primary agents plus a
// shared fallback chain, validates it, and registers it under name. The
// returned config is a value; callers can mutate their copy without
// affecting the registry.
func (r *Registry) Build(name string, strategy analysis.Strategy, primaries []analysis.AgentSpec, chain []analysis.AgentSpec, opts BuildOpts) (analysis.RunConfig, error) {
	agents := make([]analysis.AgentSpec, 0, len(primaries)+len(chain))
	for _, p := range primaries {
		p.Position = analysis.PositionPrimary
		agents = append(agents, p)
	}
	agents = append(agents, chain...)

	cfg := analysis.RunConfig{
		Name:                name,
		Strategy:            strategy,
		Agents:              agents,
		FallbackEnabled:     opts.FallbackEnabled,
		FallbackTimeout:     opts.FallbackTimeout,
		PerAgentTimeout:     opts.PerAgentTimeout,
		MaxConcurrentAgents: opts.MaxConcurrentAgents,
	}
	if err := cfg.Validate(); err != nil {
		return analysis.RunConfig{}, err
	}

	r.mu.Lock()
	r.configs[name] = cfg
	r.mu.Unlock()
	return cfg, nil
}

// Register validates and stores a ready-made configuration.
func (r *Registry) Register(name string, cfg analysis.RunConfig) error {
	cfg.Name = name
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.configs[name] = cfg
	r.mu.Unlock()
	return nil
}

// Get returns the configuration registered under name.
func (r *Registry) Get(name string) (analysis.RunConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// Names lists the registered configuration names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for n := range r.configs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
