package analysis

import (
	"fmt"
	"sort"
	"time"
)

// Position declares priority of use for a role's agents.
type Position string

const (
	PositionPrimary   Position = "primary"
	PositionSecondary Position = "secondary"
	PositionFallback  Position = "fallback"
)

// Strategy is the dispatch policy for a run.
type Strategy string

const (
	StrategyParallel    Strategy = "parallel"    // everything in one wave
	StrategySequential  Strategy = "sequential"  // one role per wave, declared order
	StrategySpecialized Strategy = "specialized" // waves from the mode dependency table
)

// Mode selects the dependency table used for specialized runs.
type Mode string

const (
	ModeQuick    Mode = "quick"
	ModeStandard Mode = "standard"
	ModeDeep     Mode = "deep"
)

// AgentSpec describes one configured agent: which role it covers, which
// provider/model serves it, and where it sits in the role's fallback chain.
type AgentSpec struct {
	Role       Role              `yaml:"role" json:"role"`
	Provider   string            `yaml:"provider" json:"provider"`
	Model      string            `yaml:"model" json:"model"`
	Position   Position          `yaml:"position" json:"position"`
	Priority   int               `yaml:"priority" json:"priority"`
	Parameters map[string]string `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Key returns the canonical "provider:role" identity of the spec.
func (a AgentSpec) Key() string {
	return a.Provider + ":" + string(a.Role)
}

// Insight is a cross-agent note published by one agent's outcome for
// consumption by agents in strictly later waves.
type Insight struct {
	Source  Role   `json:"source"`
	Target  string `json:"target"` // canonical role, or "*" for everyone
	Kind    string `json:"kind"`
	Payload string `json:"payload"`
}

// RunConfig is one complete, immutable run configuration. Build one through
// the registry; mutating it after Validate has passed is a caller bug.
type RunConfig struct {
	Name                string        `yaml:"name" json:"name"`
	Strategy            Strategy      `yaml:"strategy" json:"strategy"`
	Agents              []AgentSpec   `yaml:"agents" json:"agents"`
	FallbackEnabled     bool          `yaml:"fallback_enabled" json:"fallback_enabled"`
	FallbackTimeout     time.Duration `yaml:"fallback_timeout" json:"fallback_timeout"`
	PerAgentTimeout     time.Duration `yaml:"per_agent_timeout" json:"per_agent_timeout"`
	MaxConcurrentAgents int           `yaml:"max_concurrent_agents" json:"max_concurrent_agents"`
}

// Validate checks the structural invariants: at least one agent, exactly one
// primary per role, unique (role, provider) pairs, and strictly ordered
// priorities among fallback entries of the same role.
func (c *RunConfig) Validate() error {
	if len(c.Agents) == 0 {
		return configErrorf("run config %q has no agents", c.Name)
	}
	switch c.Strategy {
	case StrategyParallel, StrategySequential, StrategySpecialized:
	default:
		return configErrorf("run config %q has unknown strategy %q", c.Name, c.Strategy)
	}

	primaries := make(map[Role]int)
	pairs := make(map[string]bool)
	fallbackPrios := make(map[Role]map[int]bool)

	for _, a := range c.Agents {
		role, ok := NormalizeRole(string(a.Role))
		if !ok {
			return configErrorf("run config %q references unknown role %q", c.Name, a.Role)
		}
		if a.Provider == "" {
			return configErrorf("agent for role %q has no provider", role)
		}
		pair := a.Provider + ":" + string(role)
		if pairs[pair] {
			return configErrorf("duplicate agent %q in run config %q", pair, c.Name)
		}
		pairs[pair] = true

		switch a.Position {
		case PositionPrimary:
			primaries[role]++
		case PositionSecondary:
		case PositionFallback:
			if fallbackPrios[role] == nil {
				fallbackPrios[role] = make(map[int]bool)
			}
			if fallbackPrios[role][a.Priority] {
				return configErrorf("role %q has two fallback agents with priority %d", role, a.Priority)
			}
			fallbackPrios[role][a.Priority] = true
		default:
			return configErrorf("agent %q has unknown position %q", pair, a.Position)
		}
	}

	for _, a := range c.Agents {
		role, _ := NormalizeRole(string(a.Role))
		if primaries[role] == 0 {
			return configErrorf("role %q has no primary agent", role)
		}
	}
	for role, n := range primaries {
		if n > 1 {
			return configErrorf("role %q has %d primary agents, want exactly one", role, n)
		}
	}
	if c.MaxConcurrentAgents < 0 {
		return configErrorf("max_concurrent_agents must not be negative")
	}
	return nil
}

// Roles returns the distinct roles of the config in declared order, with
// every role name normalized.
func (c *RunConfig) Roles() []Role {
	seen := make(map[Role]bool)
	var out []Role
	for _, a := range c.Agents {
		role, ok := NormalizeRole(string(a.Role))
		if !ok || seen[role] {
			continue
		}
		seen[role] = true
		out = append(out, role)
	}
	return out
}

// Primary returns the primary agent for a role.
func (c *RunConfig) Primary(role Role) (AgentSpec, bool) {
	for _, a := range c.Agents {
		if r, _ := NormalizeRole(string(a.Role)); r == role && a.Position == PositionPrimary {
			return a, true
		}
	}
	return AgentSpec{}, false
}

// FallbackChain returns the non-primary agents for a role in the order they
// should be tried: secondaries before fallbacks, each sorted by ascending
// priority.
func (c *RunConfig) FallbackChain(role Role) []AgentSpec {
	var secondaries, fallbacks []AgentSpec
	for _, a := range c.Agents {
		if r, _ := NormalizeRole(string(a.Role)); r != role {
			continue
		}
		switch a.Position {
		case PositionSecondary:
			secondaries = append(secondaries, a)
		case PositionFallback:
			fallbacks = append(fallbacks, a)
		}
	}
	sort.SliceStable(secondaries, func(i, j int) bool { return secondaries[i].Priority < secondaries[j].Priority })
	sort.SliceStable(fallbacks, func(i, j int) bool { return fallbacks[i].Priority < fallbacks[j].Priority })
	return append(secondaries, fallbacks...)
}

// AttemptTimeout returns the deadline for an attempt against the given spec:
// fallback entries use the fallback timeout when one is configured, everything
// else uses the per-agent timeout.
func (c *RunConfig) AttemptTimeout(spec AgentSpec) time.Duration {
	if spec.Position == PositionFallback && c.FallbackTimeout > 0 {
		return c.FallbackTimeout
	}
	return c.PerAgentTimeout
}

func (c *RunConfig) String() string {
	return fmt.Sprintf("%s[%s, %d agents]", c.Name, c.Strategy, len(c.Agents))
}
