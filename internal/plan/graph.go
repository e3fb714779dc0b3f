package plan

import (
	"conclave/internal/analysis"
)

// edge declares that From must reach a terminal state before To may start.
type edge struct {
	From, To analysis.Role
}

// Static per-mode dependency tables. Restricting a table to the roles present
// in a run config can only remove edges, so these stay acyclic as long as the
// tables themselves are.
var modeEdges = map[analysis.Mode][]edge{
	analysis.ModeQuick: nil,
	analysis.ModeStandard: {
		{analysis.RoleDependencies, analysis.RoleSecurity},
		{analysis.RoleArchitecture, analysis.RolePerformance},
	},
	analysis.ModeDeep: {
		{analysis.RoleDependencies, analysis.RoleSecurity},
		{analysis.RoleSecurity, analysis.RoleArchitecture},
		{analysis.RoleArchitecture, analysis.RolePerformance},
		{analysis.RoleSecurity, analysis.RoleDocumentation},
		{analysis.RolePerformance, analysis.RoleDocumentation},
		{analysis.RoleQuality, analysis.RoleDocumentation},
	},
}

// Plan is the wave schedule for one run.
type Plan struct {
	Waves        [][]analysis.Role
	Predecessors map[analysis.Role][]analysis.Role
}

// BuildWaves partitions the config's roles into ordered waves according to
// the run strategy. Specialized runs layer the mode's dependency table with
// Kahn's algorithm; parallel runs collapse everything into a single wave;
// sequential runs give every role its own wave in declared order.
//
// Dependency edges are kept on the plan for every strategy so the
// orchestrator can skip roles whose prerequisites failed.
func BuildWaves(cfg *analysis.RunConfig, mode analysis.Mode) (*Plan, error) {
	switch mode {
	case analysis.ModeQuick, analysis.ModeStandard, analysis.ModeDeep:
	default:
		return nil, analysis.NewConfigError("unknown analysis mode %q", mode)
	}

	roles := cfg.Roles()
	if len(roles) == 0 {
		return nil, analysis.NewConfigError("run config %q resolves to no roles", cfg.Name)
	}

	edges := restrict(modeEdges[mode], roles)
	preds := make(map[analysis.Role][]analysis.Role)
	for _, e := range edges {
		preds[e.To] = append(preds[e.To], e.From)
	}

	p := &Plan{Predecessors: preds}

	switch cfg.Strategy {
	case analysis.StrategyParallel:
		p.Waves = [][]analysis.Role{roles}
	case analysis.StrategySequential:
		for _, r := range roles {
			p.Waves = append(p.Waves, []analysis.Role{r})
		}
	case analysis.StrategySpecialized:
		waves, err := layer(roles, edges)
		if err != nil {
			return nil, err
		}
		p.Waves = waves
	default:
		return nil, analysis.NewConfigError("unknown strategy %q", cfg.Strategy)
	}

	return p, nil
}

func restrict(edges []edge, roles []analysis.Role) []edge {
	present := make(map[analysis.Role]bool, len(roles))
	for _, r := range roles {
		present[r] = true
	}
	var out []edge
	for _, e := range edges {
		if present[e.From] && present[e.To] {
			out = append(out, e)
		}
	}
	return out
}

// layer performs a topological layering with Kahn's algorithm: wave 0 holds
// the roles with no unresolved incoming edges, each following wave the roles
// whose predecessors all sit in earlier waves. A cycle is a ConfigError, not
// a hang.
func layer(roles []analysis.Role, edges []edge) ([][]analysis.Role, error) {
	succ := make(map[analysis.Role][]analysis.Role)
	inDegree := make(map[analysis.Role]int, len(roles))
	for _, r := range roles {
		inDegree[r] = 0
	}
	for _, e := range edges {
		succ[e.From] = append(succ[e.From], e.To)
		inDegree[e.To]++
	}

	depth := make(map[analysis.Role]int, len(roles))
	var queue []analysis.Role
	for _, r := range roles {
		if inDegree[r] == 0 {
			queue = append(queue, r)
			depth[r] = 0
		}
	}

	processed := 0
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		processed++

		for _, next := range succ[r] {
			if d := depth[r] + 1; d > depth[next] {
				depth[next] = d
			}
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if processed != len(roles) {
		return nil, analysis.NewConfigError("dependency graph contains a cycle")
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	waves := make([][]analysis.Role, 0, maxDepth+1)
	for d := 0; d <= maxDepth; d++ {
		var wave []analysis.Role
		// Iterate declared order so wave membership is deterministic.
		for _, r := range roles {
			if depth[r] == d {
				wave = append(wave, r)
			}
		}
		if len(wave) > 0 {
			waves = append(waves, wave)
		}
	}
	return waves, nil
}
