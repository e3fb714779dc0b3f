package run

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"conclave/internal/analysis"
	"conclave/internal/invoke"
	"conclave/internal/monitor"
	"conclave/internal/plan"
	"conclave/internal/store"
)

// Coordinator drives one analysis run end to end: it lays the config's roles
// out into waves, executes each wave's agents concurrently under a global
// concurrency bound, commits findings between waves and aggregates every
// outcome into a CombinedResult.
type Coordinator struct {
	invoker invoke.Invoker
	monitor *monitor.Monitor
	store   *store.Store
}

// New builds a coordinator. monitor and store may be nil; events and
// persistence are then skipped.
func New(invoker invoke.Invoker, mon *monitor.Monitor, st *store.Store) *Coordinator {
	return &Coordinator{invoker: invoker, monitor: mon, store: st}
}

// Request describes one run to execute.
type Request struct {
	RunID     string
	Config    analysis.RunConfig
	Mode      analysis.Mode
	Task      string
	Principal string
}

// Execute runs every role of the config and returns the combined result.
// Agent failures, timeouts and skips are recorded in the result, never
// returned as errors; the error return is reserved for configuration
// problems that prevent the run from starting at all.
func (c *Coordinator) Execute(ctx context.Context, req Request) (CombinedResult, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return CombinedResult{}, err
	}

	p, err := plan.BuildWaves(&cfg, req.Mode)
	if err != nil {
		return CombinedResult{}, err
	}

	agg := NewAggregator(req.RunID, cfg.Name, cfg.Strategy, req.Mode, len(cfg.Roles()))
	agg.SetWaves(p.Waves)

	c.persist(req, "running", nil)
	c.monitor.Emit(monitor.EventRunStarted, req.RunID, map[string]any{
		"preset":   cfg.Name,
		"mode":     string(req.Mode),
		"strategy": string(cfg.Strategy),
		"waves":    len(p.Waves),
	})
	slog.Info("analysis run started", "run", req.RunID, "preset", cfg.Name,
		"mode", req.Mode, "strategy", cfg.Strategy, "waves", len(p.Waves))

	limit := int64(cfg.MaxConcurrentAgents)
	if limit <= 0 {
		limit = int64(len(cfg.Roles()))
	}
	sem := semaphore.NewWeighted(limit)

	findings := plan.NewFindings()
	statuses := make(map[analysis.Role]Status)

	for i, wave := range p.Waves {
		c.monitor.Emit(monitor.EventWaveStarted, req.RunID, map[string]any{
			"wave":  i,
			"roles": roleNames(wave),
		})

		// Skip decisions for the whole wave are made up front, against the
		// statuses of prior waves, before any goroutine starts mutating them.
		var runnable []analysis.Role
		for _, role := range wave {
			if blocker, blocked := c.unsatisfied(role, p, statuses); blocked {
				agg.Record(c.skip(req.RunID, &cfg, role, blocker))
				statuses[role] = StatusSkipped
				continue
			}
			runnable = append(runnable, role)
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		active := 0

		for _, role := range runnable {
			wg.Add(1)
			go func(role analysis.Role) {
				defer wg.Done()
				if err := sem.Acquire(ctx, 1); err != nil {
					// Cancellation while queued reads the same as an
					// in-flight attempt: timed out.
					agg.Record(ExecutionOutcome{
						AgentKey: keyFor(&cfg, role),
						Role:     role,
						Status:   StatusTimedOut,
						Error:    err.Error(),
					})
					mu.Lock()
					statuses[role] = StatusTimedOut
					mu.Unlock()
					return
				}
				mu.Lock()
				active++
				agg.SetActive(active)
				mu.Unlock()

				outcome := c.executeRole(ctx, &cfg, role, findings, req.RunID, req.Task, req.Principal)

				sem.Release(1)
				mu.Lock()
				active--
				agg.SetActive(active)
				statuses[role] = outcome.Status
				mu.Unlock()

				agg.Record(outcome)
				c.monitor.Emit(monitor.EventAgentCompleted, req.RunID, map[string]any{
					"role":   string(role),
					"agent":  outcome.AgentKey,
					"status": string(outcome.Status),
				})
			}(role)
		}
		wg.Wait()

		// Insights surfaced during this wave become visible to the next one.
		findings.Commit()
		c.monitor.Emit(monitor.EventWaveCompleted, req.RunID, map[string]any{"wave": i})
	}

	agg.AddInsights(findings.All())
	result := agg.Finalize()

	status := "completed"
	if result.Progress.Completed == 0 {
		status = "failed"
	}
	c.persist(req, status, &result)
	c.monitor.Emit(monitor.EventRunCompleted, req.RunID, map[string]any{
		"completed": result.Progress.Completed,
		"failed":    result.Progress.Failed,
		"skipped":   result.Progress.Skipped,
	})
	slog.Info("analysis run finished", "run", req.RunID, "status", status,
		"completed", result.Progress.Completed, "failed", result.Progress.Failed,
		"skipped", result.Progress.Skipped)

	return result, nil
}

// unsatisfied reports whether any predecessor of the role failed to complete,
// returning the first blocking role.
func (c *Coordinator) unsatisfied(role analysis.Role, p *plan.Plan, statuses map[analysis.Role]Status) (analysis.Role, bool) {
	for _, pred := range p.Predecessors[role] {
		if st, done := statuses[pred]; done && st != StatusCompleted {
			return pred, true
		}
	}
	return "", false
}

func (c *Coordinator) skip(runID string, cfg *analysis.RunConfig, role, blocker analysis.Role) ExecutionOutcome {
	c.monitor.Emit(monitor.EventAgentSkipped, runID, map[string]any{
		"role":    string(role),
		"blocker": string(blocker),
	})
	slog.Info("agent skipped", "run", runID, "role", role, "blocker", blocker)
	return ExecutionOutcome{
		AgentKey:   keyFor(cfg, role),
		Role:       role,
		Status:     StatusSkipped,
		SkipReason: ReasonDependencyUnsatisfied,
	}
}

func (c *Coordinator) persist(req Request, status string, result *CombinedResult) {
	if c.store == nil {
		return
	}
	rec := &store.AnalysisRun{
		ID:       req.RunID,
		Preset:   req.Config.Name,
		Mode:     string(req.Mode),
		Strategy: string(req.Config.Strategy),
		Task:     req.Task,
		Status:   status,
	}
	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			rec.Result = data
		} else {
			slog.Warn("could not serialize run result", "run", req.RunID, "error", err)
		}
	}
	if err := c.store.SaveRun(rec); err != nil {
		slog.Warn("could not persist run", "run", req.RunID, "error", err)
	}
}

func keyFor(cfg *analysis.RunConfig, role analysis.Role) string {
	if p, ok := cfg.Primary(role); ok {
		return p.Key()
	}
	return "unknown:" + string(role)
}

func roleNames(roles []analysis.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
