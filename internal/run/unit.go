package run

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"conclave/internal/analysis"
	"conclave/internal/invoke"
	"conclave/internal/monitor"
	"conclave/internal/plan"
)

// executeRole walks one role's agent chain: the primary first, then on
// failure or timeout each configured substitute by ascending priority while
// fallback is enabled. Every attempt gets its own deadline and reads the
// shared findings addressed to the role; the first completed attempt wins.
func (c *Coordinator) executeRole(ctx context.Context, cfg *analysis.RunConfig, role analysis.Role, findings *plan.Findings, runID, task, principal string) ExecutionOutcome {
	primary, ok := cfg.Primary(role)
	if !ok {
		// Validate guarantees a primary; reaching here is a programming error
		// worth recording rather than panicking over.
		return ExecutionOutcome{
			AgentKey: "unknown:" + string(role),
			Role:     role,
			Status:   StatusFailed,
			Error:    "no primary agent configured",
		}
	}

	attempts := []analysis.AgentSpec{primary}
	if cfg.FallbackEnabled {
		attempts = append(attempts, cfg.FallbackChain(role)...)
	}

	var lastErr error
	var lastStatus Status
	roleStart := time.Now()

	for i, spec := range attempts {
		if i > 0 {
			c.monitor.Emit(monitor.EventAgentFallback, runID, map[string]any{
				"role":     string(role),
				"provider": spec.Provider,
				"replaces": primary.Key(),
			})
			slog.Info("substituting fallback agent", "run", runID, "role", role,
				"provider", spec.Provider, "attempt", i+1)
		}

		started := time.Now()
		c.monitor.Emit(monitor.EventAgentStarted, runID, map[string]any{
			"role":     string(role),
			"provider": spec.Provider,
		})

		req := invoke.Request{
			RunID:     runID,
			Spec:      spec,
			Task:      task,
			Findings:  findings.ReadFor(role),
			Principal: principal,
		}
		res, err := runWithTimeout(ctx, cfg.AttemptTimeout(spec), func(attemptCtx context.Context) (invoke.Result, error) {
			return c.invoker.Invoke(attemptCtx, req)
		})

		if err == nil {
			outcome := ExecutionOutcome{
				AgentKey:  spec.Key(),
				Role:      role,
				Provider:  spec.Provider,
				Model:     spec.Model,
				Status:    StatusCompleted,
				Output:    res.Output,
				StartedAt: started,
				Duration:  time.Since(started),
			}
			if i > 0 {
				p := primary
				outcome.UsedFallbackOf = &p
			}
			c.publishInsights(findings, role, res.Insights)
			return outcome
		}

		lastErr = err
		if errors.Is(err, ErrAttemptTimeout) {
			lastStatus = StatusTimedOut
			slog.Warn("agent attempt timed out", "run", runID, "role", role, "provider", spec.Provider)
		} else {
			lastStatus = StatusFailed
			slog.Warn("agent attempt failed", "run", runID, "role", role, "provider", spec.Provider, "error", err)
		}

		// The whole run was cancelled: stop walking the chain.
		if ctx.Err() != nil {
			break
		}
	}

	// Chain exhausted: terminal failure attributed to the last attempt,
	// recording the last error.
	last := attempts[len(attempts)-1]
	outcome := ExecutionOutcome{
		AgentKey:  last.Key(),
		Role:      role,
		Provider:  last.Provider,
		Model:     last.Model,
		Status:    lastStatus,
		StartedAt: roleStart,
		Duration:  time.Since(roleStart),
	}
	if lastErr != nil {
		outcome.Error = lastErr.Error()
	}
	if len(attempts) > 1 {
		p := primary
		outcome.UsedFallbackOf = &p
	}
	return outcome
}

// publishInsights stages an agent's declared insights for later waves,
// stamping the source role.
func (c *Coordinator) publishInsights(findings *plan.Findings, source analysis.Role, insights []analysis.Insight) {
	for _, in := range insights {
		in.Source = source
		if in.Target == "" {
			in.Target = plan.TargetAll
		}
		findings.Publish(in)
	}
}
