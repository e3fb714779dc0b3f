package run

import (
	"fmt"
	"sync"
	"time"

	"conclave/internal/analysis"
)

// Aggregator collects per-role outcomes into a CombinedResult. Outcomes are
// keyed by canonical role name so that variant spellings coming back from
// agents ("Security", "sec-agent") collapse onto one entry instead of
// duplicating it.
type Aggregator struct {
	mu     sync.Mutex
	result CombinedResult
}

func NewAggregator(runID, preset string, strategy analysis.Strategy, mode analysis.Mode, totalAgents int) *Aggregator {
	return &Aggregator{
		result: CombinedResult{
			RunID:     runID,
			Preset:    preset,
			Strategy:  strategy,
			Mode:      mode,
			Outcomes:  make(map[string]ExecutionOutcome),
			StartedAt: time.Now(),
			Progress:  Progress{TotalAgents: totalAgents},
		},
	}
}

// Record merges one outcome. The role is canonicalized before keying; an
// unrecognized role is kept under its raw name with a warning so the result
// is never silently lossy.
func (a *Aggregator) Record(outcome ExecutionOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := string(outcome.Role)
	if canon, ok := analysis.NormalizeRole(key); ok {
		key = string(canon)
		outcome.Role = canon
	} else {
		a.result.Warnings = append(a.result.Warnings,
			fmt.Sprintf("unrecognized role %q recorded as-is", key))
	}

	if prev, dup := a.result.Outcomes[key]; dup {
		a.result.Warnings = append(a.result.Warnings,
			fmt.Sprintf("duplicate outcome for role %q replaced result from %s", key, prev.AgentKey))
		a.uncount(prev.Status)
	}
	a.result.Outcomes[key] = outcome
	a.count(outcome.Status)
}

// AddInsights appends insights surfaced by an agent to the combined record.
func (a *Aggregator) AddInsights(insights []analysis.Insight) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.Insights = append(a.result.Insights, insights...)
}

// SetWaves records the wave layout the coordinator executed.
func (a *Aggregator) SetWaves(waves [][]analysis.Role) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.Waves = waves
}

// Warn appends a run-level warning.
func (a *Aggregator) Warn(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.Warnings = append(a.result.Warnings, fmt.Sprintf(format, args...))
}

// Finalize stamps the completion time and returns the finished result.
func (a *Aggregator) Finalize() CombinedResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.CompletedAt = time.Now()
	a.result.Progress.Active = 0
	return a.copyLocked()
}

// Snapshot returns a point-in-time copy safe for concurrent readers.
func (a *Aggregator) Snapshot() CombinedResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.copyLocked()
}

// SetActive updates the number of in-flight agents.
func (a *Aggregator) SetActive(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result.Progress.Active = n
}

func (a *Aggregator) copyLocked() CombinedResult {
	out := a.result
	out.Outcomes = make(map[string]ExecutionOutcome, len(a.result.Outcomes))
	for k, v := range a.result.Outcomes {
		out.Outcomes[k] = v
	}
	out.Insights = append([]analysis.Insight(nil), a.result.Insights...)
	out.Warnings = append([]string(nil), a.result.Warnings...)
	out.Waves = append([][]analysis.Role(nil), a.result.Waves...)
	return out
}

func (a *Aggregator) count(s Status) {
	switch s {
	case StatusCompleted:
		a.result.Progress.Completed++
	case StatusSkipped:
		a.result.Progress.Skipped++
	default:
		a.result.Progress.Failed++
	}
}

func (a *Aggregator) uncount(s Status) {
	switch s {
	case StatusCompleted:
		a.result.Progress.Completed--
	case StatusSkipped:
		a.result.Progress.Skipped--
	default:
		a.result.Progress.Failed--
	}
}
