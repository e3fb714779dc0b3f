package run

import (
	"time"

	"conclave/internal/analysis"
)

// Status is the terminal state of one role's execution.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
	StatusSkipped   Status = "skipped"
)

// Skip reasons recorded on skipped outcomes.
const ReasonDependencyUnsatisfied = "dependency_unsatisfied"

// ExecutionOutcome is the immutable record of how one role ended. A fallback
// substitution produces a fresh outcome attributed to the substitute, with
// UsedFallbackOf pointing at the primary it stood in for.
type ExecutionOutcome struct {
	AgentKey       string              `json:"agent_key"`
	Role           analysis.Role       `json:"role"`
	Provider       string              `json:"provider"`
	Model          string              `json:"model,omitempty"`
	Status         Status              `json:"status"`
	Output         string              `json:"output,omitempty"`
	Error          string              `json:"error,omitempty"`
	SkipReason     string              `json:"skip_reason,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	Duration       time.Duration       `json:"duration_ms"`
	UsedFallbackOf *analysis.AgentSpec `json:"used_fallback_of,omitempty"`
}

// Progress counts roles by state; recomputed on every merge.
type Progress struct {
	TotalAgents int `json:"total_agents"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	Active      int `json:"active"`
}

// CombinedResult is the merged view of one run: one outcome per configured
// role, the insights that flowed between waves, and progress counters.
type CombinedResult struct {
	RunID       string                      `json:"run_id"`
	Preset      string                      `json:"preset"`
	Strategy    analysis.Strategy           `json:"strategy"`
	Mode        analysis.Mode               `json:"mode"`
	Waves       [][]analysis.Role           `json:"waves"`
	Outcomes    map[string]ExecutionOutcome `json:"outcomes"`
	Insights    []analysis.Insight          `json:"insights,omitempty"`
	Warnings    []string                    `json:"warnings,omitempty"`
	Progress    Progress                    `json:"progress"`
	StartedAt   time.Time                   `json:"started_at"`
	CompletedAt time.Time                   `json:"completed_at"`
}
