package report

import (
	"strings"
	"testing"
	"time"

	"conclave/internal/analysis"
	"conclave/internal/run"
)

func sampleResult() run.CombinedResult {
	started := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	primary := analysis.AgentSpec{Role: analysis.RoleSecurity, Provider: "anthropic", Position: analysis.PositionPrimary}
	return run.CombinedResult{
		RunID:    "run-42",
		Preset:   "full-review",
		Strategy: analysis.StrategySpecialized,
		Mode:     analysis.ModeStandard,
		Waves: [][]analysis.Role{
			{analysis.RoleDependencies},
			{analysis.RoleSecurity},
		},
		Outcomes: map[string]run.ExecutionOutcome{
			"security": {
				AgentKey:       "openrouter:security",
				Role:           analysis.RoleSecurity,
				Status:         run.StatusCompleted,
				Output:         "no critical findings",
				Duration:       1200 * time.Millisecond,
				UsedFallbackOf: &primary,
			},
			"dependencies": {
				AgentKey: "anthropic:dependencies",
				Role:     analysis.RoleDependencies,
				Status:   run.StatusFailed,
				Error:    "rate limited",
			},
		},
		Insights: []analysis.Insight{
			{Source: analysis.RoleDependencies, Target: "security", Kind: "vulnerable_dep", Payload: "left-pad"},
		},
		Warnings:    []string{"something odd"},
		Progress:    run.Progress{TotalAgents: 2, Completed: 1, Failed: 1},
		StartedAt:   started,
		CompletedAt: started.Add(3 * time.Second),
	}
}

func TestMarkdownSections(t *testing.T) {
	md := Markdown(sampleResult())

	for _, want := range []string{
		"# Analysis Report: run-42",
		"- Preset: full-review",
		"## Execution Waves",
		"1. dependencies",
		"2. security",
		"## Results",
		"### security",
		"- Substituted for: `anthropic:security`",
		"no critical findings",
		"### dependencies",
		"- Error: rate limited",
		"## Cross-Agent Insights",
		"vulnerable_dep",
		"## Warnings",
		"- something odd",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestMarkdownCanonicalRoleOrder(t *testing.T) {
	md := Markdown(sampleResult())
	// security comes before dependencies in canonical role order
	if strings.Index(md, "### security") > strings.Index(md, "### dependencies") {
		t.Error("roles not in canonical order")
	}
}

func TestMarkdownEmptySectionsOmitted(t *testing.T) {
	res := run.CombinedResult{RunID: "r", Outcomes: map[string]run.ExecutionOutcome{}}
	md := Markdown(res)
	for _, absent := range []string{"## Cross-Agent Insights", "## Warnings", "## Execution Waves"} {
		if strings.Contains(md, absent) {
			t.Errorf("empty report contains %q", absent)
		}
	}
}
