package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"conclave/internal/analysis"
	"conclave/internal/run"
)

// Markdown renders a combined result as a human-readable report. Roles are
// printed in canonical order; unknown keys come last, alphabetically.
func Markdown(res run.CombinedResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Analysis Report: %s\n\n", res.RunID)
	fmt.Fprintf(&b, "- Preset: %s\n", res.Preset)
	fmt.Fprintf(&b, "- Strategy: %s\n", res.Strategy)
	fmt.Fprintf(&b, "- Mode: %s\n", res.Mode)
	fmt.Fprintf(&b, "- Started: %s\n", res.StartedAt.UTC().Format(time.RFC3339))
	if !res.CompletedAt.IsZero() {
		fmt.Fprintf(&b, "- Duration: %s\n", res.CompletedAt.Sub(res.StartedAt).Round(time.Millisecond))
	}
	p := res.Progress
	fmt.Fprintf(&b, "- Agents: %d completed, %d failed, %d skipped of %d\n\n",
		p.Completed, p.Failed, p.Skipped, p.TotalAgents)

	if len(res.Waves) > 0 {
		b.WriteString("## Execution Waves\n\n")
		for i, wave := range res.Waves {
			names := make([]string, len(wave))
			for j, r := range wave {
				names[j] = string(r)
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Results\n\n")
	for _, key := range orderedKeys(res.Outcomes) {
		writeOutcome(&b, key, res.Outcomes[key])
	}

	if len(res.Insights) > 0 {
		b.WriteString("## Cross-Agent Insights\n\n")
		for _, in := range res.Insights {
			fmt.Fprintf(&b, "- **%s** → %s [%s]: %s\n", in.Source, in.Target, in.Kind, in.Payload)
		}
		b.WriteString("\n")
	}

	if len(res.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range res.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeOutcome(b *strings.Builder, key string, o run.ExecutionOutcome) {
	fmt.Fprintf(b, "### %s\n\n", key)
	fmt.Fprintf(b, "- Agent: `%s`\n", o.AgentKey)
	fmt.Fprintf(b, "- Status: %s\n", o.Status)
	if o.Duration > 0 {
		fmt.Fprintf(b, "- Duration: %s\n", o.Duration.Round(time.Millisecond))
	}
	if o.UsedFallbackOf != nil {
		fmt.Fprintf(b, "- Substituted for: `%s`\n", o.UsedFallbackOf.Key())
	}
	if o.SkipReason != "" {
		fmt.Fprintf(b, "- Skip reason: %s\n", o.SkipReason)
	}
	if o.Error != "" {
		fmt.Fprintf(b, "- Error: %s\n", o.Error)
	}
	if o.Output != "" {
		fmt.Fprintf(b, "\n%s\n", strings.TrimSpace(o.Output))
	}
	b.WriteString("\n")
}

func orderedKeys(outcomes map[string]run.ExecutionOutcome) []string {
	rank := make(map[string]int, len(analysis.Roles))
	for i, r := range analysis.Roles {
		rank[string(r)] = i
	}

	keys := make([]string, 0, len(outcomes))
	for k := range outcomes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, iOK := rank[keys[i]]
		rj, jOK := rank[keys[j]]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}
