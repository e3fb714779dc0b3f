package plan

import (
	"sync"

	"conclave/internal/analysis"
)

// TargetAll addresses an insight to every later role.
const TargetAll = "*"

// Findings is the shared store agents leave insights in for later waves.
// Publishes go to a staging area first; Commit makes the staged insights
// visible. The orchestrator commits once per completed wave, so an agent
// never observes insights from its own wave and the result is deterministic
// regardless of intra-wave completion order.
type Findings struct {
	mu      sync.RWMutex
	visible []analysis.Insight
	staged  []analysis.Insight
}

func NewFindings() *Findings {
	return &Findings{}
}

// Publish stages an insight. Targets are normalized so "Security" and
// "security" address the same role; an unknown target is kept verbatim and
// simply never matches a reader.
func (f *Findings) Publish(in analysis.Insight) {
	if in.Target != TargetAll {
		if role, ok := analysis.NormalizeRole(in.Target); ok {
			in.Target = string(role)
		}
	}
	f.mu.Lock()
	f.staged = append(f.staged, in)
	f.mu.Unlock()
}

// Commit moves every staged insight into the visible set.
func (f *Findings) Commit() {
	f.mu.Lock()
	f.visible = append(f.visible, f.staged...)
	f.staged = nil
	f.mu.Unlock()
}

// ReadFor returns the committed insights addressed to the role or to "*".
func (f *Findings) ReadFor(role analysis.Role) []analysis.Insight {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []analysis.Insight
	for _, in := range f.visible {
		if in.Target == TargetAll || in.Target == string(role) {
			out = append(out, in)
		}
	}
	return out
}

// All returns every insight published so far, committed or staged.
func (f *Findings) All() []analysis.Insight {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]analysis.Insight, 0, len(f.visible)+len(f.staged))
	out = append(out, f.visible...)
	out = append(out, f.staged...)
	return out
}
