package invoke

import (
	"context"

	"conclave/internal/analysis"
)

// Request is everything an agent receives for one attempt: its spec, the
// caller's task, the insights earlier waves left for it, and an opaque
// principal the orchestrator forwards untouched for downstream audit.
type Request struct {
	RunID     string             `json:"run_id"`
	Spec      analysis.AgentSpec `json:"spec"`
	Task      string             `json:"task"`
	Findings  []analysis.Insight `json:"findings,omitempty"`
	Principal string             `json:"principal,omitempty"`

	// Provider carries the resolved invocation settings for the provider
	// serving this spec, when the gateway has any configured.
	Provider *ProviderSettings `json:"provider,omitempty"`
}

// ProviderSettings are the per-provider invocation settings forwarded to the
// agent service: where to call and which credential to present.
type ProviderSettings struct {
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
}

// Result is what an agent returns: its analysis text plus any insights it
// declares for later waves.
type Result struct {
	Output   string             `json:"output"`
	Insights []analysis.Insight `json:"insights,omitempty"`
}

// Invoker performs one agent invocation. The orchestrator treats it as an
// opaque, possibly slow, possibly failing remote call; cancellation of ctx
// must abandon the wait promptly, though the remote side may keep working.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}
