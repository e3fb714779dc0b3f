package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"conclave/internal/natsbus"
)

// NATSInvoker reaches analysis agents over the bus: one request/reply on the
// agent's invoke topic per attempt. Whoever serves the topic (a worker
// process, a provider bridge) is invisible to the orchestrator; the invoker
// stamps each request with the resolved settings for the spec's provider so
// the serving side knows where to call and with which credential.
type NATSInvoker struct {
	client *natsbus.Client

	mu        sync.RWMutex
	providers map[string]ProviderSettings
}

func NewNATSInvoker(client *natsbus.Client, providers map[string]ProviderSettings) *NATSInvoker {
	return &NATSInvoker{client: client, providers: providers}
}

// SetProviders swaps the provider settings; used on config reload.
func (n *NATSInvoker) SetProviders(providers map[string]ProviderSettings) {
	n.mu.Lock()
	n.providers = providers
	n.mu.Unlock()
}

// reply is the wire shape agents respond with.
type reply struct {
	Result
	Error string `json:"error,omitempty"`
}

func (n *NATSInvoker) Invoke(ctx context.Context, req Request) (Result, error) {
	n.mu.RLock()
	if ps, ok := n.providers[req.Spec.Provider]; ok {
		req.Provider = &ps
	}
	n.mu.RUnlock()

	data, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal invoke request: %w", err)
	}

	topic := natsbus.TopicAgentInvoke(req.Spec.Provider, string(req.Spec.Role))
	msg, err := n.client.RequestContext(ctx, topic, data)
	if err != nil {
		return Result{}, fmt.Errorf("invoke %s: %w", req.Spec.Key(), err)
	}

	var r reply
	if err := json.Unmarshal(msg.Data, &r); err != nil {
		return Result{}, fmt.Errorf("decode reply from %s: %w", req.Spec.Key(), err)
	}
	if r.Error != "" {
		return Result{}, errors.New(r.Error)
	}
	return r.Result, nil
}
