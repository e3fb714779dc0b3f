package invoke

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"conclave/internal/analysis"
	"conclave/internal/config"
	"conclave/internal/natsbus"
)

func newTestBus(t *testing.T) *natsbus.Bus {
	t.Helper()
	bus, err := natsbus.New(config.NATSConfig{Port: 0, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(bus.Close)
	return bus
}

func serveAgent(t *testing.T, bus *natsbus.Bus, provider, role string, respond func(Request) reply) {
	t.Helper()
	client, err := natsbus.NewClient(bus)
	if err != nil {
		t.Fatalf("agent client: %v", err)
	}
	t.Cleanup(client.Close)

	_, err = client.Subscribe(natsbus.TopicAgentInvoke(provider, role), func(msg *nats.Msg) {
		var req Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		data, _ := json.Marshal(respond(req))
		_ = msg.Respond(data)
	})
	if err != nil {
		t.Fatalf("agent subscribe: %v", err)
	}
	client.Flush()
}

func TestInvokeRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	serveAgent(t, bus, "anthropic", "security", func(req Request) reply {
		if req.Task != "review the auth package" {
			t.Errorf("unexpected task: %q", req.Task)
		}
		return reply{Result: Result{
			Output: "no injection paths found",
			Insights: []analysis.Insight{
				{Source: analysis.RoleSecurity, Target: "*", Kind: "note", Payload: "auth uses bcrypt"},
			},
		}}
	})

	client, err := natsbus.NewClient(bus)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	inv := NewNATSInvoker(client, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := inv.Invoke(ctx, Request{
		RunID: "r1",
		Spec:  analysis.AgentSpec{Role: analysis.RoleSecurity, Provider: "anthropic", Position: analysis.PositionPrimary},
		Task:  "review the auth package",
	})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res.Output != "no injection paths found" {
		t.Errorf("output = %q", res.Output)
	}
	if len(res.Insights) != 1 {
		t.Errorf("expected 1 insight, got %d", len(res.Insights))
	}
}

func TestInvokeAgentError(t *testing.T) {
	bus := newTestBus(t)

	serveAgent(t, bus, "openrouter", "quality", func(Request) reply {
		return reply{Error: "rate limited"}
	})

	client, err := natsbus.NewClient(bus)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	inv := NewNATSInvoker(client, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = inv.Invoke(ctx, Request{
		Spec: analysis.AgentSpec{Role: analysis.RoleQuality, Provider: "openrouter"},
	})
	if err == nil || err.Error() != "rate limited" {
		t.Fatalf("expected agent error, got %v", err)
	}
}

func TestInvokeNoResponder(t *testing.T) {
	bus := newTestBus(t)

	client, err := natsbus.NewClient(bus)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	inv := NewNATSInvoker(client, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err = inv.Invoke(ctx, Request{
		Spec: analysis.AgentSpec{Role: analysis.RoleSecurity, Provider: "nobody"},
	})
	if err == nil {
		t.Fatal("expected error when no agent serves the topic")
	}
}
