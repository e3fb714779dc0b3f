package monitor

import (
	"context"
	"log/slog"
	"time"
)

// Event is one lifecycle notification: run start/end, wave boundaries and
// per-agent transitions.
type Event struct {
	Type      string         `json:"type"`
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Event types emitted by the orchestrator.
const (
	EventRunStarted     = "run_started"
	EventRunCompleted   = "run_completed"
	EventRunFailed      = "run_failed"
	EventWaveStarted    = "wave_started"
	EventWaveCompleted  = "wave_completed"
	EventAgentStarted   = "agent_started"
	EventAgentCompleted = "agent_completed"
	EventAgentFallback  = "agent_fallback"
	EventAgentSkipped   = "agent_skipped"
)

// Sink receives lifecycle events. Implementations may fail; the monitor
// swallows and logs their errors, never the other way around.
type Sink interface {
	OnEvent(Event) error
}

// Monitor decouples the orchestrator from its observers with a bounded
// queue consumed asynchronously. A slow or broken sink costs at most dropped
// events, never a blocked run. A nil *Monitor is valid and discards
// everything.
type Monitor struct {
	ch    chan Event
	sinks []Sink
}

func New(buffer int, sinks ...Sink) *Monitor {
	if buffer <= 0 {
		buffer = 256
	}
	return &Monitor{
		ch:    make(chan Event, buffer),
		sinks: sinks,
	}
}

// Start consumes the queue until the context is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	if m == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.ch:
			for _, s := range m.sinks {
				if err := s.OnEvent(ev); err != nil {
					slog.Warn("monitor sink failed", "type", ev.Type, "run", ev.RunID, "error", err)
				}
			}
		}
	}
}

// Emit enqueues an event without blocking. Events are dropped with a warning
// when the queue is full.
func (m *Monitor) Emit(eventType, runID string, data map[string]any) {
	if m == nil {
		return
	}
	ev := Event{
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	select {
	case m.ch <- ev:
	default:
		slog.Warn("monitor queue full, dropping event", "type", eventType, "run", runID)
	}
}

// SlogSink logs every event through slog.
type SlogSink struct{}

func (SlogSink) OnEvent(ev Event) error {
	slog.Info("analysis event", "type", ev.Type, "run", ev.RunID)
	return nil
}

// FuncSink adapts a function to the Sink interface.
type FuncSink func(Event) error

func (f FuncSink) OnEvent(ev Event) error { return f(ev) }
