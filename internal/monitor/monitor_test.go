package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEmitAndConsume(t *testing.T) {
	received := make(chan Event, 8)
	m := New(8, FuncSink(func(ev Event) error {
		received <- ev
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	m.Emit(EventRunStarted, "r1", map[string]any{"agents": 3})

	select {
	case ev := <-received:
		if ev.Type != EventRunStarted || ev.RunID != "r1" {
			t.Errorf("unexpected event: %+v", ev)
		}
		if ev.Timestamp.IsZero() {
			t.Error("expected timestamp to be set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	// No consumer running and a tiny buffer: emits beyond the buffer must
	// drop, not block.
	m := New(1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.Emit(EventAgentStarted, "r1", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full queue")
	}
}

func TestSinkErrorsSwallowed(t *testing.T) {
	var calls atomic.Int32
	bad := FuncSink(func(Event) error { return errors.New("sink broken") })
	good := FuncSink(func(Event) error { calls.Add(1); return nil })

	m := New(8, bad, good)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	m.Emit(EventRunCompleted, "r1", nil)

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("later sink never ran after earlier sink failed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNilMonitorIsNoop(t *testing.T) {
	var m *Monitor
	// Must not panic.
	m.Emit(EventRunStarted, "r1", nil)
	m.Start(context.Background())
}
