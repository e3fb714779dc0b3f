package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"conclave/internal/analysis"
	"conclave/internal/config"
	"conclave/internal/natsbus"
	"conclave/internal/registry"
	"conclave/internal/run"
	"conclave/internal/schedule"
	"conclave/internal/store"
)

// Scheduler polls the store for due scheduled analyses and executes each
// through the coordinator. One-shot schedules are marked done after firing.
type Scheduler struct {
	store        *store.Store
	registry     *registry.Registry
	coordinator  *run.Coordinator
	bus          *natsbus.Client
	pollInterval time.Duration
	reloadCh     chan struct{}
}

func New(st *store.Store, reg *registry.Registry, coord *run.Coordinator, bus *natsbus.Client, cfg config.SchedulerConfig) *Scheduler {
	return &Scheduler{
		store:        st,
		registry:     reg,
		coordinator:  coord,
		bus:          bus,
		pollInterval: cfg.PollInterval,
		reloadCh:     make(chan struct{}, 1),
	}
}

// SetPollInterval changes the poll cadence and signals the run loop to reset
// its ticker.
func (s *Scheduler) SetPollInterval(d time.Duration) {
	s.pollInterval = d
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-s.reloadCh:
			ticker.Reset(s.pollInterval)
			slog.Info("scheduler poll interval changed", "poll_interval", s.pollInterval)
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	due, err := s.store.GetDueAnalyses(time.Now())
	if err != nil {
		slog.Error("could not fetch due analyses", "error", err)
		return
	}
	for _, a := range due {
		s.fire(ctx, a)
	}
}

func (s *Scheduler) fire(ctx context.Context, a store.ScheduledAnalysis) {
	slog.Info("firing scheduled analysis", "id", a.ID, "name", a.Name, "preset", a.Preset)

	lastStatus := "success"
	var lastError string

	cfg, ok := s.registry.Get(a.Preset)
	if !ok {
		lastStatus = "error"
		lastError = "unknown preset: " + a.Preset
		slog.Error("scheduled analysis references unknown preset", "id", a.ID, "preset", a.Preset)
	} else {
		runID := uuid.NewString()
		result, err := s.coordinator.Execute(ctx, run.Request{
			RunID:     runID,
			Config:    cfg,
			Mode:      analysis.Mode(a.Mode),
			Task:      a.Task,
			Principal: "scheduler",
		})
		switch {
		case err != nil:
			lastStatus = "error"
			lastError = err.Error()
			slog.Error("scheduled analysis failed to start", "id", a.ID, "error", err)
		case result.Progress.Completed == 0:
			lastStatus = "error"
			lastError = "no agent completed"
		}
	}

	nextRun := schedule.NextRun(a.Schedule, time.Now())
	if err := s.store.MarkScheduleRun(a.ID, lastStatus, lastError, nextRun); err != nil {
		slog.Error("could not record schedule run", "id", a.ID, "error", err)
	}
	if nextRun == nil {
		slog.Info("one-shot schedule done", "id", a.ID, "name", a.Name)
	}

	s.publishFired(a, lastStatus)
}

func (s *Scheduler) publishFired(a store.ScheduledAnalysis, status string) {
	if s.bus == nil {
		return
	}
	err := s.bus.PublishJSON(natsbus.TopicScheduleEvents(a.ID), map[string]any{
		"type":      "schedule_fired",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data": map[string]any{
			"id":     a.ID,
			"name":   a.Name,
			"preset": a.Preset,
			"status": status,
		},
	})
	if err != nil {
		slog.Warn("could not publish schedule event", "id", a.ID, "error", err)
	}
}
