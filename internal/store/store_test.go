package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"conclave/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(config.StoreConfig{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	r := &AnalysisRun{
		ID:       "run-1",
		Preset:   "security-standard",
		Mode:     "standard",
		Strategy: "specialized",
		Task:     "review github.com/acme/api",
		Status:   "running",
	}
	if err := s.SaveRun(r); err != nil {
		t.Fatalf("save run: %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.Preset != "security-standard" || got.Status != "running" {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.CompletedAt != nil {
		t.Error("running run must not have completed_at")
	}

	result := json.RawMessage(`{"progress":{"completed":2,"failed":0}}`)
	if err := s.UpdateRun("run-1", "completed", result); err != nil {
		t.Fatalf("update run: %v", err)
	}

	got, _ = s.GetRun("run-1")
	if got.Status != "completed" {
		t.Errorf("expected status completed, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("completed run must have completed_at")
	}
	if string(got.Result) != string(result) {
		t.Errorf("result = %s", got.Result)
	}

	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}

	if err := s.DeleteRun("run-1"); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	if got, _ := s.GetRun("run-1"); got != nil {
		t.Fatal("expected run deleted")
	}
}

func TestGetRunMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetRun("nope")
	if err != nil {
		t.Fatalf("get missing run: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for missing run")
	}
}

func TestScheduledAnalyses(t *testing.T) {
	s := newTestStore(t)

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := &ScheduledAnalysis{
		ID: "s1", Name: "nightly security", Preset: "security-standard",
		Mode: "deep", Schedule: `{"kind":"cron","cron_expr":"0 2 * * *"}`,
		Status: "active", NextRunAt: &past,
	}
	notDue := &ScheduledAnalysis{
		ID: "s2", Name: "weekly full", Preset: "full-review",
		Mode: "standard", Schedule: `{"kind":"cron","cron_expr":"0 4 * * 0"}`,
		Status: "active", NextRunAt: &future,
	}
	for _, a := range []*ScheduledAnalysis{due, notDue} {
		if err := s.SaveScheduledAnalysis(a); err != nil {
			t.Fatalf("save schedule: %v", err)
		}
	}

	dueList, err := s.GetDueAnalyses(time.Now())
	if err != nil {
		t.Fatalf("get due: %v", err)
	}
	if len(dueList) != 1 || dueList[0].ID != "s1" {
		t.Fatalf("expected only s1 due, got %v", dueList)
	}

	next := time.Now().Add(24 * time.Hour)
	if err := s.MarkScheduleRun("s1", "success", "", &next); err != nil {
		t.Fatalf("mark run: %v", err)
	}
	got, _ := s.GetScheduledAnalysis("s1")
	if got.LastStatus != "success" || got.LastRunAt == nil {
		t.Errorf("unexpected schedule after run: %+v", got)
	}

	// A nil next run deactivates the schedule.
	if err := s.MarkScheduleRun("s2", "success", "", nil); err != nil {
		t.Fatalf("mark one-shot: %v", err)
	}
	got, _ = s.GetScheduledAnalysis("s2")
	if got.Status != "done" {
		t.Errorf("expected status done, got %s", got.Status)
	}

	all, err := s.ListScheduledAnalyses()
	if err != nil {
		t.Fatalf("list schedules: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(all))
	}

	if err := s.DeleteScheduledAnalysis("s1"); err != nil {
		t.Fatalf("delete schedule: %v", err)
	}
}

func TestSecretCRUD(t *testing.T) {
	s := newTestStore(t)

	sec := &Secret{ID: "id-1", Name: "openrouter", Description: "OpenRouter API key", Sealed: []byte{1, 2, 3}}
	if err := s.SaveSecret(sec); err != nil {
		t.Fatalf("save secret: %v", err)
	}

	got, err := s.GetSecret("openrouter")
	if err != nil {
		t.Fatalf("get secret: %v", err)
	}
	if got == nil || len(got.Sealed) != 3 {
		t.Fatalf("unexpected secret: %+v", got)
	}

	// Upsert by name
	sec.Sealed = []byte{4, 5, 6, 7}
	if err := s.SaveSecret(sec); err != nil {
		t.Fatalf("update secret: %v", err)
	}
	got, _ = s.GetSecret("openrouter")
	if len(got.Sealed) != 4 {
		t.Errorf("expected updated blob, got %d bytes", len(got.Sealed))
	}

	list, err := s.ListSecrets()
	if err != nil {
		t.Fatalf("list secrets: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 secret, got %d", len(list))
	}

	if err := s.DeleteSecret("openrouter"); err != nil {
		t.Fatalf("delete secret: %v", err)
	}
	if got, _ := s.GetSecret("openrouter"); got != nil {
		t.Fatal("expected secret deleted")
	}
}
