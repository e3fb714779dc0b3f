package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"conclave/internal/analysis"
	"conclave/internal/report"
	"conclave/internal/run"
	"conclave/internal/schedule"
	"conclave/internal/store"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Presets
	mux.HandleFunc("GET /api/presets", s.listPresets)
	mux.HandleFunc("GET /api/presets/{name}", s.getPreset)

	// Analysis runs
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("POST /api/runs", s.createRun)
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)
	mux.HandleFunc("GET /api/runs/{id}/report", s.getRunReport)
	mux.HandleFunc("DELETE /api/runs/{id}", s.deleteRun)

	// Scheduled analyses
	mux.HandleFunc("GET /api/schedules", s.listSchedules)
	mux.HandleFunc("POST /api/schedules", s.createSchedule)
	mux.HandleFunc("PUT /api/schedules/{id}", s.updateSchedule)
	mux.HandleFunc("DELETE /api/schedules/done", s.deleteDoneSchedules)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.deleteSchedule)

	// Secrets
	s.registerSecretsAPI(mux)

	// Status
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	out := []map[string]any{}
	for _, name := range s.registry.Names() {
		cfg, _ := s.registry.Get(name)
		out = append(out, presetSummary(name, cfg))
	}
	jsonResponse(w, out)
}

func (s *Server) getPreset(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.registry.Get(r.PathValue("name"))
	if !ok {
		jsonError(w, "preset not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, cfg)
}

func presetSummary(name string, cfg analysis.RunConfig) map[string]any {
	roles := make([]string, 0, len(cfg.Agents))
	for _, role := range cfg.Roles() {
		roles = append(roles, string(role))
	}
	return map[string]any{
		"name":     name,
		"strategy": cfg.Strategy,
		"roles":    roles,
		"agents":   len(cfg.Agents),
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.AnalysisRun{}
	}
	jsonResponse(w, runs)
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Preset string `json:"preset"`
		Mode   string `json:"mode"`
		Task   string `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, ok := s.registry.Get(body.Preset)
	if !ok {
		jsonError(w, "unknown preset: "+body.Preset, http.StatusBadRequest)
		return
	}
	mode := analysis.Mode(body.Mode)
	switch mode {
	case "":
		mode = analysis.ModeStandard
	case analysis.ModeQuick, analysis.ModeStandard, analysis.ModeDeep:
	default:
		jsonError(w, "unknown mode: "+body.Mode, http.StatusBadRequest)
		return
	}

	runID := uuid.NewString()
	go func() {
		_, err := s.coordinator.Execute(context.Background(), run.Request{
			RunID:     runID,
			Config:    cfg,
			Mode:      mode,
			Task:      body.Task,
			Principal: "web",
		})
		if err != nil {
			slog.Error("run failed to start", "run", runID, "error", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": runID, "status": "running"})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRun(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, rec)
}

func (s *Server) getRunReport(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetRun(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rec == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}
	if len(rec.Result) == 0 {
		jsonError(w, "run has no result yet", http.StatusConflict)
		return
	}

	var result run.CombinedResult
	if err := json.Unmarshal(rec.Result, &result); err != nil {
		jsonError(w, "stored result is corrupt", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	fmt.Fprint(w, report.Markdown(result))
}

func (s *Server) deleteRun(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRun(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.store.ListScheduledAnalyses()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(schedules))
	for _, a := range schedules {
		out = append(out, scheduleToAPI(a))
	}
	jsonResponse(w, out)
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Preset   string `json:"preset"`
		Mode     string `json:"mode"`
		Task     string `json:"task"`
		Schedule string `json:"schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Preset == "" || body.Schedule == "" {
		jsonError(w, "name, preset and schedule are required", http.StatusBadRequest)
		return
	}
	if _, ok := s.registry.Get(body.Preset); !ok {
		jsonError(w, "unknown preset: "+body.Preset, http.StatusBadRequest)
		return
	}

	normalized, err := schedule.Normalize(body.Schedule)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	mode := body.Mode
	if mode == "" {
		mode = string(analysis.ModeStandard)
	}

	a := &store.ScheduledAnalysis{
		ID:        uuid.NewString(),
		Name:      body.Name,
		Preset:    body.Preset,
		Mode:      mode,
		Task:      body.Task,
		Schedule:  normalized,
		Status:    "active",
		NextRunAt: schedule.NextRun(normalized, time.Now()),
	}
	if err := s.store.SaveScheduledAnalysis(a); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, scheduleToAPI(*a))
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.GetScheduledAnalysis(r.PathValue("id"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing == nil {
		jsonError(w, "schedule not found", http.StatusNotFound)
		return
	}

	var body struct {
		Name     *string `json:"name"`
		Task     *string `json:"task"`
		Schedule *string `json:"schedule"`
		Status   *string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != nil {
		existing.Name = *body.Name
	}
	if body.Task != nil {
		existing.Task = *body.Task
	}
	if body.Schedule != nil {
		normalized, err := schedule.Normalize(*body.Schedule)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		existing.Schedule = normalized
		existing.NextRunAt = schedule.NextRun(normalized, time.Now())
	}
	if body.Status != nil {
		switch *body.Status {
		case "active", "paused":
			existing.Status = *body.Status
		default:
			jsonError(w, "status must be active or paused", http.StatusBadRequest)
			return
		}
	}

	if err := s.store.SaveScheduledAnalysis(existing); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, scheduleToAPI(*existing))
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteScheduledAnalysis(r.PathValue("id")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) deleteDoneSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.store.ListScheduledAnalyses()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	deleted := 0
	for _, a := range schedules {
		if a.Status != "done" {
			continue
		}
		if err := s.store.DeleteScheduledAnalysis(a.ID); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		deleted++
	}
	jsonResponse(w, map[string]int{"deleted": deleted})
}

func scheduleToAPI(a store.ScheduledAnalysis) map[string]any {
	out := map[string]any{
		"id":       a.ID,
		"name":     a.Name,
		"preset":   a.Preset,
		"mode":     a.Mode,
		"task":     a.Task,
		"schedule": a.Schedule,
		"describe": schedule.Describe(a.Schedule),
		"status":   a.Status,
	}
	if a.NextRunAt != nil {
		out["next_run_at"] = a.NextRunAt.UTC().Format(time.RFC3339)
	}
	if a.LastRunAt != nil {
		out["last_run_at"] = a.LastRunAt.UTC().Format(time.RFC3339)
		out["last_status"] = a.LastStatus
		if a.LastError != "" {
			out["last_error"] = a.LastError
		}
	}
	return out
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"version": s.version,
		"uptime":  formatUptime(time.Since(s.startedAt)),
		"presets": len(s.registry.Names()),
	}
	if s.bus != nil {
		status["nats_port"] = s.bus.Port()
	}
	if runs, err := s.store.ListRuns(); err == nil {
		status["runs"] = len(runs)
	}
	jsonResponse(w, status)
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
