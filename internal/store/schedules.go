package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ScheduledAnalysis is a recurring analysis: a preset plus mode executed on
// a schedule.
type ScheduledAnalysis struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Preset     string     `json:"preset"`
	Mode       string     `json:"mode"`
	Task       string     `json:"task,omitempty"`
	Schedule   string     `json:"schedule"`
	Status     string     `json:"status"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func scanSchedule(scanner interface {
	Scan(dest ...any) error
}) (*ScheduledAnalysis, error) {
	a := &ScheduledAnalysis{}
	var task, lastStatus, lastError *string
	err := scanner.Scan(&a.ID, &a.Name, &a.Preset, &a.Mode, &task, &a.Schedule, &a.Status,
		&a.NextRunAt, &a.LastRunAt, &lastStatus, &lastError, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if task != nil {
		a.Task = *task
	}
	if lastStatus != nil {
		a.LastStatus = *lastStatus
	}
	if lastError != nil {
		a.LastError = *lastError
	}
	return a, nil
}

const scheduleColumns = `id, name, preset, mode, task, schedule, status, next_run_at, last_run_at, last_status, last_error, created_at`

func (s *Store) SaveScheduledAnalysis(a *ScheduledAnalysis) error {
	_, err := s.db.Exec(`
		INSERT INTO scheduled_analyses (id, name, preset, mode, task, schedule, status, next_run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			preset = excluded.preset,
			mode = excluded.mode,
			task = excluded.task,
			schedule = excluded.schedule,
			status = excluded.status,
			next_run_at = excluded.next_run_at`,
		a.ID, a.Name, a.Preset, a.Mode, a.Task, a.Schedule, a.Status, a.NextRunAt)
	if err != nil {
		return fmt.Errorf("save scheduled analysis: %w", err)
	}
	return nil
}

func (s *Store) GetScheduledAnalysis(id string) (*ScheduledAnalysis, error) {
	row := s.db.QueryRow(`SELECT `+scheduleColumns+` FROM scheduled_analyses WHERE id = ?`, id)
	a, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scheduled analysis: %w", err)
	}
	return a, nil
}

func (s *Store) ListScheduledAnalyses() ([]ScheduledAnalysis, error) {
	rows, err := s.db.Query(`SELECT ` + scheduleColumns + ` FROM scheduled_analyses ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list scheduled analyses: %w", err)
	}
	defer rows.Close()

	var out []ScheduledAnalysis
	for rows.Next() {
		a, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled analysis: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// GetDueAnalyses returns active schedules whose next run time has passed.
func (s *Store) GetDueAnalyses(now time.Time) ([]ScheduledAnalysis, error) {
	rows, err := s.db.Query(`
		SELECT `+scheduleColumns+`
		FROM scheduled_analyses
		WHERE status = 'active' AND next_run_at IS NOT NULL AND next_run_at <= ?
		ORDER BY next_run_at`, now)
	if err != nil {
		return nil, fmt.Errorf("get due analyses: %w", err)
	}
	defer rows.Close()

	var out []ScheduledAnalysis
	for rows.Next() {
		a, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled analysis: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// MarkScheduleRun records the outcome of a schedule's latest execution and
// its next due time. A nil nextRun deactivates the schedule (one-shot done).
func (s *Store) MarkScheduleRun(id string, lastStatus, lastError string, nextRun *time.Time) error {
	status := "active"
	if nextRun == nil {
		status = "done"
	}
	_, err := s.db.Exec(`
		UPDATE scheduled_analyses
		SET last_run_at = CURRENT_TIMESTAMP, last_status = ?, last_error = ?, next_run_at = ?, status = ?
		WHERE id = ?`, lastStatus, lastError, nextRun, status, id)
	return err
}

func (s *Store) DeleteScheduledAnalysis(id string) error {
	_, err := s.db.Exec(`DELETE FROM scheduled_analyses WHERE id = ?`, id)
	return err
}
