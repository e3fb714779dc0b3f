package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// AnalysisRun is the persisted record of one orchestrated run. Result holds
// the combined result JSON once the run terminates.
type AnalysisRun struct {
	ID          string          `json:"id"`
	Preset      string          `json:"preset"`
	Mode        string          `json:"mode"`
	Strategy    string          `json:"strategy"`
	Task        string          `json:"task,omitempty"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*AnalysisRun, error) {
	r := &AnalysisRun{}
	var task, result *string
	err := scanner.Scan(&r.ID, &r.Preset, &r.Mode, &r.Strategy, &task, &r.Status, &result, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if task != nil {
		r.Task = *task
	}
	if result != nil {
		r.Result = json.RawMessage(*result)
	}
	return r, nil
}

const runColumns = `id, preset, mode, strategy, task, status, result, started_at, completed_at`

func (s *Store) SaveRun(r *AnalysisRun) error {
	_, err := s.db.Exec(`
		INSERT INTO analysis_runs (id, preset, mode, strategy, task, status, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			completed_at = CASE WHEN excluded.status IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END`,
		r.ID, r.Preset, r.Mode, r.Strategy, r.Task, r.Status, r.Result)
	if err != nil {
		return fmt.Errorf("save analysis run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(id string) (*AnalysisRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis run: %w", err)
	}
	return r, nil
}

func (s *Store) ListRuns() ([]AnalysisRun, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM analysis_runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []AnalysisRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *Store) UpdateRun(id string, status string, result json.RawMessage) error {
	_, err := s.db.Exec(`
		UPDATE analysis_runs
		SET status = ?, result = ?,
		    completed_at = CASE WHEN ? IN ('completed', 'failed') THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE id = ?`, status, result, status, id)
	return err
}

func (s *Store) DeleteRun(id string) error {
	_, err := s.db.Exec(`DELETE FROM analysis_runs WHERE id = ?`, id)
	return err
}
