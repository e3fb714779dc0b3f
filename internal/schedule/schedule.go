package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Schedule describes when a recurring analysis fires. Stored as JSON in the
// scheduled_analyses table.
type Schedule struct {
	Kind       string `json:"kind"`                  // "cron", "interval", "once"
	CronExpr   string `json:"cron_expr,omitempty"`   // if kind=cron
	IntervalMs int64  `json:"interval_ms,omitempty"` // if kind=interval
	AtMs       int64  `json:"at_ms,omitempty"`       // unix ms, if kind=once
}

func Parse(raw string) (*Schedule, error) {
	var s Schedule
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	return &s, nil
}

// NextRun computes the next firing time after now. A nil return means the
// schedule never fires again (a one-shot in the past, or garbage input).
func NextRun(raw string, now time.Time) *time.Time {
	s, err := Parse(raw)
	if err != nil {
		return nil
	}

	var next time.Time
	switch s.Kind {
	case "cron":
		t, err := gronx.NextTickAfter(s.CronExpr, now, false)
		if err != nil {
			return nil
		}
		next = t
	case "interval":
		if s.IntervalMs <= 0 {
			return nil
		}
		next = now.Add(time.Duration(s.IntervalMs) * time.Millisecond)
	case "once":
		t := time.UnixMilli(s.AtMs)
		if !t.After(now) {
			return nil
		}
		next = t
	default:
		return nil
	}
	return &next
}

// Describe renders a schedule for listings; falls back to the raw string when
// it cannot be parsed.
func Describe(raw string) string {
	s, err := Parse(raw)
	if err != nil {
		return raw
	}

	switch s.Kind {
	case "cron":
		return "cron " + s.CronExpr
	case "interval":
		d := time.Duration(s.IntervalMs) * time.Millisecond
		switch {
		case d >= time.Hour && d%time.Hour == 0:
			if h := int(d.Hours()); h == 1 {
				return "every hour"
			} else {
				return fmt.Sprintf("every %d hours", h)
			}
		case d%time.Minute == 0:
			if m := int(d.Minutes()); m == 1 {
				return "every minute"
			} else {
				return fmt.Sprintf("every %d minutes", m)
			}
		default:
			return fmt.Sprintf("every %d seconds", int(d.Seconds()))
		}
	case "once":
		return "once at " + time.UnixMilli(s.AtMs).Format("Jan 2 15:04")
	default:
		return raw
	}
}

// Normalize accepts either the JSON form or a bare cron expression and
// returns the validated JSON form. Bare cron strings get wrapped.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	var s Schedule
	if err := json.Unmarshal([]byte(raw), &s); err == nil && s.Kind != "" {
		switch s.Kind {
		case "cron":
			if !gronx.New().IsValid(s.CronExpr) {
				return "", fmt.Errorf("invalid cron expression: %s", s.CronExpr)
			}
		case "interval":
			if s.IntervalMs <= 0 {
				return "", fmt.Errorf("interval_ms must be positive")
			}
		case "once":
			if s.AtMs <= 0 {
				return "", fmt.Errorf("at_ms must be positive")
			}
		default:
			return "", fmt.Errorf("unknown schedule kind: %s", s.Kind)
		}
		return raw, nil
	}

	if !gronx.New().IsValid(raw) {
		return "", fmt.Errorf("invalid schedule: not JSON or a cron expression: %s", raw)
	}
	data, err := json.Marshal(Schedule{Kind: "cron", CronExpr: raw})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
