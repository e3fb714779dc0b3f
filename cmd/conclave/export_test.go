package main

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"conclave/internal/analysis"
	"conclave/internal/run"
	"conclave/internal/store"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 bytes"},
		{512, "512 bytes"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.bytes); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer zr.Close()

	entries := make(map[string][]byte)
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("read entry %s: %v", hdr.Name, err)
		}
		entries[hdr.Name] = body
	}
	return entries
}

func TestExportRunArchivecontents(t *testing.T) {
	result := run.CombinedResult{
		RunID:    "run-7",
		Preset:   "quick-scan",
		Strategy: analysis.StrategyParallel,
		Mode:     analysis.ModeQuick,
		Outcomes: map[string]run.ExecutionOutcome{
			"security": {AgentKey: "anthropic:security", Role: analysis.RoleSecurity, Status: run.StatusCompleted, Output: "all clear"},
		},
		Progress: run.Progress{TotalAgents: 1, Completed: 1},
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	rec := store.AnalysisRun{
		ID:        "run-7",
		Preset:    "quick-scan",
		Mode:      "quick",
		Strategy:  "parallel",
		Status:    "completed",
		Result:    resultJSON,
		StartedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	tw := tar.NewWriter(zw)
	if err := exportRun(tw, rec); err != nil {
		t.Fatalf("exportRun: %v", err)
	}
	tw.Close()
	zw.Close()

	entries := readArchive(t, buf.Bytes())
	for _, name := range []string{"run-7/run.json", "run-7/result.json", "run-7/report.md"} {
		if _, ok := entries[name]; !ok {
			t.Errorf("archive missing %s, has %v", name, keys(entries))
		}
	}

	var roundTrip store.AnalysisRun
	if err := json.Unmarshal(entries["run-7/run.json"], &roundTrip); err != nil {
		t.Fatalf("decode run.json: %v", err)
	}
	if roundTrip.ID != "run-7" || roundTrip.Status != "completed" {
		t.Errorf("round-tripped record = %+v", roundTrip)
	}
	if !bytes.Contains(entries["run-7/report.md"], []byte("all clear")) {
		t.Error("report.md missing agent output")
	}
}

func TestExportRunWithoutResult(t *testing.T) {
	rec := store.AnalysisRun{
		ID:        "run-8",
		Preset:    "quick-scan",
		Status:    "running",
		StartedAt: time.Now(),
	}

	var buf bytes.Buffer
	zw, _ := zstd.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	if err := exportRun(tw, rec); err != nil {
		t.Fatalf("exportRun: %v", err)
	}
	tw.Close()
	zw.Close()

	entries := readArchive(t, buf.Bytes())
	if _, ok := entries["run-8/run.json"]; !ok {
		t.Error("archive missing run.json")
	}
	if _, ok := entries["run-8/report.md"]; ok {
		t.Error("run without result produced a report")
	}
}

func keys(m map[string][]byte) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}
