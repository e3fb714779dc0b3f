package main

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"conclave/internal/config"
	"conclave/internal/report"
	"conclave/internal/run"
	"conclave/internal/store"
)

// runExport writes every stored analysis run to a tar.zst archive. Each run
// becomes a directory holding the raw result JSON and the rendered markdown
// report.
func runExport(args []string) error {
	var outputPath string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			i++
			if i >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			outputPath = args[i]
		}
	}
	if outputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: conclave export -f <output.tar.zst>\n")
		return fmt.Errorf("missing -f flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	exported := 0
	for _, rec := range runs {
		if err := exportRun(tw, rec); err != nil {
			return fmt.Errorf("export run %s: %w", rec.ID, err)
		}
		exported++
	}

	// Close everything explicitly to catch write errors
	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}

	var size int64
	if info, err := os.Stat(outputPath); err == nil {
		size = info.Size()
	}
	fmt.Printf("Export complete: %d runs, %s\n", exported, formatSize(size))
	return nil
}

func exportRun(tw *tar.Writer, rec store.AnalysisRun) error {
	meta, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := writeArchiveFile(tw, path.Join(rec.ID, "run.json"), meta, rec.StartedAt); err != nil {
		return err
	}

	if len(rec.Result) == 0 {
		return nil
	}
	var result run.CombinedResult
	if err := json.Unmarshal(rec.Result, &result); err != nil {
		// Keep the raw bytes even when the JSON no longer unmarshals.
		return writeArchiveFile(tw, path.Join(rec.ID, "result.json"), rec.Result, rec.StartedAt)
	}
	if err := writeArchiveFile(tw, path.Join(rec.ID, "result.json"), rec.Result, rec.StartedAt); err != nil {
		return err
	}
	return writeArchiveFile(tw, path.Join(rec.ID, "report.md"), []byte(report.Markdown(result)), rec.StartedAt)
}

func writeArchiveFile(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: modTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write tar header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("write tar data: %w", err)
	}
	return nil
}

// runImport loads run records from an export archive back into the store.
// Existing runs with the same ID are skipped unless -overwrite is given.
func runImport(args []string) error {
	var inputPath string
	overwrite := false
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-f":
			i++
			if i >= len(args) {
				return fmt.Errorf("missing value for -f")
			}
			inputPath = args[i]
		case "-overwrite":
			overwrite = true
		}
	}
	if inputPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: conclave import -f <export.tar.zst> [-overwrite]\n")
		return fmt.Errorf("missing -f flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)

	imported, skipped := 0, 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		// Only run.json entries carry the record; reports are derived.
		if !strings.HasSuffix(hdr.Name, "/run.json") {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return fmt.Errorf("read %s: %w", hdr.Name, err)
		}
		var rec store.AnalysisRun
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode %s: %w", hdr.Name, err)
		}
		if rec.ID == "" {
			continue
		}

		if !overwrite {
			existing, err := db.GetRun(rec.ID)
			if err != nil {
				return fmt.Errorf("check run %s: %w", rec.ID, err)
			}
			if existing != nil {
				skipped++
				continue
			}
		}
		if err := db.SaveRun(&rec); err != nil {
			return fmt.Errorf("save run %s: %w", rec.ID, err)
		}
		imported++
	}

	fmt.Printf("Import complete: %d runs imported, %d skipped\n", imported, skipped)
	return nil
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
