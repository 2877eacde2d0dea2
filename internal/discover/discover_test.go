package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

const logA = `Step 0 -- Training Metrics
├── Loss: 10.99
├── Learning Rate: 0.0003
└── Inf/NaN count: 0
`

const logB1 = `Step 0 -- Training Metrics
├── Loss: 10.0
├── Learning Rate: 0.0003
└── Inf/NaN count: 0
`

const logB2 = `Step 500 -- Training Metrics
├── Loss: 9.0
├── Learning Rate: 0.0003
└── Inf/NaN count: 0
`

func writeLog(t *testing.T, root, run, file, content string) {
	t.Helper()
	dir := filepath.Join(root, run, logsDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeGzLog(t *testing.T, root, run, file, content string) {
	t.Helper()
	dir := filepath.Join(root, run, logsDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(filepath.Join(dir, file))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "run-a", "train.log", logA)
	writeLog(t, root, "run-b", "2025-06-01.log", logB1)
	writeLog(t, root, "run-b", "2025-06-02.log", logB2)

	// Candidates that must be skipped without failing the scan.
	if err := os.MkdirAll(filepath.Join(root, "no-logs-dir"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, "empty-logs", logsDirName), 0755); err != nil {
		t.Fatal(err)
	}
	// Stray file at the root is not a run candidate.
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	runs, stats, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if stats.RunsScanned != 2 || stats.RunsSkipped != 2 || stats.FilesParsed != 3 {
		t.Errorf("stats = %+v, want 2 scanned / 2 skipped / 3 files", stats)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d per-file runs, want 3", len(runs))
	}

	// os.ReadDir hands out names sorted, so run-a comes first, then
	// run-b's files oldest (lexicographically smallest) first.
	if runs[0].Name != "run-a" || runs[1].Name != "run-b" || runs[2].Name != "run-b" {
		t.Fatalf("run order = %s, %s, %s", runs[0].Name, runs[1].Name, runs[2].Name)
	}
	if runs[1].SourceFiles[0] != "2025-06-01.log" || runs[2].SourceFiles[0] != "2025-06-02.log" {
		t.Errorf("file order = %v, %v; want oldest continuation first", runs[1].SourceFiles, runs[2].SourceFiles)
	}
	if len(runs[1].TrainingSamples) != 1 || runs[1].TrainingSamples[0].Step != 0 {
		t.Errorf("run-b file1 samples = %+v", runs[1].TrainingSamples)
	}
}

func TestScanGzipLogs(t *testing.T) {
	root := t.TempDir()
	writeGzLog(t, root, "run-z", "train.log.gz", logA)

	runs, stats, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if stats.FilesParsed != 1 || len(runs) != 1 {
		t.Fatalf("stats = %+v, runs = %d", stats, len(runs))
	}
	if len(runs[0].TrainingSamples) != 1 || runs[0].TrainingSamples[0].Loss != 10.99 {
		t.Errorf("samples = %+v", runs[0].TrainingSamples)
	}
}

func TestScanMissingRoot(t *testing.T) {
	if _, _, err := Scan(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error for missing runs directory")
	}
}

func TestScanEmptyRoot(t *testing.T) {
	runs, stats, err := Scan(t.TempDir())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(runs) != 0 || stats.RunsScanned != 0 {
		t.Errorf("empty root should yield no runs, got %d (%+v)", len(runs), stats)
	}
}
