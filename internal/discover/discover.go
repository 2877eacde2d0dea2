// Package discover scans a runs directory tree and parses every log file
// it finds into a raw per-file Run.
package discover

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/ThomasVuNguyen/pico-train/internal/extract"
	"github.com/ThomasVuNguyen/pico-train/internal/model"
)

// logsDirName is the conventional log subdirectory inside a run directory.
const logsDirName = "logs"

// ScanStats reports what a scan covered, for diagnostics.
type ScanStats struct {
	RunsScanned int // run directories with at least one log file
	RunsSkipped int // candidates without a logs dir or without log files
	FilesParsed int
}

// logFile is one discovered log file awaiting parsing.
type logFile struct {
	runName string
	path    string
}

// Scan enumerates the immediate subdirectories of root as run candidates
// and parses each *.log / *.log.gz file under their logs/ directory.
//
// Ordering contract: run directories and the files within each run are
// handed out sorted lexicographically by name. pico-train log file names
// embed sortable timestamps, so this is chronological order — the merger
// depends on oldest-continuation-first concatenation.
//
// A missing or empty logs dir skips the candidate. Failure to read root
// itself, or to read a discovered file, is fatal for the scan.
func Scan(root string) ([]*model.Run, ScanStats, error) {
	var stats ScanStats

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, stats, fmt.Errorf("read runs directory %s: %w", root, err)
	}

	var files []logFile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runFiles, err := listLogFiles(filepath.Join(root, entry.Name()))
		if err != nil {
			log.Printf("Skipping run %s: %v", entry.Name(), err)
			stats.RunsSkipped++
			continue
		}
		if len(runFiles) == 0 {
			stats.RunsSkipped++
			continue
		}
		stats.RunsScanned++
		for _, p := range runFiles {
			files = append(files, logFile{runName: entry.Name(), path: p})
		}
	}

	// Per-file parses share no state, so fan out one goroutine per file
	// and collect results by index to keep discovery order intact. The
	// Wait below is the barrier the merger relies on.
	runs := make([]*model.Run, len(files))
	errs := make([]error, len(files))
	var wg sync.WaitGroup
	for i, lf := range files {
		wg.Add(1)
		go func(i int, lf logFile) {
			defer wg.Done()
			runs[i], errs[i] = parseFile(lf)
		}(i, lf)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, stats, err
		}
	}
	stats.FilesParsed = len(files)
	return runs, stats, nil
}

// listLogFiles returns the sorted log file paths for one run directory.
// A missing logs dir is reported as (nil, nil): the candidate simply
// contributes no runs.
func listLogFiles(runDir string) ([]string, error) {
	logsDir := filepath.Join(runDir, logsDirName)
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", logsDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".log.gz") {
			files = append(files, filepath.Join(logsDir, name))
		}
	}
	return files, nil
}

// parseFile opens one log file (transparently decompressing *.log.gz)
// and runs the line parser over it.
func parseFile(lf logFile) (*model.Run, error) {
	f, err := os.Open(lf.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", lf.path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(lf.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", lf.path, err)
		}
		defer gz.Close()
		r = gz
	}

	return extract.ParseRun(r, lf.runName, filepath.Base(lf.path))
}
