// Package snapshot builds, persists and reloads the data document the
// dashboard consumes.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/ThomasVuNguyen/pico-train/internal/model"
)

// Build wraps the merged runs into the snapshot shape, adding the
// summary block. Pure; run order is preserved.
func Build(runs []*model.Run) *model.Snapshot {
	names := make([]string, len(runs))
	for i, r := range runs {
		names[i] = r.Name
	}
	return &model.Snapshot{
		Runs:    runs,
		Summary: model.Summary{TotalRuns: len(runs), RunNames: names},
	}
}

// Write persists the document atomically (temp file + rename). A path
// ending in .zst gets a zstd-compressed document; Load undoes it.
func Write(path string, snap *model.Snapshot) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory %s: %w", dir, err)
		}
	}

	data := Append(nil, snap)
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return err
		}
		data = enc.EncodeAll(data, make([]byte, 0, len(data)/2))
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmpPath, err)
	}
	return nil
}

// Encode writes the uncompressed document to w.
func Encode(w io.Writer, snap *model.Snapshot) error {
	_, err := w.Write(Append(nil, snap))
	return err
}

// Append appends the document encoding of snap to dst.
//
// The document is assembled by hand rather than with encoding/json:
// evaluation objects carry the metric name as a dynamic key, and
// non-finite scores must come out as Inf/NaN tokens, which encoding/json
// refuses to produce. Finite-only documents are plain standard JSON.
func Append(dst []byte, snap *model.Snapshot) []byte {
	dst = append(dst, "{\n  \"runs\": ["...)
	for i, run := range snap.Runs {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendRun(dst, run)
	}
	if len(snap.Runs) > 0 {
		dst = append(dst, "\n  "...)
	}
	dst = append(dst, "],\n  \"summary\": {\n    \"total_runs\": "...)
	dst = strconv.AppendInt(dst, int64(snap.Summary.TotalRuns), 10)
	dst = append(dst, ",\n    \"run_names\": ["...)
	for i, name := range snap.Summary.RunNames {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = appendString(dst, name)
	}
	dst = append(dst, "]\n  }\n}\n"...)
	return dst
}

func appendRun(dst []byte, run *model.Run) []byte {
	dst = append(dst, "\n    {\n      \"run_name\": "...)
	dst = appendString(dst, run.Name)
	dst = append(dst, ",\n      \"log_file\": "...)
	dst = appendString(dst, run.LatestFile())
	dst = append(dst, ",\n      \"log_files\": ["...)
	for i, f := range run.SourceFiles {
		if i > 0 {
			dst = append(dst, ", "...)
		}
		dst = appendString(dst, f)
	}
	dst = append(dst, "],\n      \"training_metrics\": ["...)
	for i, s := range run.TrainingSamples {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, "\n        { \"step\": "...)
		dst = strconv.AppendInt(dst, int64(s.Step), 10)
		dst = append(dst, ", \"loss\": "...)
		dst = model.AppendFloat(dst, s.Loss)
		dst = append(dst, ", \"learning_rate\": "...)
		dst = model.AppendFloat(dst, s.LearningRate)
		dst = append(dst, ", \"inf_nan_count\": "...)
		dst = strconv.AppendInt(dst, int64(s.InfNaNCount), 10)
		dst = append(dst, " }"...)
	}
	if len(run.TrainingSamples) > 0 {
		dst = append(dst, "\n      "...)
	}
	dst = append(dst, "],\n      \"evaluation_results\": ["...)
	for i, s := range run.EvaluationSamples {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, "\n        { \"step\": "...)
		dst = strconv.AppendInt(dst, int64(s.Step), 10)
		dst = append(dst, ", "...)
		dst = appendString(dst, s.Metric)
		dst = append(dst, ": "...)
		dst = model.AppendFloat(dst, s.Value)
		dst = append(dst, " }"...)
	}
	if len(run.EvaluationSamples) > 0 {
		dst = append(dst, "\n      "...)
	}
	dst = append(dst, "],\n      \"config\": {"...)
	keys := make([]string, 0, len(run.Config))
	for k := range run.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, "\n        "...)
		dst = appendString(dst, k)
		dst = append(dst, ": "...)
		dst = appendConfigValue(dst, run.Config[k])
	}
	if len(keys) > 0 {
		dst = append(dst, "\n      "...)
	}
	dst = append(dst, "}\n    }"...)
	return dst
}

func appendConfigValue(dst []byte, v model.ConfigValue) []byte {
	if v.Kind == model.KindNumber {
		return model.AppendFloat(dst, v.Num)
	}
	return appendString(dst, v.Str)
}

// appendString appends s as a JSON string. encoding/json does the
// escaping; marshaling a string cannot fail.
func appendString(dst []byte, s string) []byte {
	b, _ := json.Marshal(s)
	return append(dst, b...)
}
