// Package query turns an immutable snapshot into chart-ready series.
// Everything here is a pure read; concurrent use needs no locking.
package query

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ThomasVuNguyen/pico-train/internal/model"
)

// Point is one (step, value) chart coordinate.
type Point struct {
	Step  int
	Value float64
}

// Series is one labeled line on a chart.
type Series struct {
	Label  string
	Points []Point
}

// Selection picks either every run or a single one.
type Selection struct {
	All   bool
	Index int
}

// ParseSelection interprets the run parameter: "all" (or empty), a run
// index, or a run name.
func ParseSelection(s string, snap *model.Snapshot) (Selection, error) {
	if s == "" || s == "all" {
		return Selection{All: true}, nil
	}
	if idx, err := strconv.Atoi(s); err == nil {
		if idx < 0 || idx >= len(snap.Runs) {
			return Selection{}, fmt.Errorf("run index %d out of range (have %d runs)", idx, len(snap.Runs))
		}
		return Selection{Index: idx}, nil
	}
	for i, r := range snap.Runs {
		if r.Name == s {
			return Selection{Index: i}, nil
		}
	}
	return Selection{}, fmt.Errorf("unknown run %q", s)
}

func (sel Selection) runs(snap *model.Snapshot) []*model.Run {
	if sel.All {
		return snap.Runs
	}
	return snap.Runs[sel.Index : sel.Index+1]
}

// Loss returns one loss series per selected run, points taken directly
// from the training samples with no resampling.
func Loss(snap *model.Snapshot, sel Selection) []Series {
	return trainingSeries(snap, sel, func(s model.TrainingSample) float64 { return s.Loss })
}

// LearningRate returns one learning-rate series per selected run.
func LearningRate(snap *model.Snapshot, sel Selection) []Series {
	return trainingSeries(snap, sel, func(s model.TrainingSample) float64 { return s.LearningRate })
}

// InfNaN returns one numerical-instability counter series per selected run.
func InfNaN(snap *model.Snapshot, sel Selection) []Series {
	return trainingSeries(snap, sel, func(s model.TrainingSample) float64 { return float64(s.InfNaNCount) })
}

func trainingSeries(snap *model.Snapshot, sel Selection, value func(model.TrainingSample) float64) []Series {
	var out []Series
	for _, run := range sel.runs(snap) {
		points := make([]Point, len(run.TrainingSamples))
		for i, s := range run.TrainingSamples {
			points[i] = Point{Step: s.Step, Value: value(s)}
		}
		out = append(out, Series{Label: run.Name, Points: points})
	}
	return out
}

// Evaluation returns one series per selected run for the named
// evaluation metric. Non-finite values pass through untouched.
func Evaluation(snap *model.Snapshot, sel Selection, metric string) []Series {
	var out []Series
	for _, run := range sel.runs(snap) {
		var points []Point
		for _, s := range run.EvaluationSamples {
			if s.Metric != metric {
				continue
			}
			points = append(points, Point{Step: s.Step, Value: s.Value})
		}
		out = append(out, Series{Label: run.Name, Points: points})
	}
	return out
}

// Overlay returns, per selected run, the loss series plus the learning
// rate rescaled by max(loss)/max(lr) so both fit one shared axis. When
// max(lr) is zero the scale factor is undefined and the scaled series
// is omitted for that run.
func Overlay(snap *model.Snapshot, sel Selection) []Series {
	var out []Series
	for _, run := range sel.runs(snap) {
		var maxLoss, maxLR float64
		points := make([]Point, len(run.TrainingSamples))
		for i, s := range run.TrainingSamples {
			points[i] = Point{Step: s.Step, Value: s.Loss}
			if s.Loss > maxLoss {
				maxLoss = s.Loss
			}
			if s.LearningRate > maxLR {
				maxLR = s.LearningRate
			}
		}
		out = append(out, Series{Label: run.Name, Points: points})

		if maxLR == 0 {
			continue
		}
		scale := maxLoss / maxLR
		scaled := make([]Point, len(run.TrainingSamples))
		for i, s := range run.TrainingSamples {
			scaled[i] = Point{Step: s.Step, Value: s.LearningRate * scale}
		}
		out = append(out, Series{
			Label:  fmt.Sprintf("%s (lr scaled x%s)", run.Name, model.FormatFloat(scale)),
			Points: scaled,
		})
	}
	return out
}

// RunStats is the per-run display summary for the dashboard header.
type RunStats struct {
	Name              string   `json:"run_name"`
	LogFiles          []string `json:"log_files"`
	TrainingSamples   int      `json:"training_samples"`
	EvaluationSamples int      `json:"evaluation_samples"`
	StepRange         string   `json:"step_range"`
	FinalLoss         string   `json:"final_loss"`
	FinalLearningRate string   `json:"final_learning_rate"`
	FinalEvaluation   string   `json:"final_evaluation"`
}

// Stats derives the display summary for each selected run. Non-finite
// finals render as the infinity glyph rather than being dropped.
func Stats(snap *model.Snapshot, sel Selection) []RunStats {
	var out []RunStats
	for _, run := range sel.runs(snap) {
		st := RunStats{
			Name:              run.Name,
			LogFiles:          run.SourceFiles,
			TrainingSamples:   len(run.TrainingSamples),
			EvaluationSamples: len(run.EvaluationSamples),
			StepRange:         "n/a",
			FinalLoss:         "n/a",
			FinalLearningRate: "n/a",
			FinalEvaluation:   "n/a",
		}
		if n := len(run.TrainingSamples); n > 0 {
			first, last := run.TrainingSamples[0], run.TrainingSamples[n-1]
			st.StepRange = fmt.Sprintf("%d → %d", first.Step, last.Step)
			st.FinalLoss = displayFixed(last.Loss)
			st.FinalLearningRate = displayValue(last.LearningRate)
		}
		if n := len(run.EvaluationSamples); n > 0 {
			st.FinalEvaluation = displayValue(run.EvaluationSamples[n-1].Value)
		}
		out = append(out, st)
	}
	return out
}

// displayFixed renders finite values with four fixed decimals ("8.2000").
func displayFixed(v float64) string {
	if s, ok := nonFinite(v); ok {
		return s
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// displayValue renders finite values in minimal notation, keeping
// exponential form for extreme magnitudes ("7.125172406420199e+27").
func displayValue(v float64) string {
	if s, ok := nonFinite(v); ok {
		return s
	}
	return model.FormatFloat(v)
}

func nonFinite(v float64) (string, bool) {
	switch {
	case math.IsInf(v, 1):
		return "∞", true
	case math.IsInf(v, -1):
		return "-∞", true
	case math.IsNaN(v):
		return "NaN", true
	}
	return "", false
}

// EncodeSeries writes series as JSON. Hand-assembled for the same
// reason the snapshot writer is: evaluation points may carry non-finite
// values that encoding/json refuses to encode.
func EncodeSeries(w io.Writer, series []Series) error {
	dst := append([]byte(nil), '[')
	for i, s := range series {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, "\n  {\"label\": "...)
		label, _ := json.Marshal(s.Label)
		dst = append(dst, label...)
		dst = append(dst, ", \"points\": ["...)
		for j, p := range s.Points {
			if j > 0 {
				dst = append(dst, ", "...)
			}
			dst = append(dst, '[')
			dst = strconv.AppendInt(dst, int64(p.Step), 10)
			dst = append(dst, ", "...)
			dst = model.AppendFloat(dst, p.Value)
			dst = append(dst, ']')
		}
		dst = append(dst, "]}"...)
	}
	if len(series) > 0 {
		dst = append(dst, '\n')
	}
	dst = append(dst, "]\n"...)
	_, err := w.Write(dst)
	return err
}
