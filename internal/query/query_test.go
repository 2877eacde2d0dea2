package query

import (
	"math"
	"strings"
	"testing"

	"github.com/ThomasVuNguyen/pico-train/internal/model"
	"github.com/ThomasVuNguyen/pico-train/internal/snapshot"
)

func testSnapshot() *model.Snapshot {
	runA := &model.Run{
		Name:        "A",
		SourceFiles: []string{"a.log"},
		TrainingSamples: []model.TrainingSample{
			{Step: 0, Loss: 10.99, LearningRate: 0.0003},
			{Step: 500, Loss: 9.5, LearningRate: 0.0003},
			{Step: 1000, Loss: 8.2, LearningRate: 0.0003},
		},
		EvaluationSamples: []model.EvaluationSample{
			{Step: 1000, Metric: "paloma", Value: 7.125172406420199e+27},
		},
	}
	runB := &model.Run{
		Name:        "B",
		SourceFiles: []string{"b.log"},
		TrainingSamples: []model.TrainingSample{
			{Step: 0, Loss: 4.0, LearningRate: 0},
			{Step: 100, Loss: 2.0, LearningRate: 0},
		},
		EvaluationSamples: []model.EvaluationSample{
			{Step: 100, Metric: "paloma", Value: math.Inf(1)},
		},
	}
	return snapshot.Build([]*model.Run{runA, runB})
}

func TestParseSelection(t *testing.T) {
	snap := testSnapshot()
	tests := []struct {
		input   string
		all     bool
		index   int
		wantErr bool
	}{
		{"all", true, 0, false},
		{"", true, 0, false},
		{"0", false, 0, false},
		{"1", false, 1, false},
		{"A", false, 0, false},
		{"B", false, 1, false},
		{"2", false, 0, true},
		{"-1", false, 0, true},
		{"nope", false, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			sel, err := ParseSelection(tt.input, snap)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSelection(%q): %v", tt.input, err)
			}
			if sel.All != tt.all || (!sel.All && sel.Index != tt.index) {
				t.Errorf("sel = %+v", sel)
			}
		})
	}
}

func TestLossSeries(t *testing.T) {
	snap := testSnapshot()
	series := Loss(snap, Selection{All: true})
	if len(series) != 2 {
		t.Fatalf("got %d series, want 2", len(series))
	}
	if series[0].Label != "A" || len(series[0].Points) != 3 {
		t.Fatalf("series[0] = %q with %d points", series[0].Label, len(series[0].Points))
	}
	if p := series[0].Points[2]; p.Step != 1000 || p.Value != 8.2 {
		t.Errorf("last point = %+v", p)
	}
}

func TestEvaluationSeriesNonFinitePassThrough(t *testing.T) {
	snap := testSnapshot()
	series := Evaluation(snap, Selection{Index: 1}, "paloma")
	if len(series) != 1 || len(series[0].Points) != 1 {
		t.Fatalf("series = %+v", series)
	}
	if !math.IsInf(series[0].Points[0].Value, 1) {
		t.Errorf("non-finite value was altered: %v", series[0].Points[0].Value)
	}
}

func TestOverlayScaling(t *testing.T) {
	snap := testSnapshot()
	series := Overlay(snap, Selection{Index: 0})
	// Run A: loss series plus one scaled learning-rate series.
	if len(series) != 2 {
		t.Fatalf("got %d series, want 2", len(series))
	}
	scale := 10.99 / 0.0003
	want := 0.0003 * scale
	if got := series[1].Points[0].Value; math.Abs(got-want) > 1e-9 {
		t.Errorf("scaled lr = %v, want %v", got, want)
	}
	// The scaled series peak equals the loss peak, by construction.
	if got := series[1].Points[0].Value; math.Abs(got-10.99) > 1e-9 {
		t.Errorf("scaled peak = %v, want max loss 10.99", got)
	}
}

func TestOverlayOmitsScaledSeriesWhenLRZero(t *testing.T) {
	snap := testSnapshot()
	series := Overlay(snap, Selection{Index: 1})
	// Run B has max(lr) == 0: scale factor undefined, only loss remains.
	if len(series) != 1 {
		t.Fatalf("got %d series, want 1 (scaled series must be omitted)", len(series))
	}
	if series[0].Label != "B" {
		t.Errorf("label = %q", series[0].Label)
	}
}

func TestStatsDisplay(t *testing.T) {
	snap := testSnapshot()
	stats := Stats(snap, Selection{All: true})
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want 2", len(stats))
	}

	a := stats[0]
	if a.StepRange != "0 → 1000" {
		t.Errorf("step range = %q, want \"0 → 1000\"", a.StepRange)
	}
	if a.FinalLoss != "8.2000" {
		t.Errorf("final loss = %q, want \"8.2000\"", a.FinalLoss)
	}
	if a.FinalLearningRate != "0.0003" {
		t.Errorf("final lr = %q", a.FinalLearningRate)
	}
	// Large finals keep their exponential-notation rendering.
	if a.FinalEvaluation != "7.125172406420199e+27" {
		t.Errorf("final evaluation = %q", a.FinalEvaluation)
	}

	b := stats[1]
	if b.FinalEvaluation != "∞" {
		t.Errorf("non-finite final evaluation = %q, want ∞", b.FinalEvaluation)
	}
}

func TestStatsEmptyRun(t *testing.T) {
	snap := snapshot.Build([]*model.Run{{Name: "empty"}})
	stats := Stats(snap, Selection{All: true})
	if len(stats) != 1 {
		t.Fatalf("got %d stats", len(stats))
	}
	if stats[0].StepRange != "n/a" || stats[0].FinalLoss != "n/a" {
		t.Errorf("empty-run stats = %+v", stats[0])
	}
}

func TestEncodeSeriesNonFinite(t *testing.T) {
	snap := testSnapshot()
	var sb strings.Builder
	if err := EncodeSeries(&sb, Evaluation(snap, Selection{All: true}, "paloma")); err != nil {
		t.Fatalf("EncodeSeries: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "7.125172406420199e+27") {
		t.Errorf("finite value missing from %s", out)
	}
	if !strings.Contains(out, "[100, Inf]") {
		t.Errorf("non-finite value should encode as the Inf token, got %s", out)
	}
}
