package model

// TrainingSample holds the three metrics pico-train reports per training step.
type TrainingSample struct {
	Step         int     `json:"step"`
	Loss         float64 `json:"loss"`
	LearningRate float64 `json:"learning_rate"`
	InfNaNCount  int     `json:"inf_nan_count"`
}

// EvaluationSample is one named score reported in an evaluation block.
// Value may be non-finite (a diverged run legitimately reports inf).
type EvaluationSample struct {
	Step   int
	Metric string
	Value  float64
}

// ConfigKind discriminates the scalar variants of a config field.
type ConfigKind int

const (
	KindNumber ConfigKind = iota
	KindString
)

// ConfigValue is a tagged scalar preserving the original type of a
// configuration field for round-trip display.
type ConfigValue struct {
	Kind ConfigKind
	Num  float64
	Str  string
}

// NumberValue wraps a numeric config field.
func NumberValue(v float64) ConfigValue {
	return ConfigValue{Kind: KindNumber, Num: v}
}

// StringValue wraps a textual config field.
func StringValue(s string) ConfigValue {
	return ConfigValue{Kind: KindString, Str: s}
}

// String renders the value for display.
func (v ConfigValue) String() string {
	if v.Kind == KindString {
		return v.Str
	}
	return FormatFloat(v.Num)
}

// RunConfig maps config field names to their first-seen values.
type RunConfig map[string]ConfigValue

// Run is one logical training session. Before merging, a Run covers a
// single physical log file; after merging it covers every continuation
// file sharing the same name.
type Run struct {
	Name              string
	SourceFiles       []string // base names, oldest first
	TrainingSamples   []TrainingSample
	EvaluationSamples []EvaluationSample
	Config            RunConfig
}

// LatestFile returns the most recent contributing log file.
func (r *Run) LatestFile() string {
	if len(r.SourceFiles) == 0 {
		return ""
	}
	return r.SourceFiles[len(r.SourceFiles)-1]
}

// Summary describes the snapshot for quick dashboard display.
type Summary struct {
	TotalRuns int      `json:"total_runs"`
	RunNames  []string `json:"run_names"`
}

// Snapshot is the write-once document produced by the pipeline and
// consumed by the dashboard. Safe for concurrent readers once built.
type Snapshot struct {
	Runs    []*Run
	Summary Summary
}

// RunByName returns the run with the given name, or nil.
func (s *Snapshot) RunByName(name string) *Run {
	for _, r := range s.Runs {
		if r.Name == name {
			return r
		}
	}
	return nil
}
