// Package extract turns pico-train log text into typed events and runs.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// LineKind classifies a single log line.
type LineKind int

const (
	LineUnrecognized LineKind = iota
	LineStepMarker
	LineTrainingMetric
	LineEvaluation
	LineConfig
)

// BlockKind identifies which metric block a step marker opens.
type BlockKind int

const (
	BlockNone BlockKind = iota
	BlockTraining
	BlockEvaluation
)

// TrainingField identifies the metric carried by a TrainingMetric line.
type TrainingField int

const (
	FieldLoss TrainingField = iota
	FieldLearningRate
	FieldInfNaN
)

// Line is the extraction result for one log line. Only the fields
// relevant to Kind are populated.
type Line struct {
	Kind  LineKind
	Block BlockKind // step markers
	Step  int       // step markers
	Field TrainingField
	Key   string  // config field or evaluation metric name
	Value float64 // numeric payload
	Str   string  // textual config payload
	IsNum bool    // config payload parsed as a number
}

// configKeys are the run configuration fields extracted from log output.
var configKeys = map[string]bool{
	"d_model":     true,
	"n_layers":    true,
	"max_seq_len": true,
	"vocab_size":  true,
	"lr":          true,
	"max_steps":   true,
	"batch_size":  true,
}

var (
	// "2025-06-01 10:00:00 - pico-train - INFO - "
	logPrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} - \S+ - [A-Z]+ - `)
	// "Step 500 -- 🔄 Training Metrics"
	stepMarkerRe = regexp.MustCompile(`^Step (\d+) -- (.+)$`)
	keyValueRe   = regexp.MustCompile(`^(.+?):\s+(\S.*)$`)
	metricNameRe = regexp.MustCompile(`^[\w./-]+$`)
)

// Extract classifies one raw log line. It is stateless: block membership
// of metric and evaluation lines is decided by the run parser, which
// tracks the currently open block.
func Extract(raw string) Line {
	s := stripDecorations(logPrefixRe.ReplaceAllString(raw, ""))
	if s == "" {
		return Line{}
	}

	if m := stepMarkerRe.FindStringSubmatch(s); m != nil {
		step, err := strconv.Atoi(m[1])
		if err != nil {
			return Line{}
		}
		switch {
		case strings.Contains(m[2], "Training Metrics"):
			return Line{Kind: LineStepMarker, Block: BlockTraining, Step: step}
		case strings.Contains(m[2], "Evaluation Results"):
			return Line{Kind: LineStepMarker, Block: BlockEvaluation, Step: step}
		}
		return Line{}
	}

	m := keyValueRe.FindStringSubmatch(s)
	if m == nil {
		return Line{}
	}
	key := strings.TrimSpace(m[1])
	val := strings.TrimSpace(m[2])

	switch key {
	case "Loss":
		return numericLine(LineTrainingMetric, FieldLoss, val)
	case "Learning Rate":
		return numericLine(LineTrainingMetric, FieldLearningRate, val)
	case "Inf/NaN count":
		return numericLine(LineTrainingMetric, FieldInfNaN, val)
	}

	if configKeys[key] {
		ln := Line{Kind: LineConfig, Key: key, Str: val}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			ln.Value = f
			ln.IsNum = true
		}
		return ln
	}

	// Anything else of the form "name: <float>" is a candidate evaluation
	// score; the parser only accepts it inside an evaluation block.
	// ParseFloat deliberately admits inf/nan spellings here.
	if metricNameRe.MatchString(key) {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return Line{Kind: LineEvaluation, Key: key, Value: f}
		}
	}
	return Line{}
}

func numericLine(kind LineKind, field TrainingField, val string) Line {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return Line{}
	}
	return Line{Kind: kind, Field: field, Value: f}
}

// stripDecorations removes the tree-drawing glyphs, emoji markers and
// surrounding whitespace pico-train prefixes nested lines with. The
// decoration carries no meaning; only label and value matter.
func stripDecorations(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		switch {
		case unicode.IsSpace(r):
			return true
		case r >= 0x2500 && r <= 0x257F: // Box Drawing (├, └, │, ─ ...)
			return true
		case r >= 0x2600 && r <= 0x27BF: // Misc Symbols / Dingbats (✓, ✗ ...)
			return true
		case r >= 0x1F300 && r <= 0x1FAFF: // emoji (🔄, 📊 ...)
			return true
		}
		return false
	})
}
