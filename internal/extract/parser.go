package extract

import (
	"bufio"
	"fmt"
	"io"

	"github.com/ThomasVuNguyen/pico-train/internal/model"
)

// maxLineSize bounds a single log line; pico-train occasionally dumps
// whole config blobs on one line.
const maxLineSize = 1024 * 1024

// blockState is the one piece of parser state: which metric block is
// currently open, and for which step.
type blockState struct {
	kind BlockKind
	step int
}

// pendingSample accumulates the fields of one training block until the
// block closes or all three fields have been seen.
type pendingSample struct {
	step      int
	loss      float64
	lr        float64
	infNaN    int
	hasLoss   bool
	hasLR     bool
	hasInfNaN bool
}

func (p *pendingSample) complete() bool {
	return p.hasLoss && p.hasLR && p.hasInfNaN
}

// ParseRun consumes one log file and produces the raw per-file Run.
// name is the logical run name (the containing directory, not the file);
// sourceFile is recorded for display and merge diagnostics.
//
// Lines the extractor does not recognize are skipped. A read error is
// the only failure: partial logs, truncated blocks and garbage lines all
// degrade to fewer samples, never to an error.
func ParseRun(r io.Reader, name, sourceFile string) (*model.Run, error) {
	run := &model.Run{
		Name:        name,
		SourceFiles: []string{sourceFile},
		Config:      make(model.RunConfig),
	}

	state := blockState{kind: BlockNone}
	var pending *pendingSample

	finalize := func() {
		// Loss is the mandatory field; a block that never reported it
		// is dropped. A missing Inf/NaN count defaults to zero.
		if pending != nil && pending.hasLoss {
			run.TrainingSamples = append(run.TrainingSamples, model.TrainingSample{
				Step:         pending.step,
				Loss:         pending.loss,
				LearningRate: pending.lr,
				InfNaNCount:  pending.infNaN,
			})
		}
		pending = nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for sc.Scan() {
		ln := Extract(sc.Text())
		switch ln.Kind {
		case LineStepMarker:
			finalize()
			state = blockState{kind: ln.Block, step: ln.Step}
			if ln.Block == BlockTraining {
				pending = &pendingSample{step: ln.Step}
			}

		case LineTrainingMetric:
			if state.kind != BlockTraining || pending == nil {
				continue
			}
			switch ln.Field {
			case FieldLoss:
				pending.loss = ln.Value
				pending.hasLoss = true
			case FieldLearningRate:
				pending.lr = ln.Value
				pending.hasLR = true
			case FieldInfNaN:
				pending.infNaN = int(ln.Value)
				pending.hasInfNaN = true
			}
			if pending.complete() {
				finalize()
			}

		case LineEvaluation:
			if state.kind != BlockEvaluation {
				continue
			}
			run.EvaluationSamples = append(run.EvaluationSamples, model.EvaluationSample{
				Step:   state.step,
				Metric: ln.Key,
				Value:  ln.Value,
			})

		case LineConfig:
			// First occurrence wins.
			if _, seen := run.Config[ln.Key]; seen {
				continue
			}
			if ln.IsNum {
				run.Config[ln.Key] = model.NumberValue(ln.Value)
			} else {
				run.Config[ln.Key] = model.StringValue(ln.Str)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", sourceFile, err)
	}
	finalize()

	return run, nil
}
