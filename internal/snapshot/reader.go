package snapshot

import (
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"

	"github.com/ThomasVuNguyen/pico-train/internal/model"
)

// Load reads a previously written document back into memory.
//
// fastjson rather than encoding/json: the document may contain the
// Inf/NaN number tokens Write emits for non-finite evaluation scores,
// and the evaluation objects use the metric name as a dynamic key.
func Load(path string) (*model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		if data, err = dec.DecodeAll(data, nil); err != nil {
			return nil, fmt.Errorf("decompress snapshot %s: %w", path, err)
		}
	}

	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	snap := &model.Snapshot{}
	for _, rv := range v.GetArray("runs") {
		run, err := parseRun(rv)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
		}
		snap.Runs = append(snap.Runs, run)
	}

	snap.Summary.TotalRuns = v.GetInt("summary", "total_runs")
	for _, nv := range v.GetArray("summary", "run_names") {
		snap.Summary.RunNames = append(snap.Summary.RunNames, string(nv.GetStringBytes()))
	}
	return snap, nil
}

func parseRun(v *fastjson.Value) (*model.Run, error) {
	name := string(v.GetStringBytes("run_name"))
	if name == "" {
		return nil, fmt.Errorf("run object missing run_name")
	}
	run := &model.Run{Name: name, Config: make(model.RunConfig)}

	if files := v.GetArray("log_files"); len(files) > 0 {
		for _, fv := range files {
			run.SourceFiles = append(run.SourceFiles, string(fv.GetStringBytes()))
		}
	} else if f := v.GetStringBytes("log_file"); len(f) > 0 {
		run.SourceFiles = []string{string(f)}
	}

	for _, sv := range v.GetArray("training_metrics") {
		run.TrainingSamples = append(run.TrainingSamples, model.TrainingSample{
			Step:         sv.GetInt("step"),
			Loss:         sv.GetFloat64("loss"),
			LearningRate: sv.GetFloat64("learning_rate"),
			InfNaNCount:  sv.GetInt("inf_nan_count"),
		})
	}

	for _, sv := range v.GetArray("evaluation_results") {
		obj, err := sv.Object()
		if err != nil {
			return nil, fmt.Errorf("run %s: evaluation entry: %w", name, err)
		}
		step := sv.GetInt("step")
		obj.Visit(func(key []byte, mv *fastjson.Value) {
			if string(key) == "step" {
				return
			}
			val, err := mv.Float64()
			if err != nil {
				return
			}
			run.EvaluationSamples = append(run.EvaluationSamples, model.EvaluationSample{
				Step:   step,
				Metric: string(key),
				Value:  val,
			})
		})
	}

	if obj := v.GetObject("config"); obj != nil {
		obj.Visit(func(key []byte, cv *fastjson.Value) {
			switch cv.Type() {
			case fastjson.TypeNumber:
				run.Config[string(key)] = model.NumberValue(cv.GetFloat64())
			case fastjson.TypeString:
				run.Config[string(key)] = model.StringValue(string(cv.GetStringBytes()))
			}
		})
	}
	return run, nil
}
