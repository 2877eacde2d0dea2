// Package merge reconciles continuation log files into one logical Run
// per run name.
package merge

import (
	"log"
	"sort"

	"github.com/ThomasVuNguyen/pico-train/internal/model"
)

// Merge groups raw per-file runs by name and collapses each group into
// one logical Run. Groups of size one pass through unchanged.
//
// For larger groups the series are concatenated in discovery order
// (oldest continuation first — discover guarantees this), stable-sorted
// by step, and deduplicated keeping the first occurrence: when a restart
// re-logged steps the earlier file already covered, the earlier file's
// values win. Output order follows first appearance in the input.
func Merge(runs []*model.Run) []*model.Run {
	groups := make(map[string][]*model.Run)
	var order []string
	for _, r := range runs {
		if _, ok := groups[r.Name]; !ok {
			order = append(order, r.Name)
		}
		groups[r.Name] = append(groups[r.Name], r)
	}

	merged := make([]*model.Run, 0, len(order))
	for _, name := range order {
		group := groups[name]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		merged = append(merged, mergeGroup(name, group))
	}
	return merged
}

func mergeGroup(name string, group []*model.Run) *model.Run {
	out := &model.Run{Name: name}
	for _, r := range group {
		out.SourceFiles = append(out.SourceFiles, r.SourceFiles...)
		out.TrainingSamples = append(out.TrainingSamples, r.TrainingSamples...)
		out.EvaluationSamples = append(out.EvaluationSamples, r.EvaluationSamples...)
	}

	sort.SliceStable(out.TrainingSamples, func(i, j int) bool {
		return out.TrainingSamples[i].Step < out.TrainingSamples[j].Step
	})
	sort.SliceStable(out.EvaluationSamples, func(i, j int) bool {
		return out.EvaluationSamples[i].Step < out.EvaluationSamples[j].Step
	})

	out.TrainingSamples = dedupTraining(out.TrainingSamples)
	out.EvaluationSamples = dedupEvaluation(out.EvaluationSamples)
	out.Config = mergeConfig(name, group)
	return out
}

// dedupTraining keeps the first sample for each step. The slices were
// stable-sorted, so "first" means the earliest contributing file.
func dedupTraining(samples []model.TrainingSample) []model.TrainingSample {
	seen := make(map[int]bool, len(samples))
	kept := samples[:0]
	for _, s := range samples {
		if seen[s.Step] {
			continue
		}
		seen[s.Step] = true
		kept = append(kept, s)
	}
	return kept
}

// dedupEvaluation keeps the first sample per (step, metric) pair.
func dedupEvaluation(samples []model.EvaluationSample) []model.EvaluationSample {
	type key struct {
		step   int
		metric string
	}
	seen := make(map[key]bool, len(samples))
	kept := samples[:0]
	for _, s := range samples {
		k := key{s.Step, s.Metric}
		if seen[k] {
			continue
		}
		seen[k] = true
		kept = append(kept, s)
	}
	return kept
}

// mergeConfig takes the config from the first file with a non-empty
// mapping. A continuation that disagrees on a field keeps the first
// value, but the divergence is worth surfacing: a changed config
// mid-run usually means the run is not what its name claims.
func mergeConfig(name string, group []*model.Run) model.RunConfig {
	var cfg model.RunConfig
	for _, r := range group {
		if len(r.Config) == 0 {
			continue
		}
		if cfg == nil {
			cfg = r.Config
			continue
		}
		for k, v := range r.Config {
			if prev, ok := cfg[k]; ok && prev != v {
				log.Printf("Run %s: config %q differs across continuations (%s kept, %s ignored)",
					name, k, prev, v)
			}
		}
	}
	if cfg == nil {
		cfg = make(model.RunConfig)
	}
	return cfg
}
