package hpod

import (
	"math"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/distribution"
	"github.com/GoSim-25-26J-441/hpo-core/internal/storage"
	"github.com/GoSim-25-26J-441/hpo-core/internal/study"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/utils"
)

// finiteOrNil maps NaN and ±Inf to nil; JSON has no encoding for them
func finiteOrNil(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func convertStudyToJSON(rec StudyRecord) map[string]any {
	out := map[string]any{
		"id":                 rec.ID,
		"status":             rec.Status.String(),
		"created_at_unix_ms": utils.UnixMs(rec.CreatedAt),
		"started_at_unix_ms": utils.UnixMs(rec.StartedAt),
		"ended_at_unix_ms":   utils.UnixMs(rec.EndedAt),
		"error":              rec.Error,
		"stop_reason":        rec.StopReason,
	}
	if rec.Config != nil {
		out["name"] = rec.Config.Name
		out["objective"] = rec.Config.Objective
		out["n_trials"] = rec.Config.Trials
	}
	if rec.Study != nil {
		sum := rec.Study.Summary()
		out["summary"] = convertSummaryToJSON(sum)
	}
	return out
}

func convertSummaryToJSON(sum study.Summary) map[string]any {
	out := map[string]any{
		"trials":    sum.Trials,
		"running":   sum.Running,
		"completed": sum.Completed,
		"failed":    sum.Failed,
	}
	if sum.HasBest {
		out["best_trial_id"] = sum.BestTrialID
		out["best_value"] = finiteOrNil(sum.BestValue)
		out["mean"] = finiteOrNil(sum.Mean)
		out["std_dev"] = finiteOrNil(sum.StdDev)
		out["median"] = finiteOrNil(sum.Median)
		out["min"] = finiteOrNil(sum.Min)
		out["max"] = finiteOrNil(sum.Max)
	}
	return out
}

func convertTrialToJSON(t storage.FrozenTrial) map[string]any {
	out := map[string]any{
		"id":                   t.ID,
		"state":                t.State.String(),
		"value":                finiteOrNil(t.Value),
		"started_at_unix_ms":   utils.UnixMs(t.StartedAt),
		"completed_at_unix_ms": utils.UnixMs(t.CompletedAt),
		"duration_ms":          utils.TimeToMs(t.Duration()),
	}
	if t.FailReason != "" {
		out["fail_reason"] = t.FailReason
	}

	if params, err := t.ExternalParams(); err == nil {
		out["params"] = study.ParamsToMap(params)
	} else {
		out["params_error"] = err.Error()
	}

	dists := make(map[string]any, len(t.Distributions))
	for name, d := range t.Distributions {
		dists[name] = convertDistributionToJSON(d)
	}
	out["distributions"] = dists
	return out
}

func convertDistributionToJSON(d distribution.Distribution) map[string]any {
	spec := distribution.ToSpec(d)
	out := map[string]any{"type": string(spec.Type)}
	if spec.Type == distribution.TypeCategorical {
		choices := make([]any, len(spec.Choices))
		for i, c := range spec.Choices {
			choices[i] = c
		}
		out["choices"] = choices
	} else {
		out["low"] = spec.Low
		out["high"] = spec.High
	}
	return out
}
