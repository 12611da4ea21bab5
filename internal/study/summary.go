package study

import (
	"math"
	"sort"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/distribution"
	"github.com/GoSim-25-26J-441/hpo-core/internal/storage"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates a study's trials
type Summary struct {
	Name      string
	Trials    int
	Running   int
	Completed int
	Failed    int

	BestTrialID int
	BestValue   float64
	HasBest     bool

	// Statistics over finite completed values
	Mean   float64
	StdDev float64
	Median float64
	Min    float64
	Max    float64
}

// Summary computes trial counts and value statistics
func (s *Study) Summary() Summary {
	trials := s.storage.GetAllTrials()
	sum := Summary{Name: s.name, Trials: len(trials)}

	values := make([]float64, 0, len(trials))
	for _, t := range trials {
		switch t.State {
		case storage.StateRunning:
			sum.Running++
		case storage.StateCompleted:
			sum.Completed++
			if !math.IsNaN(t.Value) && !math.IsInf(t.Value, 0) {
				values = append(values, t.Value)
			}
		case storage.StateFailed:
			sum.Failed++
		}
	}

	if best, ok := s.storage.GetBestTrial(); ok {
		sum.HasBest = true
		sum.BestTrialID = best.ID
		sum.BestValue = best.Value
	}

	if len(values) == 0 {
		return sum
	}
	sort.Float64s(values)
	sum.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		sum.StdDev = stat.StdDev(values, nil)
	}
	sum.Median = stat.Quantile(0.5, stat.Empirical, values, nil)
	sum.Min = values[0]
	sum.Max = values[len(values)-1]
	return sum
}

// ParamsToMap flattens user-facing values to int64, float64 or string for
// logging and JSON encoding.
func ParamsToMap(params map[string]distribution.Value) map[string]any {
	out := make(map[string]any, len(params))
	for name, v := range params {
		out[name] = v.Interface()
	}
	return out
}
