package study

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/config"
)

// ConvergenceStrategy decides whether a study should stop early. It sees the
// objective values of completed trials in completion order.
type ConvergenceStrategy interface {
	// CheckConvergence checks if optimization has converged based on history
	CheckConvergence(values []float64) (bool, string)
	// Name returns the name of the convergence strategy
	Name() string
}

// ConvergenceConfig holds configuration for convergence detection
type ConvergenceConfig struct {
	// Patience is the number of completed trials without a new best before stopping
	Patience int
	// MinTrials is the minimum number of completed trials before convergence can be detected
	MinTrials int
	// PlateauTrials is the window over which the best value must stay within Tolerance
	PlateauTrials int
	// Tolerance is the absolute change in best value considered no change
	Tolerance float64
}

// DefaultConvergenceConfig returns a default convergence configuration
func DefaultConvergenceConfig() *ConvergenceConfig {
	return &ConvergenceConfig{
		Patience:      20,
		MinTrials:     5,
		PlateauTrials: 20,
		Tolerance:     1e-9,
	}
}

// runningBest returns the best value seen after each completed trial.
// Non-finite values never become the best.
func runningBest(values []float64) []float64 {
	out := make([]float64, len(values))
	best := math.Inf(1)
	for i, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v < best {
			best = v
		}
		out[i] = best
	}
	return out
}

// NoImprovementStrategy stops when no new best has appeared for Patience trials
type NoImprovementStrategy struct {
	config *ConvergenceConfig
}

// NewNoImprovementStrategy creates a new no-improvement convergence strategy
func NewNoImprovementStrategy(config *ConvergenceConfig) *NoImprovementStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &NoImprovementStrategy{config: config}
}

func (s *NoImprovementStrategy) Name() string {
	return "no_improvement"
}

func (s *NoImprovementStrategy) CheckConvergence(values []float64) (bool, string) {
	if len(values) < s.config.MinTrials || s.config.Patience <= 0 {
		return false, ""
	}

	bestIndex := -1
	best := math.Inf(1)
	for i, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v < best {
			best = v
			bestIndex = i
		}
	}
	if bestIndex < 0 {
		return false, ""
	}

	since := len(values) - 1 - bestIndex
	if since >= s.config.Patience {
		return true, fmt.Sprintf("no improvement for %d trials (best %g at completed trial %d)", since, best, bestIndex)
	}
	return false, ""
}

// PlateauStrategy stops when the best value moved less than Tolerance over the last PlateauTrials trials
type PlateauStrategy struct {
	config *ConvergenceConfig
}

// NewPlateauStrategy creates a new plateau convergence strategy
func NewPlateauStrategy(config *ConvergenceConfig) *PlateauStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &PlateauStrategy{config: config}
}

func (s *PlateauStrategy) Name() string {
	return "plateau"
}

func (s *PlateauStrategy) CheckConvergence(values []float64) (bool, string) {
	window := s.config.PlateauTrials
	if len(values) < s.config.MinTrials || window <= 1 || len(values) < window {
		return false, ""
	}

	best := runningBest(values)
	first := best[len(best)-window]
	last := best[len(best)-1]
	if math.IsInf(first, 1) {
		return false, ""
	}

	change := first - last
	if change <= s.config.Tolerance {
		return true, fmt.Sprintf("best value plateaued for %d trials (change: %.6g)", window, change)
	}
	return false, ""
}

// TargetStrategy stops as soon as a completed trial reaches Target
type TargetStrategy struct {
	Target float64
}

func (s *TargetStrategy) Name() string {
	return "target"
}

func (s *TargetStrategy) CheckConvergence(values []float64) (bool, string) {
	if len(values) == 0 {
		return false, ""
	}
	last := values[len(values)-1]
	if !math.IsNaN(last) && last <= s.Target {
		return true, fmt.Sprintf("reached target %g (value %g)", s.Target, last)
	}
	return false, ""
}

// CombinedStrategy converges if any of its strategies does
type CombinedStrategy struct {
	strategies []ConvergenceStrategy
}

// NewCombinedStrategy combines the no-improvement and plateau strategies
func NewCombinedStrategy(config *ConvergenceConfig) *CombinedStrategy {
	if config == nil {
		config = DefaultConvergenceConfig()
	}
	return &CombinedStrategy{
		strategies: []ConvergenceStrategy{
			NewNoImprovementStrategy(config),
			NewPlateauStrategy(config),
		},
	}
}

func (s *CombinedStrategy) Name() string {
	return "combined"
}

func (s *CombinedStrategy) CheckConvergence(values []float64) (bool, string) {
	for _, strategy := range s.strategies {
		converged, reason := strategy.CheckConvergence(values)
		if converged {
			return true, fmt.Sprintf("%s: %s", strategy.Name(), reason)
		}
	}
	return false, ""
}

// AddStrategy adds a custom strategy to the combined strategy
func (s *CombinedStrategy) AddStrategy(strategy ConvergenceStrategy) {
	s.strategies = append(s.strategies, strategy)
}

// StrategyFromConfig builds the strategy described by a study file's convergence
// block. It returns nil when c is nil. Zero Patience or PlateauTrials disables
// that check.
func StrategyFromConfig(c *config.Convergence) ConvergenceStrategy {
	if c == nil {
		return nil
	}
	tolerance := c.Tolerance
	if tolerance == 0 {
		tolerance = DefaultConvergenceConfig().Tolerance
	}
	combined := NewCombinedStrategy(&ConvergenceConfig{
		Patience:      c.Patience,
		MinTrials:     c.MinTrials,
		PlateauTrials: c.PlateauTrials,
		Tolerance:     tolerance,
	})
	if c.Target != nil {
		combined.AddStrategy(&TargetStrategy{Target: *c.Target})
	}
	return combined
}
