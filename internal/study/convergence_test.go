package study

import (
	"math"
	"strings"
	"testing"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/config"
)

func TestNoImprovementStrategy(t *testing.T) {
	config := &ConvergenceConfig{
		Patience:  3,
		MinTrials: 2,
	}
	strategy := NewNoImprovementStrategy(config)

	// No improvement for 4 trials
	converged, reason := strategy.CheckConvergence([]float64{100, 100, 100, 100, 100})
	if !converged {
		t.Fatalf("expected convergence, got false")
	}
	if reason == "" {
		t.Fatalf("expected convergence reason")
	}

	// Recent improvement
	converged, _ = strategy.CheckConvergence([]float64{100, 90, 90, 90})
	if converged {
		t.Fatalf("expected no convergence (recent improvement), got true")
	}

	// Too few trials
	converged, _ = strategy.CheckConvergence([]float64{1})
	if converged {
		t.Fatalf("expected no convergence below MinTrials")
	}
}

func TestNoImprovementIgnoresNonFinite(t *testing.T) {
	strategy := NewNoImprovementStrategy(&ConvergenceConfig{Patience: 2, MinTrials: 1})

	converged, _ := strategy.CheckConvergence([]float64{math.NaN(), math.NaN(), math.NaN()})
	if converged {
		t.Fatalf("expected no convergence when no value is finite")
	}

	converged, _ = strategy.CheckConvergence([]float64{5, math.Inf(-1), math.NaN()})
	if !converged {
		t.Fatalf("expected convergence: -Inf and NaN must not count as improvements")
	}
}

func TestPlateauStrategy(t *testing.T) {
	config := &ConvergenceConfig{
		PlateauTrials: 3,
		Tolerance:     0.01,
		MinTrials:     2,
	}
	strategy := NewPlateauStrategy(config)

	converged, reason := strategy.CheckConvergence([]float64{100.0, 100.01, 100.005, 100.002})
	if !converged {
		t.Fatalf("expected convergence (plateau), got false")
	}
	if reason == "" {
		t.Fatalf("expected convergence reason")
	}

	converged, _ = strategy.CheckConvergence([]float64{100.0, 90.0, 95.0, 85.0})
	if converged {
		t.Fatalf("expected no convergence (best still improving), got true")
	}

	converged, _ = strategy.CheckConvergence([]float64{100.0, 90.0})
	if converged {
		t.Fatalf("expected no convergence (window not filled), got true")
	}
}

func TestTargetStrategy(t *testing.T) {
	strategy := &TargetStrategy{Target: 0.5}

	if converged, _ := strategy.CheckConvergence(nil); converged {
		t.Fatalf("expected no convergence on empty history")
	}
	if converged, _ := strategy.CheckConvergence([]float64{3, 1}); converged {
		t.Fatalf("expected no convergence above target")
	}
	if converged, _ := strategy.CheckConvergence([]float64{3, 0.5}); !converged {
		t.Fatalf("expected convergence at target")
	}
	if converged, _ := strategy.CheckConvergence([]float64{math.NaN()}); converged {
		t.Fatalf("NaN must not reach the target")
	}
}

func TestCombinedStrategy(t *testing.T) {
	config := &ConvergenceConfig{
		Patience:      10,
		PlateauTrials: 3,
		Tolerance:     0.001,
		MinTrials:     2,
	}
	strategy := NewCombinedStrategy(config)

	converged, reason := strategy.CheckConvergence([]float64{50, 40, 45, 41, 42})
	if !converged {
		t.Fatalf("expected convergence from plateau strategy")
	}
	if !strings.HasPrefix(reason, "plateau:") {
		t.Fatalf("expected reason to name the plateau strategy, got %q", reason)
	}

	strategy.AddStrategy(&TargetStrategy{Target: 0})
	converged, reason = strategy.CheckConvergence([]float64{5, 3, 0})
	if !converged || !strings.HasPrefix(reason, "target:") {
		t.Fatalf("expected target convergence, got %v %q", converged, reason)
	}
}

func TestConvergenceStrategiesName(t *testing.T) {
	tests := []struct {
		strategy ConvergenceStrategy
		expected string
	}{
		{NewNoImprovementStrategy(nil), "no_improvement"},
		{NewPlateauStrategy(nil), "plateau"},
		{&TargetStrategy{}, "target"},
		{NewCombinedStrategy(nil), "combined"},
	}

	for _, tt := range tests {
		if tt.strategy.Name() != tt.expected {
			t.Errorf("expected name %s, got %s", tt.expected, tt.strategy.Name())
		}
	}
}

func TestDefaultConvergenceConfig(t *testing.T) {
	config := DefaultConvergenceConfig()
	if config.Patience <= 0 {
		t.Errorf("expected positive Patience")
	}
	if config.MinTrials <= 0 {
		t.Errorf("expected positive MinTrials")
	}
	if config.PlateauTrials <= 1 {
		t.Errorf("expected PlateauTrials > 1")
	}
}

func TestStrategyFromConfig(t *testing.T) {
	if StrategyFromConfig(nil) != nil {
		t.Fatalf("expected nil strategy for nil config")
	}

	strategy := StrategyFromConfig(&config.Convergence{Patience: 2, MinTrials: 1})
	if strategy == nil {
		t.Fatalf("expected strategy")
	}
	converged, reason := strategy.CheckConvergence([]float64{1, 2, 3})
	if !converged || !strings.HasPrefix(reason, "no_improvement:") {
		t.Fatalf("expected no-improvement convergence, got %v %q", converged, reason)
	}

	target := 0.5
	strategy = StrategyFromConfig(&config.Convergence{Target: &target})
	if converged, _ := strategy.CheckConvergence([]float64{3, 2}); converged {
		t.Fatalf("expected no convergence above target with patience disabled")
	}
	converged, reason = strategy.CheckConvergence([]float64{3, 0.25})
	if !converged || !strings.HasPrefix(reason, "target:") {
		t.Fatalf("expected target convergence, got %v %q", converged, reason)
	}
}
