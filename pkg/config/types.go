package config

import (
	"github.com/GoSim-25-26J-441/hpo-core/pkg/distribution"
)

// Study represents a study definition loaded from YAML
type Study struct {
	Name        string       `yaml:"name"`
	Objective   string       `yaml:"objective"` // e.g., "quadratic", "sphere"
	Trials      int          `yaml:"trials"`
	Seed        int64        `yaml:"seed"`      // 0 = time seeded
	LogLevel    string       `yaml:"log_level"` // debug, info, warn, error
	Convergence *Convergence `yaml:"convergence,omitempty"`
	Params      []Param      `yaml:"params"`
}

// Convergence represents early-stop configuration
type Convergence struct {
	Patience      int      `yaml:"patience"`
	MinTrials     int      `yaml:"min_trials"`
	PlateauTrials int      `yaml:"plateau_trials"`
	Tolerance     float64  `yaml:"tolerance"`
	Target        *float64 `yaml:"target,omitempty"`
}

// Param represents one search-space dimension
type Param struct {
	Name    string             `yaml:"name"`
	Type    string             `yaml:"type"` // int, float, log_float, categorical
	Low     float64            `yaml:"low,omitempty"`
	High    float64            `yaml:"high,omitempty"`
	Choices []string           `yaml:"choices,omitempty"`
	Costs   map[string]float64 `yaml:"costs,omitempty"` // categorical only: added to the score
}

// Spec returns the distribution description of the parameter
func (p Param) Spec() distribution.Spec {
	return distribution.Spec{
		Type:    distribution.Type(p.Type),
		Low:     p.Low,
		High:    p.High,
		Choices: p.Choices,
	}
}

// Distribution builds and validates the parameter's distribution
func (p Param) Distribution() (distribution.Distribution, error) {
	return distribution.FromSpec(p.Spec())
}
