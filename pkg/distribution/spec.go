package distribution

import (
	"fmt"
	"math"
	"slices"
)

// Spec is the serialisable description of a Distribution used by the config,
// HTTP and gRPC layers.
type Spec struct {
	Type    Type     `json:"type" yaml:"type"`
	Low     float64  `json:"low,omitempty" yaml:"low,omitempty"`
	High    float64  `json:"high,omitempty" yaml:"high,omitempty"`
	Choices []string `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// FromSpec builds and validates a Distribution
func FromSpec(s Spec) (Distribution, error) {
	var d Distribution
	switch s.Type {
	case TypeInt:
		if s.Low != math.Trunc(s.Low) || s.High != math.Trunc(s.High) {
			return nil, &ConfigurationError{
				Distribution: string(s.Type),
				Reason:       fmt.Sprintf("bounds [%g, %g] must be integers", s.Low, s.High),
			}
		}
		if math.Abs(s.Low) > maxExactInt || math.Abs(s.High) > maxExactInt {
			return nil, &ConfigurationError{
				Distribution: string(s.Type),
				Reason:       fmt.Sprintf("bounds [%g, %g] exceed exact integer range", s.Low, s.High),
			}
		}
		d = IntUniform{Low: int64(s.Low), High: int64(s.High)}
	case TypeFloat:
		d = Uniform{Low: s.Low, High: s.High}
	case TypeLogFloat:
		d = LogUniform{Low: s.Low, High: s.High}
	case TypeCategorical:
		d = NewCategorical(s.Choices)
	default:
		return nil, &ConfigurationError{
			Distribution: string(s.Type),
			Reason:       "unknown distribution type (must be int, float, log_float, or categorical)",
		}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// ToSpec describes d
func ToSpec(d Distribution) Spec {
	switch v := d.(type) {
	case IntUniform:
		return Spec{Type: TypeInt, Low: float64(v.Low), High: float64(v.High)}
	case Uniform:
		return Spec{Type: TypeFloat, Low: v.Low, High: v.High}
	case LogUniform:
		return Spec{Type: TypeLogFloat, Low: v.Low, High: v.High}
	case Categorical:
		return Spec{Type: TypeCategorical, Choices: slices.Clone(v.Choices)}
	default:
		return Spec{}
	}
}
