// Package sampler draws parameter values from a distribution using an
// injected uniform random source.
package sampler

import (
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/distribution"
)

// Source supplies uniform draws. Both bounds are inclusive.
type Source interface {
	UniformFloat64(low, high float64) float64
	UniformInt64(low, high int64) int64
}

// Sampler draws a user-facing value for a named parameter
type Sampler interface {
	Sample(name string, d distribution.Distribution) (distribution.Value, error)
}

// IndependentSampler draws every value independently of trial history
type IndependentSampler struct {
	src Source
}

// NewIndependentSampler creates a sampler over src
func NewIndependentSampler(src Source) *IndependentSampler {
	return &IndependentSampler{src: src}
}

// Sample validates d and draws one value from it. Invalid bounds or choices
// fail with a *distribution.ConfigurationError before any draw is made.
func (s *IndependentSampler) Sample(name string, d distribution.Distribution) (distribution.Value, error) {
	if d == nil {
		return distribution.Value{}, &distribution.ConfigurationError{
			Distribution: "<nil>",
			Reason:       fmt.Sprintf("no distribution for parameter %q", name),
		}
	}
	if err := d.Validate(); err != nil {
		return distribution.Value{}, fmt.Errorf("parameter %q: %w", name, err)
	}

	switch dist := d.(type) {
	case distribution.IntUniform:
		return distribution.IntValue(s.src.UniformInt64(dist.Low, dist.High)), nil
	case distribution.Uniform:
		v := s.src.UniformFloat64(dist.Low, dist.High)
		return distribution.FloatValue(clamp(v, dist.Low, dist.High)), nil
	case distribution.LogUniform:
		logLow := math.Log(dist.Low)
		logHigh := math.Log(dist.High)
		v := math.Exp(s.src.UniformFloat64(logLow, logHigh))
		// exp(log(x)) may round just outside the bounds
		return distribution.FloatValue(clamp(v, dist.Low, dist.High)), nil
	case distribution.Categorical:
		idx := s.src.UniformInt64(0, int64(len(dist.Choices)-1))
		return distribution.StringValue(dist.Choices[idx]), nil
	default:
		return distribution.Value{}, &distribution.ConfigurationError{
			Distribution: d.String(),
			Reason:       "unsupported distribution",
		}
	}
}

func clamp(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
