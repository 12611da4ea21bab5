// Package objective provides named benchmark objectives whose search space comes
// from a study configuration.
package objective

import (
	"context"
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/distribution"
	"github.com/GoSim-25-26J-441/hpo-core/internal/study"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/config"
)

// Function scores the numeric parameters of a trial.
// Lower scores are better.
type Function interface {
	// Evaluate computes the score from numeric parameter values in config order.
	Evaluate(x []float64) (float64, error)

	// Name returns the name of the objective function.
	Name() string

	// MinDims is the number of numeric parameters the function needs.
	MinDims() int
}

// Type represents the name of a benchmark objective
type Type string

const (
	// TypeQuadratic is (x-3)^2 + (y-5)^2 over the first two numeric params
	TypeQuadratic Type = "quadratic"
	// TypeSphere is the sum of squares
	TypeSphere Type = "sphere"
	// TypeRosenbrock is the Rosenbrock valley
	TypeRosenbrock Type = "rosenbrock"
	// TypeAbs is the sum of absolute values
	TypeAbs Type = "abs"
)

// Names lists the registered objectives
func Names() []string {
	return []string{string(TypeQuadratic), string(TypeSphere), string(TypeRosenbrock), string(TypeAbs)}
}

// NewFunction creates a benchmark function from a type string
func NewFunction(name string) (Function, error) {
	switch Type(name) {
	case TypeQuadratic:
		return &QuadraticFunction{}, nil
	case TypeSphere:
		return &SphereFunction{}, nil
	case TypeRosenbrock:
		return &RosenbrockFunction{}, nil
	case TypeAbs:
		return &AbsFunction{}, nil
	default:
		return nil, &UnknownObjectiveError{ObjectiveType: name}
	}
}

// New builds a study objective that suggests every configured param and scores the
// numeric ones with the named function. Categorical params add their configured cost.
func New(name string, params []config.Param) (study.Objective, error) {
	fn, err := NewFunction(name)
	if err != nil {
		return nil, err
	}

	dists := make([]distribution.Distribution, len(params))
	numeric := 0
	for i, p := range params {
		d, err := p.Distribution()
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", p.Name, err)
		}
		dists[i] = d
		if d.Type() != distribution.TypeCategorical {
			numeric++
		}
	}
	if numeric < fn.MinDims() {
		return nil, &InvalidParamsError{
			Objective: fn.Name(),
			Reason:    fmt.Sprintf("needs %d numeric params, got %d", fn.MinDims(), numeric),
		}
	}

	return func(ctx context.Context, t *study.Trial) (float64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		x := make([]float64, 0, numeric)
		cost := 0.0
		for i, p := range params {
			v, err := t.Suggest(p.Name, dists[i])
			if err != nil {
				return 0, err
			}
			switch v.Kind() {
			case distribution.KindInt:
				n, _ := v.Int()
				x = append(x, float64(n))
			case distribution.KindFloat:
				f, _ := v.Float()
				x = append(x, f)
			case distribution.KindString:
				label, _ := v.Str()
				cost += p.Costs[label]
			}
		}
		score, err := fn.Evaluate(x)
		if err != nil {
			return 0, err
		}
		return score + cost, nil
	}, nil
}

// QuadraticFunction has its minimum 0 at (3, 5)
type QuadraticFunction struct{}

func (f *QuadraticFunction) Name() string {
	return string(TypeQuadratic)
}

func (f *QuadraticFunction) MinDims() int {
	return 2
}

func (f *QuadraticFunction) Evaluate(x []float64) (float64, error) {
	if len(x) < 2 {
		return 0, &InvalidParamsError{Objective: f.Name(), Reason: "needs x and y"}
	}
	return (x[0]-3)*(x[0]-3) + (x[1]-5)*(x[1]-5), nil
}

// SphereFunction has its minimum 0 at the origin
type SphereFunction struct{}

func (f *SphereFunction) Name() string {
	return string(TypeSphere)
}

func (f *SphereFunction) MinDims() int {
	return 1
}

func (f *SphereFunction) Evaluate(x []float64) (float64, error) {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

// RosenbrockFunction has its minimum 0 at (1, 1, ..., 1)
type RosenbrockFunction struct{}

func (f *RosenbrockFunction) Name() string {
	return string(TypeRosenbrock)
}

func (f *RosenbrockFunction) MinDims() int {
	return 2
}

func (f *RosenbrockFunction) Evaluate(x []float64) (float64, error) {
	if len(x) < 2 {
		return 0, &InvalidParamsError{Objective: f.Name(), Reason: "needs at least two dimensions"}
	}
	sum := 0.0
	for i := 0; i < len(x)-1; i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum, nil
}

// AbsFunction has its minimum 0 at the origin
type AbsFunction struct{}

func (f *AbsFunction) Name() string {
	return string(TypeAbs)
}

func (f *AbsFunction) MinDims() int {
	return 1
}

func (f *AbsFunction) Evaluate(x []float64) (float64, error) {
	sum := 0.0
	for _, v := range x {
		sum += math.Abs(v)
	}
	return sum, nil
}

// UnknownObjectiveError indicates an unknown objective type
type UnknownObjectiveError struct {
	ObjectiveType string
}

func (e *UnknownObjectiveError) Error() string {
	return "unknown objective type: " + e.ObjectiveType
}

// InvalidParamsError indicates a search space the objective cannot score
type InvalidParamsError struct {
	Objective string
	Reason    string
}

func (e *InvalidParamsError) Error() string {
	return "invalid params for " + e.Objective + ": " + e.Reason
}
