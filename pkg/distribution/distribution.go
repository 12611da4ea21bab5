// Package distribution defines the search spaces a trial can sample from and
// the mapping between a parameter's user-facing value and the single float64
// representation used by the sampler and the trial store.
package distribution

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Type names a distribution variant. The names double as the YAML/JSON "type" field.
type Type string

const (
	TypeInt         Type = "int"
	TypeFloat       Type = "float"
	TypeLogFloat    Type = "log_float"
	TypeCategorical Type = "categorical"
)

// maxExactInt is the largest magnitude a float64 holds without losing integer precision
const maxExactInt = 1 << 53

// Distribution is implemented only by IntUniform, Uniform, LogUniform and Categorical.
type Distribution interface {
	// Type returns the variant name
	Type() Type
	// Validate checks bounds or choices
	Validate() error
	// ToInternal converts a user-facing value to the internal representation
	ToInternal(v Value) (float64, error)
	// ToExternal converts an internal representation back to the user-facing value
	ToExternal(internal float64) (Value, error)
	// Contains reports whether an internal representation lies inside the space
	Contains(internal float64) bool
	// Equal compares parameter spaces by value
	Equal(other Distribution) bool
	String() string

	sealed()
}

// IntUniform is an integer range with inclusive bounds
type IntUniform struct {
	Low  int64
	High int64
}

// Uniform is a continuous range with inclusive bounds
type Uniform struct {
	Low  float64
	High float64
}

// LogUniform is a continuous range sampled in log space. Low must be positive.
type LogUniform struct {
	Low  float64
	High float64
}

// Categorical is an ordered set of labels
type Categorical struct {
	Choices []string
}

// NewCategorical copies choices so later mutation of the caller's slice
// cannot change the distribution.
func NewCategorical(choices []string) Categorical {
	return Categorical{Choices: slices.Clone(choices)}
}

func (IntUniform) sealed()  {}
func (Uniform) sealed()     {}
func (LogUniform) sealed()  {}
func (Categorical) sealed() {}

func (IntUniform) Type() Type  { return TypeInt }
func (Uniform) Type() Type     { return TypeFloat }
func (LogUniform) Type() Type  { return TypeLogFloat }
func (Categorical) Type() Type { return TypeCategorical }

func (d IntUniform) String() string {
	return fmt.Sprintf("IntUniform[%d, %d]", d.Low, d.High)
}

func (d Uniform) String() string {
	return fmt.Sprintf("Uniform[%g, %g]", d.Low, d.High)
}

func (d LogUniform) String() string {
	return fmt.Sprintf("LogUniform[%g, %g]", d.Low, d.High)
}

func (d Categorical) String() string {
	return fmt.Sprintf("Categorical{%s}", strings.Join(d.Choices, ", "))
}

// Validate checks low <= high and that both bounds survive the float64
// internal representation exactly
func (d IntUniform) Validate() error {
	if d.Low > maxExactInt || d.Low < -maxExactInt || d.High > maxExactInt || d.High < -maxExactInt {
		return configError(d, "bounds [%d, %d] exceed exact integer range", d.Low, d.High)
	}
	if d.Low > d.High {
		return configError(d, "low %d must not exceed high %d", d.Low, d.High)
	}
	return nil
}

// Validate checks that the bounds are finite and ordered
func (d Uniform) Validate() error {
	if err := validateFloatBounds(d, d.Low, d.High); err != nil {
		return err
	}
	return nil
}

// Validate checks that the bounds are finite, ordered and low is positive
func (d LogUniform) Validate() error {
	if err := validateFloatBounds(d, d.Low, d.High); err != nil {
		return err
	}
	if d.Low <= 0 {
		return configError(d, "low %g must be positive", d.Low)
	}
	return nil
}

// Validate checks that there is at least one choice. Choices are identified by
// position, so repeated labels are allowed; a repeated label maps to its first index.
func (d Categorical) Validate() error {
	if len(d.Choices) == 0 {
		return configError(d, "choices must not be empty")
	}
	return nil
}

func validateFloatBounds(d Distribution, low, high float64) error {
	if math.IsNaN(low) || math.IsNaN(high) || math.IsInf(low, 0) || math.IsInf(high, 0) {
		return configError(d, "bounds must be finite")
	}
	if low > high {
		return configError(d, "low %g must not exceed high %g", low, high)
	}
	return nil
}

// ToInternalInt widens n to float64
func (d IntUniform) ToInternalInt(n int64) float64 {
	return float64(n)
}

// ToExternalInt truncates toward zero
func (d IntUniform) ToExternalInt(internal float64) int64 {
	return int64(internal)
}

func (d IntUniform) ToInternal(v Value) (float64, error) {
	n, ok := v.Int()
	if !ok {
		return 0, kindError(d, KindInt, v)
	}
	if n > maxExactInt || n < -maxExactInt {
		return 0, configError(d, "value %d cannot be represented exactly", n)
	}
	return d.ToInternalInt(n), nil
}

func (d IntUniform) ToExternal(internal float64) (Value, error) {
	if math.IsNaN(internal) || math.IsInf(internal, 0) {
		return Value{}, configError(d, "internal value %g is not finite", internal)
	}
	return IntValue(d.ToExternalInt(internal)), nil
}

func (d IntUniform) Contains(internal float64) bool {
	if internal != math.Trunc(internal) {
		return false
	}
	return float64(d.Low) <= internal && internal <= float64(d.High)
}

func (d IntUniform) Equal(other Distribution) bool {
	o, ok := other.(IntUniform)
	return ok && o == d
}

func (d Uniform) ToInternal(v Value) (float64, error) {
	f, ok := v.Float()
	if !ok {
		return 0, kindError(d, KindFloat, v)
	}
	return f, nil
}

func (d Uniform) ToExternal(internal float64) (Value, error) {
	return FloatValue(internal), nil
}

func (d Uniform) Contains(internal float64) bool {
	return d.Low <= internal && internal <= d.High
}

func (d Uniform) Equal(other Distribution) bool {
	o, ok := other.(Uniform)
	return ok && o == d
}

func (d LogUniform) ToInternal(v Value) (float64, error) {
	f, ok := v.Float()
	if !ok {
		return 0, kindError(d, KindFloat, v)
	}
	return f, nil
}

func (d LogUniform) ToExternal(internal float64) (Value, error) {
	return FloatValue(internal), nil
}

func (d LogUniform) Contains(internal float64) bool {
	return d.Low <= internal && internal <= d.High
}

func (d LogUniform) Equal(other Distribution) bool {
	o, ok := other.(LogUniform)
	return ok && o == d
}

// IndexOf returns the position of label in Choices
func (d Categorical) IndexOf(label string) (int, bool) {
	i := slices.Index(d.Choices, label)
	return i, i >= 0
}

// ToInternal maps a label to its index. A label outside Choices is an error
// wrapping ErrUnknownChoice rather than a silent fallback to index 0.
func (d Categorical) ToInternal(v Value) (float64, error) {
	label, ok := v.Str()
	if !ok {
		return 0, kindError(d, KindString, v)
	}
	i, ok := d.IndexOf(label)
	if !ok {
		return 0, &ConfigurationError{
			Distribution: d.String(),
			Reason:       fmt.Sprintf("label %q is not a choice", label),
			Err:          ErrUnknownChoice,
		}
	}
	return float64(i), nil
}

func (d Categorical) ToExternal(internal float64) (Value, error) {
	if !d.Contains(internal) {
		return Value{}, configError(d, "index %g out of range", internal)
	}
	return StringValue(d.Choices[int(internal)]), nil
}

func (d Categorical) Contains(internal float64) bool {
	if internal != math.Trunc(internal) {
		return false
	}
	return 0 <= internal && internal < float64(len(d.Choices))
}

func (d Categorical) Equal(other Distribution) bool {
	o, ok := other.(Categorical)
	return ok && slices.Equal(o.Choices, d.Choices)
}

func kindError(d Distribution, want ValueKind, got Value) *ConfigurationError {
	return configError(d, "expected %s value, got %s", want, got.Kind())
}
