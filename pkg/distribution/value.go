package distribution

import (
	"fmt"
	"strconv"
)

// ValueKind identifies which field of a Value is populated
type ValueKind int

const (
	// KindInt is an integer parameter value
	KindInt ValueKind = iota + 1
	// KindFloat is a floating-point parameter value
	KindFloat
	// KindString is a categorical label
	KindString
)

// String returns the kind name
func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is the user-facing representation of a parameter value.
// Exactly one of the typed fields is meaningful, selected by Kind.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
}

// IntValue wraps an integer
func IntValue(v int64) Value {
	return Value{kind: KindInt, i: v}
}

// FloatValue wraps a float
func FloatValue(v float64) Value {
	return Value{kind: KindFloat, f: v}
}

// StringValue wraps a categorical label
func StringValue(v string) Value {
	return Value{kind: KindString, s: v}
}

// Kind returns the value kind. The zero Value has kind 0.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Int returns the integer and whether the value holds one
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KindInt
}

// Float returns the float and whether the value holds one
func (v Value) Float() (float64, bool) {
	return v.f, v.kind == KindFloat
}

// Str returns the label and whether the value holds one
func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Interface returns the held value as int64, float64 or string.
// Used at the JSON/protobuf boundary only.
func (v Value) Interface() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

// String formats the value for logs and CLI output
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		return "<nil>"
	}
}

// GoString is used by %#v and in test failure output
func (v Value) GoString() string {
	return fmt.Sprintf("%s(%s)", v.kind, v.String())
}
