package storage

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/distribution"
)

// State is a trial lifecycle state
type State int

const (
	StateRunning State = iota
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsFinished reports whether s is terminal
func (s State) IsFinished() bool {
	return s == StateCompleted || s == StateFailed
}

// ParseState parses the names returned by State.String, ignoring case
func ParseState(name string) (State, bool) {
	switch strings.ToLower(name) {
	case "running":
		return StateRunning, true
	case "completed":
		return StateCompleted, true
	case "failed":
		return StateFailed, true
	default:
		return 0, false
	}
}

// FrozenTrial is a snapshot of one trial record. Values returned by a Storage
// are copies; changing them does not affect the stored record.
type FrozenTrial struct {
	ID            int
	State         State
	Value         float64
	Params        map[string]float64
	Distributions map[string]distribution.Distribution
	StartedAt     time.Time
	CompletedAt   time.Time
	FailReason    string
}

// ExternalParams converts every internal value back through its recorded distribution
func (t FrozenTrial) ExternalParams() (map[string]distribution.Value, error) {
	out := make(map[string]distribution.Value, len(t.Params))
	for name, internal := range t.Params {
		d, ok := t.Distributions[name]
		if !ok {
			return nil, fmt.Errorf("trial %d: no distribution recorded for %q", t.ID, name)
		}
		v, err := d.ToExternal(internal)
		if err != nil {
			return nil, fmt.Errorf("trial %d: parameter %q: %w", t.ID, name, err)
		}
		out[name] = v
	}
	return out, nil
}

// Duration returns the wall time between start and completion, or zero while running
func (t FrozenTrial) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return 0
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

// clone copies the maps; distributions are immutable values and are shared
func (t *FrozenTrial) clone() FrozenTrial {
	out := *t
	out.Params = maps.Clone(t.Params)
	out.Distributions = maps.Clone(t.Distributions)
	return out
}
