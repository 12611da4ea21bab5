// Package storage holds trial records and is the only writer of their state.
// Every mutation checks that the target trial is still running, so a finished
// trial can never change.
package storage

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/distribution"
)

var (
	ErrNotFound        = errors.New("trial not found")
	ErrAlreadyFinished = errors.New("trial is already finished")
)

// Storage is the trial record store used by a study
type Storage interface {
	CreateTrial() int
	GetTrial(id int) (FrozenTrial, error)
	GetAllTrials(states ...State) []FrozenTrial
	GetBestTrial() (FrozenTrial, bool)
	NumTrials() int
	SetTrialValue(id int, value float64) error
	SetTrialState(id int, state State) error
	SetTrialParam(id int, name string, d distribution.Distribution, internal float64) error
	FailTrial(id int, reason string) error
}

// InMemoryStorage keeps trials in an append-only slice; a trial's ID is its index.
type InMemoryStorage struct {
	mu     sync.RWMutex
	trials []*FrozenTrial
	now    func() time.Time
}

// NewInMemoryStorage creates an empty store
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CreateTrial appends a running trial and returns its ID
func (s *InMemoryStorage) CreateTrial() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := len(s.trials)
	s.trials = append(s.trials, &FrozenTrial{
		ID:            id,
		State:         StateRunning,
		Value:         0,
		Params:        make(map[string]float64),
		Distributions: make(map[string]distribution.Distribution),
		StartedAt:     s.now(),
	})
	return id
}

// GetTrial returns a copy of the trial
func (s *InMemoryStorage) GetTrial(id int) (FrozenTrial, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.lookup(id)
	if err != nil {
		return FrozenTrial{}, err
	}
	return t.clone(), nil
}

// GetAllTrials returns copies of all trials in ID order, optionally filtered by state
func (s *InMemoryStorage) GetAllTrials(states ...State) []FrozenTrial {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]FrozenTrial, 0, len(s.trials))
	for _, t := range s.trials {
		if len(states) > 0 && !slices.Contains(states, t.State) {
			continue
		}
		out = append(out, t.clone())
	}
	return out
}

// GetBestTrial returns the completed trial with the lowest finite value.
// Ties go to the lowest ID.
func (s *InMemoryStorage) GetBestTrial() (FrozenTrial, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *FrozenTrial
	for _, t := range s.trials {
		if t.State != StateCompleted || math.IsNaN(t.Value) || math.IsInf(t.Value, 0) {
			continue
		}
		// strict comparison keeps the earliest trial on ties
		if best == nil || t.Value < best.Value {
			best = t
		}
	}
	if best == nil {
		return FrozenTrial{}, false
	}
	return best.clone(), true
}

// NumTrials returns the number of trials ever created
func (s *InMemoryStorage) NumTrials() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trials)
}

// SetTrialValue records the objective value of a running trial
func (s *InMemoryStorage) SetTrialValue(id int, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupRunning(id)
	if err != nil {
		return err
	}
	t.Value = value
	return nil
}

// SetTrialState moves a running trial to state. Moving to StateFailed also
// replaces the value with NaN so a failed trial never carries a score.
func (s *InMemoryStorage) SetTrialState(id int, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupRunning(id)
	if err != nil {
		return err
	}
	s.transition(t, state)
	return nil
}

// FailTrial marks a running trial failed and records why
func (s *InMemoryStorage) FailTrial(id int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupRunning(id)
	if err != nil {
		return err
	}
	s.transition(t, StateFailed)
	t.FailReason = reason
	return nil
}

// SetTrialParam records a parameter of a running trial. A second call with the
// same name overwrites the first.
func (s *InMemoryStorage) SetTrialParam(id int, name string, d distribution.Distribution, internal float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookupRunning(id)
	if err != nil {
		return err
	}
	t.Params[name] = internal
	t.Distributions[name] = d
	return nil
}

func (s *InMemoryStorage) transition(t *FrozenTrial, state State) {
	t.State = state
	if state.IsFinished() {
		t.CompletedAt = s.now()
	}
	if state == StateFailed {
		t.Value = math.NaN()
	}
}

func (s *InMemoryStorage) lookup(id int) (*FrozenTrial, error) {
	if id < 0 || id >= len(s.trials) {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return s.trials[id], nil
}

func (s *InMemoryStorage) lookupRunning(id int) (*FrozenTrial, error) {
	t, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if t.State.IsFinished() {
		return nil, fmt.Errorf("%w: trial %d is %s", ErrAlreadyFinished, id, t.State)
	}
	return t, nil
}
