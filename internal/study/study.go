// Package study drives an objective over repeated trials. Each trial is
// created in storage, handed to the objective through a Trial handle, and
// sealed as completed or failed.
package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/distribution"
	"github.com/GoSim-25-26J-441/hpo-core/internal/sampler"
	"github.com/GoSim-25-26J-441/hpo-core/internal/storage"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/logger"
)

var (
	ErrNoCompletedTrials = errors.New("no completed trials")
	ErrObjectivePanic    = errors.New("objective panicked")
)

// Objective evaluates one trial. Lower values are better.
// Returning an error marks the trial failed.
type Objective func(ctx context.Context, t *Trial) (float64, error)

// Callback runs after every finished trial
type Callback func(s *Study, t storage.FrozenTrial)

// Study ties a storage and a sampler together and runs the optimize loop
type Study struct {
	name        string
	storage     storage.Storage
	sampler     sampler.Sampler
	logger      *slog.Logger
	callbacks   []Callback
	convergence ConvergenceStrategy

	mu         sync.RWMutex
	stopReason string
}

// New creates a study that logs through logger.Default until WithLogger is called.
func New(name string, store storage.Storage, smp sampler.Sampler) *Study {
	return &Study{
		name:    name,
		storage: store,
		sampler: smp,
		logger:  logger.With("study", name),
	}
}

// WithLogger sets the logger used for trial progress
func (s *Study) WithLogger(l *slog.Logger) *Study {
	if l != nil {
		s.logger = l.With("study", s.name)
	}
	return s
}

// WithCallback adds a callback run after each finished trial
func (s *Study) WithCallback(cb Callback) *Study {
	s.callbacks = append(s.callbacks, cb)
	return s
}

// WithConvergence sets an early-stop strategy checked after each completed trial
func (s *Study) WithConvergence(strategy ConvergenceStrategy) *Study {
	s.convergence = strategy
	return s
}

// Name returns the study name
func (s *Study) Name() string {
	return s.name
}

// Storage returns the study's trial store
func (s *Study) Storage() storage.Storage {
	return s.storage
}

// StopReason returns why the last Optimize call stopped before running all trials
func (s *Study) StopReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stopReason
}

// Optimize runs nTrials trials one after another.
//
// An objective error or panic marks its trial failed and the loop continues.
// A configuration error (bad bounds or choices) also fails the trial but stops
// the loop and is returned, since retrying cannot fix it. A cancelled context
// stops the loop and returns ctx.Err().
func (s *Study) Optimize(ctx context.Context, objective Objective, nTrials int) error {
	if objective == nil {
		return fmt.Errorf("objective is required")
	}
	s.setStopReason("")

	for i := 0; i < nTrials; i++ {
		if err := ctx.Err(); err != nil {
			s.setStopReason("cancelled")
			return err
		}

		id := s.storage.CreateTrial()
		if err := s.runTrial(ctx, objective, id); err != nil {
			return err
		}

		if s.convergence != nil {
			if converged, reason := s.convergence.CheckConvergence(s.completedValues()); converged {
				s.setStopReason(reason)
				s.logger.Info("study converged", "strategy", s.convergence.Name(), "reason", reason, "trials", i+1)
				return nil
			}
		}
	}
	return nil
}

func (s *Study) runTrial(ctx context.Context, objective Objective, id int) error {
	trial := &Trial{study: s, id: id}
	value, objErr := invoke(ctx, objective, trial)

	if objErr == nil {
		objErr = s.complete(id, value)
	}
	if objErr != nil {
		if err := s.storage.FailTrial(id, objErr.Error()); err != nil {
			s.logger.Warn("failed to mark trial failed", "trial_id", id, "error", err)
		}
		s.logger.Warn("trial failed", "trial_id", id, "error", objErr)
	}

	s.finished(id)

	switch {
	case objErr == nil:
		return nil
	case errors.Is(objErr, distribution.ErrConfiguration):
		s.setStopReason("configuration error")
		return fmt.Errorf("trial %d: %w", id, objErr)
	case ctx.Err() != nil:
		s.setStopReason("cancelled")
		return ctx.Err()
	default:
		return nil
	}
}

// complete writes the value and then the state
func (s *Study) complete(id int, value float64) error {
	if err := s.storage.SetTrialValue(id, value); err != nil {
		return err
	}
	return s.storage.SetTrialState(id, storage.StateCompleted)
}

func (s *Study) finished(id int) {
	ft, err := s.storage.GetTrial(id)
	if err != nil {
		s.logger.Warn("finished trial not readable", "trial_id", id, "error", err)
		return
	}
	if ft.State == storage.StateCompleted {
		attrs := []any{"trial_id", id, "value", ft.Value, "duration", ft.Duration()}
		if params, err := ft.ExternalParams(); err == nil {
			attrs = append(attrs, "params", ParamsToMap(params))
		}
		if best, ok := s.storage.GetBestTrial(); ok {
			attrs = append(attrs, "best_trial_id", best.ID, "best_value", best.Value)
		}
		s.logger.Info("trial completed", attrs...)
	}
	for _, cb := range s.callbacks {
		cb(s, ft)
	}
}

func invoke(ctx context.Context, objective Objective, t *Trial) (value float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrObjectivePanic, r)
		}
	}()
	return objective(ctx, t)
}

func (s *Study) completedValues() []float64 {
	completed := s.storage.GetAllTrials(storage.StateCompleted)
	values := make([]float64, len(completed))
	for i, t := range completed {
		values[i] = t.Value
	}
	return values
}

func (s *Study) setStopReason(reason string) {
	s.mu.Lock()
	s.stopReason = reason
	s.mu.Unlock()
}

// BestTrial returns the completed trial with the lowest finite value
func (s *Study) BestTrial() (storage.FrozenTrial, bool) {
	return s.storage.GetBestTrial()
}

// BestValue returns the best objective value
func (s *Study) BestValue() (float64, error) {
	best, ok := s.storage.GetBestTrial()
	if !ok {
		return 0, ErrNoCompletedTrials
	}
	return best.Value, nil
}

// BestParams returns the user-facing parameters of the best trial
func (s *Study) BestParams() (map[string]distribution.Value, error) {
	best, ok := s.storage.GetBestTrial()
	if !ok {
		return nil, ErrNoCompletedTrials
	}
	return best.ExternalParams()
}

// Trials returns copies of all trials, optionally filtered by state
func (s *Study) Trials(states ...storage.State) []storage.FrozenTrial {
	return s.storage.GetAllTrials(states...)
}
