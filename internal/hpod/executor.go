package hpod

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoSim-25-26J-441/hpo-core/internal/objective"
	"github.com/GoSim-25-26J-441/hpo-core/internal/sampler"
	"github.com/GoSim-25-26J-441/hpo-core/internal/storage"
	"github.com/GoSim-25-26J-441/hpo-core/internal/study"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/config"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/logger"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/utils"
)

// ErrInvalidConfig wraps study YAML and objective errors found at submission
var ErrInvalidConfig = errors.New("invalid study config")

// StudyExecutor manages asynchronous study execution and per-study cancellation.
type StudyExecutor struct {
	store    *StudyStore
	notifier *Notifier

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewStudyExecutor creates an executor. notifier may be nil.
func NewStudyExecutor(store *StudyStore, notifier *Notifier) *StudyExecutor {
	return &StudyExecutor{
		store:    store,
		notifier: notifier,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SubmitRequest is a study submission from HTTP or gRPC
type SubmitRequest struct {
	StudyID        string `json:"study_id,omitempty"`
	ConfigYAML     string `json:"config_yaml"`
	CallbackURL    string `json:"callback_url,omitempty"`
	CallbackSecret string `json:"callback_secret,omitempty"`
}

// Submit parses the study YAML, registers the study and starts it.
func (e *StudyExecutor) Submit(req SubmitRequest) (StudyRecord, error) {
	if req.CallbackURL != "" {
		if err := validateCallbackURL(req.CallbackURL); err != nil {
			return StudyRecord{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	cfg, err := config.ParseStudyYAMLString(req.ConfigYAML)
	if err != nil {
		return StudyRecord{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	// build once to reject unknown objectives before anything is stored
	if _, err := objective.New(cfg.Objective, cfg.Params); err != nil {
		return StudyRecord{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	studyID := req.StudyID
	if studyID == "" {
		studyID = utils.GenerateStudyID()
	}
	rec, err := e.store.Create(StudyRecord{
		ID:             studyID,
		Config:         cfg,
		ConfigYAML:     req.ConfigYAML,
		CallbackURL:    req.CallbackURL,
		CallbackSecret: req.CallbackSecret,
		Study:          newStudy(studyID, cfg),
	})
	if err != nil {
		return StudyRecord{}, err
	}
	logger.Info("study created", "study_id", rec.ID, "objective", cfg.Objective, "trials", cfg.Trials)

	return e.Start(rec.ID)
}

// newStudy wires a fresh in-memory store and a seeded independent sampler
func newStudy(studyID string, cfg *config.Study) *study.Study {
	smp := sampler.NewIndependentSampler(utils.NewRandSource(cfg.Seed))
	return study.New(cfg.Name, storage.NewInMemoryStorage(), smp).
		WithLogger(logger.With("study_id", studyID)).
		WithConvergence(study.StrategyFromConfig(cfg.Convergence))
}

// Start begins executing a pending study asynchronously.
// Returns the updated study state (RUNNING) or an error.
func (e *StudyExecutor) Start(studyID string) (StudyRecord, error) {
	if studyID == "" {
		return StudyRecord{}, ErrStudyIDMissing
	}

	rec, ok := e.store.Get(studyID)
	if !ok {
		return StudyRecord{}, fmt.Errorf("%w: %s", ErrStudyNotFound, studyID)
	}
	if rec.Status == StatusRunning {
		return rec, nil
	}

	updated, err := e.store.SetStatus(studyID, StatusRunning, "", "")
	if err != nil {
		return StudyRecord{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancels[studyID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.runStudy(ctx, studyID)
	return updated, nil
}

// Stop requests cancellation for a running study and marks it cancelled.
func (e *StudyExecutor) Stop(studyID string) (StudyRecord, error) {
	if studyID == "" {
		return StudyRecord{}, ErrStudyIDMissing
	}

	e.mu.Lock()
	cancel, ok := e.cancels[studyID]
	e.mu.Unlock()

	if ok {
		cancel()
	}

	updated, err := e.store.SetStatus(studyID, StatusCancelled, "", "cancelled")
	if err != nil {
		return StudyRecord{}, err
	}
	logger.Info("study cancelled", "study_id", studyID)
	e.notify(updated)
	return updated, nil
}

// StopAll cancels every running study
func (e *StudyExecutor) StopAll() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.cancels))
	for id := range e.cancels {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if _, err := e.Stop(id); err != nil && !errors.Is(err, ErrStudyTerminal) {
			logger.Warn("failed to stop study", "study_id", id, "error", err)
		}
	}
}

// Wait blocks until every started study has returned
func (e *StudyExecutor) Wait() {
	e.wg.Wait()
}

func (e *StudyExecutor) cleanup(studyID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[studyID]; ok {
		cancel()
		delete(e.cancels, studyID)
	}
	e.mu.Unlock()
}

func (e *StudyExecutor) runStudy(ctx context.Context, studyID string) {
	defer e.wg.Done()
	defer e.cleanup(studyID)

	rec, ok := e.store.Get(studyID)
	if !ok {
		logger.Error("study not found", "study_id", studyID)
		return
	}

	obj, err := objective.New(rec.Config.Objective, rec.Config.Params)
	if err != nil {
		e.finish(studyID, StatusFailed, fmt.Sprintf("invalid objective: %v", err), "")
		return
	}

	logger.Info("starting study", "study_id", studyID, "objective", rec.Config.Objective, "trials", rec.Config.Trials)
	err = rec.Study.Optimize(ctx, obj, rec.Config.Trials)
	switch {
	case ctx.Err() != nil:
		// Stop already recorded the cancellation
		logger.Info("study stopped", "study_id", studyID, "trials", rec.Study.Storage().NumTrials())
	case err != nil:
		logger.Error("study failed", "study_id", studyID, "error", err)
		e.finish(studyID, StatusFailed, err.Error(), rec.Study.StopReason())
	default:
		e.finish(studyID, StatusCompleted, "", rec.Study.StopReason())
	}
}

func (e *StudyExecutor) finish(studyID string, status Status, errMsg, stopReason string) {
	updated, err := e.store.SetStatus(studyID, status, errMsg, stopReason)
	if err != nil {
		if !errors.Is(err, ErrStudyTerminal) {
			logger.Error("failed to set final status", "study_id", studyID, "status", status, "error", err)
		}
		return
	}

	attrs := []any{"study_id", studyID, "status", status.String(), "trials", updated.Study.Storage().NumTrials()}
	if best, ok := updated.Study.BestTrial(); ok {
		attrs = append(attrs, "best_trial", best.ID, "best_value", best.Value)
	}
	if stopReason != "" {
		attrs = append(attrs, "stop_reason", stopReason)
	}
	logger.Info("study finished", attrs...)
	e.notify(updated)
}

func (e *StudyExecutor) notify(rec StudyRecord) {
	if e.notifier == nil || rec.CallbackURL == "" {
		return
	}
	e.notifier.Notify(rec.CallbackURL, rec.CallbackSecret, rec)
}
