package hpod

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/hpo-core/pkg/logger"
)

const quadraticYAML = `
name: quad
objective: quadratic
trials: 50
seed: 7
params:
  - {name: x, type: int, low: 0, high: 10}
  - {name: y, type: int, low: 0, high: 10}
  - {name: opt, type: categorical, choices: [sgd, adam], costs: {sgd: 1, adam: 0}}
`

const endlessYAML = `
objective: sphere
trials: 100000000
params:
  - {name: x, type: float, low: -1, high: 1}
`

func TestMain(m *testing.M) {
	logger.SetDefault(logger.New("error", io.Discard))
	os.Exit(m.Run())
}

// waitForTerminal polls until the study reaches a terminal status
func waitForTerminal(t *testing.T, store *StudyStore, studyID string) StudyRecord {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec, ok := store.Get(studyID)
		if !ok {
			t.Fatalf("study %s not found", studyID)
		}
		if rec.Status.IsTerminal() {
			return rec
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("study %s did not finish in time", studyID)
	return StudyRecord{}
}

func TestExecutorSubmitRunsToCompletion(t *testing.T) {
	store := NewStudyStore()
	executor := NewStudyExecutor(store, nil)

	rec, err := executor.Submit(SubmitRequest{StudyID: "quad-1", ConfigYAML: quadraticYAML})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if rec.ID != "quad-1" {
		t.Fatalf("expected study id quad-1, got %s", rec.ID)
	}
	if rec.Status != StatusRunning {
		t.Fatalf("expected RUNNING after submit, got %s", rec.Status)
	}

	final := waitForTerminal(t, store, rec.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (error %q)", final.Status, final.Error)
	}
	if final.StartedAt.IsZero() || final.EndedAt.IsZero() {
		t.Fatalf("expected start and end timestamps")
	}
	if n := final.Study.Storage().NumTrials(); n != 50 {
		t.Fatalf("expected 50 trials, got %d", n)
	}
	if _, ok := final.Study.BestTrial(); !ok {
		t.Fatalf("expected a best trial")
	}
	executor.Wait()
}

func TestExecutorSubmitGeneratesID(t *testing.T) {
	store := NewStudyStore()
	executor := NewStudyExecutor(store, nil)

	rec, err := executor.Submit(SubmitRequest{ConfigYAML: quadraticYAML})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if rec.ID == "" {
		t.Fatalf("expected generated id")
	}
	waitForTerminal(t, store, rec.ID)
	executor.Wait()
}

func TestExecutorSubmitInvalid(t *testing.T) {
	executor := NewStudyExecutor(NewStudyStore(), nil)

	tests := []struct {
		name string
		req  SubmitRequest
	}{
		{"malformed yaml", SubmitRequest{ConfigYAML: "params: [oops"}},
		{"unknown objective", SubmitRequest{ConfigYAML: "objective: nope\ntrials: 1\nparams:\n  - {name: x, type: float, low: 0, high: 1}\n"}},
		{"too few params", SubmitRequest{ConfigYAML: "objective: quadratic\ntrials: 1\nparams:\n  - {name: x, type: float, low: 0, high: 1}\n"}},
		{"internal callback", SubmitRequest{ConfigYAML: quadraticYAML, CallbackURL: "http://10.0.0.1/cb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executor.Submit(tt.req)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestExecutorSubmitDuplicateID(t *testing.T) {
	store := NewStudyStore()
	executor := NewStudyExecutor(store, nil)

	if _, err := executor.Submit(SubmitRequest{StudyID: "dup", ConfigYAML: quadraticYAML}); err != nil {
		t.Fatalf("first Submit error: %v", err)
	}
	_, err := executor.Submit(SubmitRequest{StudyID: "dup", ConfigYAML: quadraticYAML})
	if !errors.Is(err, ErrStudyExists) {
		t.Fatalf("expected ErrStudyExists, got %v", err)
	}
	waitForTerminal(t, store, "dup")
	executor.Wait()
}

func TestExecutorStop(t *testing.T) {
	store := NewStudyStore()
	executor := NewStudyExecutor(store, nil)

	rec, err := executor.Submit(SubmitRequest{StudyID: "endless", ConfigYAML: endlessYAML})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}

	stopped, err := executor.Stop(rec.ID)
	if err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if stopped.Status != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", stopped.Status)
	}
	if stopped.StopReason != "cancelled" {
		t.Fatalf("expected stop reason cancelled, got %q", stopped.StopReason)
	}

	executor.Wait()
	final, _ := store.Get(rec.ID)
	if final.Status != StatusCancelled {
		t.Fatalf("expected status to stay CANCELLED, got %s", final.Status)
	}
	if final.Study.Storage().NumTrials() >= 100000000 {
		t.Fatalf("expected the study to stop early")
	}

	// Stopping again is a terminal-state error
	if _, err := executor.Stop(rec.ID); !errors.Is(err, ErrStudyTerminal) {
		t.Fatalf("expected ErrStudyTerminal, got %v", err)
	}
}

func TestExecutorStopErrors(t *testing.T) {
	executor := NewStudyExecutor(NewStudyStore(), nil)

	if _, err := executor.Stop(""); !errors.Is(err, ErrStudyIDMissing) {
		t.Fatalf("expected ErrStudyIDMissing, got %v", err)
	}
	if _, err := executor.Stop("missing"); !errors.Is(err, ErrStudyNotFound) {
		t.Fatalf("expected ErrStudyNotFound, got %v", err)
	}
	if _, err := executor.Start("missing"); !errors.Is(err, ErrStudyNotFound) {
		t.Fatalf("expected ErrStudyNotFound from Start, got %v", err)
	}
}

func TestExecutorStopAll(t *testing.T) {
	store := NewStudyStore()
	executor := NewStudyExecutor(store, nil)

	for _, id := range []string{"a", "b"} {
		if _, err := executor.Submit(SubmitRequest{StudyID: id, ConfigYAML: endlessYAML}); err != nil {
			t.Fatalf("Submit %s error: %v", id, err)
		}
	}
	executor.StopAll()
	executor.Wait()

	for _, id := range []string{"a", "b"} {
		rec, _ := store.Get(id)
		if rec.Status != StatusCancelled {
			t.Errorf("study %s: expected CANCELLED, got %s", id, rec.Status)
		}
	}
}

func TestExecutorConvergenceStopReason(t *testing.T) {
	store := NewStudyStore()
	executor := NewStudyExecutor(store, nil)

	yamlText := `
objective: abs
trials: 100000
seed: 3
convergence:
  target: 0
params:
  - {name: n, type: int, low: -2, high: 2}
`
	rec, err := executor.Submit(SubmitRequest{StudyID: "target", ConfigYAML: yamlText})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	final := waitForTerminal(t, store, rec.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", final.Status)
	}
	if final.StopReason == "" {
		t.Fatalf("expected a convergence stop reason")
	}
	if final.Study.Storage().NumTrials() >= 100000 {
		t.Fatalf("expected early stop on target")
	}
	executor.Wait()
}
