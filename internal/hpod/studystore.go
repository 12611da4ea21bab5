package hpod

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/hpo-core/internal/study"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/config"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/utils"
)

// Status is the lifecycle state of a hosted study
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	case StatusCancelled:
		return "CANCELLED"
	default:
		return "UNSPECIFIED"
	}
}

// IsTerminal reports whether no further transitions are allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// parseStatus parses a status filter; ok is false for unknown names
func parseStatus(name string) (Status, bool) {
	switch strings.ToUpper(name) {
	case "PENDING":
		return StatusPending, true
	case "RUNNING":
		return StatusRunning, true
	case "COMPLETED":
		return StatusCompleted, true
	case "FAILED":
		return StatusFailed, true
	case "CANCELLED":
		return StatusCancelled, true
	default:
		return 0, false
	}
}

var (
	ErrStudyExists    = errors.New("study already exists")
	ErrStudyNotFound  = errors.New("study not found")
	ErrStudyTerminal  = errors.New("study is terminal")
	ErrStudyIDMissing = errors.New("study_id is required")
	ErrInvalidStudyID = errors.New("invalid study_id")
)

// StudyRecord is a snapshot of a hosted study. Study and Config are shared and
// must not be mutated by readers.
type StudyRecord struct {
	ID         string
	Status     Status
	Error      string
	StopReason string
	CreatedAt  time.Time
	StartedAt  time.Time
	EndedAt    time.Time

	Config         *config.Study
	ConfigYAML     string
	CallbackURL    string
	CallbackSecret string
	Study          *study.Study
}

// StudyStore holds hosted studies in creation order
type StudyStore struct {
	mu      sync.RWMutex
	studies map[string]*StudyRecord
	order   []string
	now     func() time.Time
}

func NewStudyStore() *StudyStore {
	return &StudyStore{
		studies: make(map[string]*StudyRecord),
		now:     time.Now,
	}
}

// Create registers a pending study from rec's ID, Config, callback and Study
// fields. An empty ID gets a generated one.
func (s *StudyStore) Create(rec StudyRecord) (StudyRecord, error) {
	if strings.ContainsAny(rec.ID, "/:") {
		return StudyRecord{}, fmt.Errorf("%w: %q cannot contain '/' or ':'", ErrInvalidStudyID, rec.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = utils.GenerateStudyID()
	}
	if _, exists := s.studies[rec.ID]; exists {
		return StudyRecord{}, fmt.Errorf("%w: %s", ErrStudyExists, rec.ID)
	}

	rec.Status = StatusPending
	rec.Error = ""
	rec.StopReason = ""
	rec.CreatedAt = s.now().UTC()
	rec.StartedAt = time.Time{}
	rec.EndedAt = time.Time{}

	stored := rec
	s.studies[rec.ID] = &stored
	s.order = append(s.order, rec.ID)
	return rec, nil
}

func (s *StudyStore) Get(id string) (StudyRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.studies[id]
	if !ok {
		return StudyRecord{}, false
	}
	return *rec, true
}

// List returns studies in creation order, optionally filtered by status
func (s *StudyStore) List(limit, offset int, filter *Status) []StudyRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]StudyRecord, 0, min(limit, len(s.order)))
	skipped := 0
	for _, id := range s.order {
		rec := s.studies[id]
		if filter != nil && rec.Status != *filter {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, *rec)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// SetStatus moves a study to status. Terminal studies cannot change.
func (s *StudyStore) SetStatus(id string, status Status, errMsg, stopReason string) (StudyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.studies[id]
	if !ok {
		return StudyRecord{}, fmt.Errorf("%w: %s", ErrStudyNotFound, id)
	}
	if rec.Status.IsTerminal() {
		return *rec, fmt.Errorf("%w: %s is %s", ErrStudyTerminal, id, rec.Status)
	}

	rec.Status = status
	if errMsg != "" {
		rec.Error = errMsg
	}
	if stopReason != "" {
		rec.StopReason = stopReason
	}

	switch {
	case status == StatusRunning:
		if rec.StartedAt.IsZero() {
			rec.StartedAt = s.now().UTC()
		}
	case status.IsTerminal():
		rec.EndedAt = s.now().UTC()
	}

	return *rec, nil
}
