package hpod

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/hpo-core/internal/storage"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/logger"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *StudyStore
	Executor *StudyExecutor
}

func NewHTTPServer(store *StudyStore, executor *StudyExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/studies", s.handleStudies)
	s.mux.HandleFunc("/v1/studies/", s.handleStudyByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStudies handles /v1/studies endpoint
func (s *HTTPServer) handleStudies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateStudy(w, r)
	case http.MethodGet:
		s.handleListStudies(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleStudyByID handles /v1/studies/{id} and related endpoints
func (s *HTTPServer) handleStudyByID(w http.ResponseWriter, r *http.Request) {
	// Parse path: /v1/studies/{id}, {id}:stop, {id}/best, {id}/trials or {id}/trials/{n}
	path := strings.TrimPrefix(r.URL.Path, "/v1/studies/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "study ID is required")
		return
	}

	if strings.HasSuffix(path, ":stop") {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleStopStudy(w, r, strings.TrimSuffix(path, ":stop"))
		return
	}

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	studyID, rest, _ := strings.Cut(path, "/")
	switch {
	case rest == "":
		s.handleGetStudy(w, r, studyID)
	case rest == "best":
		s.handleGetBestTrial(w, r, studyID)
	case rest == "trials":
		s.handleListTrials(w, r, studyID)
	case strings.HasPrefix(rest, "trials/"):
		s.handleGetTrial(w, r, studyID, strings.TrimPrefix(rest, "trials/"))
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

// handleCreateStudy handles POST /v1/studies
func (s *HTTPServer) handleCreateStudy(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ConfigYAML == "" {
		s.writeError(w, http.StatusBadRequest, "config_yaml is required")
		return
	}

	rec, err := s.Executor.Submit(req)
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}

	logger.Info("study submitted (HTTP)", "study_id", rec.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"study": convertStudyToJSON(rec),
	})
}

// handleListStudies handles GET /v1/studies with pagination and filtering
func (s *HTTPServer) handleListStudies(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = min(parsed, 1000)
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var filter *Status
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		st, ok := parseStatus(statusStr)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown status: "+statusStr)
			return
		}
		filter = &st
	}

	recs := s.store.List(limit, offset, filter)
	studies := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		studies = append(studies, convertStudyToJSON(rec))
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"studies": studies,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(recs),
		},
	})
}

// handleGetStudy handles GET /v1/studies/{id}
func (s *HTTPServer) handleGetStudy(w http.ResponseWriter, _ *http.Request, studyID string) {
	rec, ok := s.store.Get(studyID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "study not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"study": convertStudyToJSON(rec),
	})
}

// handleStopStudy handles POST /v1/studies/{id}:stop
func (s *HTTPServer) handleStopStudy(w http.ResponseWriter, _ *http.Request, studyID string) {
	updated, err := s.Executor.Stop(studyID)
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"study": convertStudyToJSON(updated),
	})
}

// handleListTrials handles GET /v1/studies/{id}/trials?state=COMPLETED
func (s *HTTPServer) handleListTrials(w http.ResponseWriter, r *http.Request, studyID string) {
	rec, ok := s.store.Get(studyID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "study not found")
		return
	}

	var states []storage.State
	if stateStr := r.URL.Query().Get("state"); stateStr != "" {
		st, ok := storage.ParseState(stateStr)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "unknown state: "+stateStr)
			return
		}
		states = append(states, st)
	}

	trials := rec.Study.Trials(states...)
	out := make([]map[string]any, 0, len(trials))
	for _, t := range trials {
		out = append(out, convertTrialToJSON(t))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"study_id": studyID,
		"trials":   out,
	})
}

// handleGetTrial handles GET /v1/studies/{id}/trials/{n}
func (s *HTTPServer) handleGetTrial(w http.ResponseWriter, _ *http.Request, studyID, trialStr string) {
	rec, ok := s.store.Get(studyID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "study not found")
		return
	}
	trialID, err := strconv.Atoi(trialStr)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid trial id: "+trialStr)
		return
	}

	t, err := rec.Study.Storage().GetTrial(trialID)
	if err != nil {
		s.writeError(w, httpStatusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"trial": convertTrialToJSON(t),
	})
}

// handleGetBestTrial handles GET /v1/studies/{id}/best
func (s *HTTPServer) handleGetBestTrial(w http.ResponseWriter, _ *http.Request, studyID string) {
	rec, ok := s.store.Get(studyID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "study not found")
		return
	}
	best, ok := rec.Study.BestTrial()
	if !ok {
		s.writeError(w, http.StatusPreconditionFailed, "no completed trials")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"trial": convertTrialToJSON(best),
	})
}

// httpStatusFor maps sentinel errors to status codes
func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, ErrStudyNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrStudyExists):
		return http.StatusConflict
	case errors.Is(err, ErrStudyTerminal):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrInvalidStudyID), errors.Is(err, ErrStudyIDMissing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
