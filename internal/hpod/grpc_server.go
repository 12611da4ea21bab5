package hpod

import (
	"context"
	"errors"

	"github.com/GoSim-25-26J-441/hpo-core/internal/storage"
	"github.com/GoSim-25-26J-441/hpo-core/pkg/logger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// StudyGRPCServer implements StudyServiceServer using a StudyStore backend.
type StudyGRPCServer struct {
	store    *StudyStore
	Executor *StudyExecutor
}

var _ StudyServiceServer = (*StudyGRPCServer)(nil)

// NewStudyGRPCServer creates a new StudyGRPCServer with the provided StudyStore and StudyExecutor.
func NewStudyGRPCServer(store *StudyStore, executor *StudyExecutor) *StudyGRPCServer {
	return &StudyGRPCServer{
		store:    store,
		Executor: executor,
	}
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return req.GetFields()[name].GetStringValue()
}

func (s *StudyGRPCServer) CreateStudy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	configYAML := stringField(req, "config_yaml")
	if configYAML == "" {
		return nil, status.Error(codes.InvalidArgument, "config_yaml is required")
	}

	rec, err := s.Executor.Submit(SubmitRequest{
		StudyID:        stringField(req, "study_id"),
		ConfigYAML:     configYAML,
		CallbackURL:    stringField(req, "callback_url"),
		CallbackSecret: stringField(req, "callback_secret"),
	})
	if err != nil {
		return nil, grpcError(err)
	}

	logger.Info("study submitted (gRPC)", "study_id", rec.ID)
	return respond(map[string]any{"study": convertStudyToJSON(rec)})
}

func (s *StudyGRPCServer) GetStudy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	return respond(map[string]any{"study": convertStudyToJSON(rec)})
}

func (s *StudyGRPCServer) ListStudies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := 50
	if n := int(req.GetFields()["limit"].GetNumberValue()); n > 0 {
		limit = min(n, 1000)
	}
	var filter *Status
	if name := stringField(req, "status"); name != "" {
		st, ok := parseStatus(name)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown status: %s", name)
		}
		filter = &st
	}

	recs := s.store.List(limit, 0, filter)
	studies := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		studies = append(studies, convertStudyToJSON(rec))
	}
	return respond(map[string]any{"studies": studies})
}

func (s *StudyGRPCServer) ListTrials(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	var states []storage.State
	if name := stringField(req, "state"); name != "" {
		st, ok := storage.ParseState(name)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown state: %s", name)
		}
		states = append(states, st)
	}

	trials := rec.Study.Trials(states...)
	out := make([]map[string]any, 0, len(trials))
	for _, t := range trials {
		out = append(out, convertTrialToJSON(t))
	}
	return respond(map[string]any{"study_id": rec.ID, "trials": out})
}

func (s *StudyGRPCServer) GetBestTrial(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	rec, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	best, ok := rec.Study.BestTrial()
	if !ok {
		return nil, status.Error(codes.FailedPrecondition, "no completed trials")
	}
	return respond(map[string]any{"trial": convertTrialToJSON(best)})
}

func (s *StudyGRPCServer) StopStudy(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	studyID := stringField(req, "study_id")
	if studyID == "" {
		return nil, status.Error(codes.InvalidArgument, "study_id is required")
	}
	updated, err := s.Executor.Stop(studyID)
	if err != nil {
		return nil, grpcError(err)
	}
	return respond(map[string]any{"study": convertStudyToJSON(updated)})
}

func (s *StudyGRPCServer) lookup(req *structpb.Struct) (StudyRecord, error) {
	studyID := stringField(req, "study_id")
	if studyID == "" {
		return StudyRecord{}, status.Error(codes.InvalidArgument, "study_id is required")
	}
	rec, ok := s.store.Get(studyID)
	if !ok {
		return StudyRecord{}, status.Error(codes.NotFound, "study not found")
	}
	return rec, nil
}

func respond(v map[string]any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// grpcError maps sentinel errors to status codes
func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrStudyNotFound), errors.Is(err, storage.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrStudyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrStudyTerminal):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrInvalidStudyID), errors.Is(err, ErrStudyIDMissing):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
