package grpc_control

import (
	"context"
	"errors"
	"sort"

	"price-oracle/src/interfaces"
	"price-oracle/src/logger"
	"price-oracle/src/models"
	"price-oracle/src/oracle"
	"price-oracle/src/schedule"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ControlService implements OracleControlServer on top of the oracle service.
type ControlService struct {
	Oracle   interfaces.IOracleService
	Schedule interfaces.IScheduleControl
	Logger   *logger.Logger
}

// NewControlService creates a new instance of ControlService
func NewControlService(svc interfaces.IOracleService, sched interfaces.IScheduleControl, log *logger.Logger) *ControlService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ControlService{
		Oracle:   svc,
		Schedule: sched,
		Logger:   log,
	}
}

// -----------------------------------------------------------------------------

// statusError maps oracle rejections to gRPC codes.
func statusError(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, oracle.ErrUnauthorized), errors.Is(err, oracle.ErrUnauthorizedProducer):
		code = codes.PermissionDenied
	case errors.Is(err, oracle.ErrDuplicatePair):
		code = codes.AlreadyExists
	case errors.Is(err, oracle.ErrSubmissionTooFrequent):
		code = codes.ResourceExhausted
	case errors.Is(err, oracle.ErrUnknownPair),
		errors.Is(err, oracle.ErrInvalidPair),
		errors.Is(err, oracle.ErrInvalidPrice),
		errors.Is(err, oracle.ErrEmptySubmission):
		code = codes.InvalidArgument
	case errors.Is(err, schedule.ErrStaticSchedule):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

func stringField(req *structpb.Struct, name string) string {
	if v, ok := req.GetFields()[name]; ok {
		return v.GetStringValue()
	}
	return ""
}

// -----------------------------------------------------------------------------

func (s *ControlService) RegisterPair(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	caller := stringField(req, "caller")
	pair := stringField(req, "pair")
	if caller == "" || pair == "" {
		return nil, status.Error(codes.InvalidArgument, "caller and pair are required")
	}

	if err := s.Oracle.RegisterPair(ctx, caller, pair); err != nil {
		return nil, statusError(err)
	}

	s.Logger.Info("gRPC: registered pair %s", pair)
	return &emptypb.Empty{}, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) SubmitPrices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	producer := stringField(req, "producer")
	if producer == "" {
		return nil, status.Error(codes.InvalidArgument, "producer is required")
	}

	pairsData := make(map[string]float64)
	for pair, v := range req.GetFields()["pairs_data"].GetStructValue().GetFields() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "price of %s must be a number", pair)
		}
		pairsData[pair] = n.NumberValue
	}

	result, err := s.Oracle.SubmitPrices(ctx, producer, pairsData)
	if err != nil {
		return nil, statusError(err)
	}
	return s.encode(toStruct(result))
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetPrice(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	price, err := s.Oracle.Current(ctx, req.GetValue())
	if err != nil {
		return nil, statusError(err)
	}
	if price == nil {
		return nil, status.Errorf(codes.NotFound, "no published price for %s", req.GetValue())
	}
	return s.encode(toStruct(price))
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListPairs(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	pairs, err := s.Oracle.ListPairs(ctx)
	if err != nil {
		return nil, statusError(err)
	}
	out, err := toList(pairs)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListPrices(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	prices, err := s.Oracle.ListPrices(ctx)
	if err != nil {
		return nil, statusError(err)
	}
	out, err := toList(prices)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetSubmission(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	sub, err := s.Oracle.Submission(ctx, req.GetValue())
	if err != nil {
		return nil, statusError(err)
	}
	if sub == nil {
		return nil, status.Errorf(codes.NotFound, "no submission from %s", req.GetValue())
	}
	return s.encode(toStruct(sub))
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.Oracle.Status(ctx)
	if err != nil {
		return nil, statusError(err)
	}
	return s.encode(toStruct(st))
}

// -----------------------------------------------------------------------------

func (s *ControlService) GetSchedule(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.Schedule == nil {
		return nil, status.Error(codes.Unavailable, "no producer schedule attached")
	}
	return s.encode(toStruct(normalizeSchedule(s.Schedule.Snapshot())))
}

// -----------------------------------------------------------------------------

func (s *ControlService) ReloadSchedule(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s.Schedule == nil {
		return nil, status.Error(codes.Unavailable, "no producer schedule attached")
	}
	if err := s.Schedule.Reload(); err != nil {
		s.Logger.Warning("gRPC: schedule reload failed: %v", err)
		return nil, statusError(err)
	}

	snap := normalizeSchedule(s.Schedule.Snapshot())
	s.Logger.Info("gRPC: schedule reloaded, %d active", len(snap.Active))
	return s.encode(toStruct(snap))
}

// -----------------------------------------------------------------------------

func (s *ControlService) encode(msg *structpb.Struct, err error) (*structpb.Struct, error) {
	if err != nil {
		s.Logger.Error("gRPC: failed to encode response: %v", err)
		return nil, status.Error(codes.Internal, err.Error())
	}
	return msg, nil
}

func normalizeSchedule(s models.MProducerSchedule) models.MProducerSchedule {
	out := models.MProducerSchedule{
		Active:  append([]string{}, s.Active...),
		Standby: append([]string{}, s.Standby...),
	}
	sort.Strings(out.Active)
	sort.Strings(out.Standby)
	return out
}
