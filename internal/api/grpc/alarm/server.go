package alarm

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/morning-glow/internal/api/record"
	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/logger"
	"github.com/oshokin/morning-glow/internal/repository/blob"
	"github.com/oshokin/morning-glow/internal/service/notify"
	"github.com/oshokin/morning-glow/internal/service/quote"
	"github.com/oshokin/morning-glow/internal/service/scheduler"
)

// Scheduler abstracts the alarm list and ringing session.
type Scheduler interface {
	Alarms(includeSnoozes bool) []*domain.Alarm
	SaveAlarm(ctx context.Context, a *domain.Alarm) (*domain.Alarm, error)
	DeleteAlarm(ctx context.Context, id string) error
	ToggleAlarm(ctx context.Context, id string) (*domain.Alarm, error)
	Session() *domain.Session
	Stop(ctx context.Context) bool
	Snooze(ctx context.Context, minutes int) (*domain.Alarm, error)
}

// Audio abstracts the live volume control.
type Audio interface {
	SetVolume(volume float64) error
	Volume() float64
}

// Quotes abstracts the quote service.
type Quotes interface {
	Current() quote.Quote
	Refresh(ctx context.Context, force bool) error
}

// Sounds abstracts the uploaded sound storage.
type Sounds interface {
	PutSound(ctx context.Context, data []byte) (string, error)
}

// Notifications abstracts the notification feed.
type Notifications interface {
	Recent() []notify.Notification
}

// Dependencies are the services the transport calls into.
type Dependencies struct {
	Scheduler     Scheduler
	Audio         Audio
	Quotes        Quotes
	Sounds        Sounds
	Notifications Notifications
}

// Server implements AlarmServiceServer.
type Server struct {
	deps Dependencies
}

var _ AlarmServiceServer = (*Server)(nil)

// validationErrors map to InvalidArgument.
//
//nolint:gochecknoglobals // Static lookup table.
var validationErrors = []error{
	domain.ErrInvalidTime,
	domain.ErrInvalidWeekday,
	domain.ErrInvalidSnoozeDuration,
	domain.ErrUnknownAudioMode,
	domain.ErrUnknownPreset,
	domain.ErrMissingCustomAudio,
	scheduler.ErrAlarmRequired,
	scheduler.ErrReservedID,
	blob.ErrEmpty,
	record.ErrMissingRecord,
	record.ErrMalformedRecord,
}

// NewServer wires the provided services into a gRPC handler.
func NewServer(deps Dependencies) *Server {
	return &Server{
		deps: deps,
	}
}

// ListAlarms returns the alarms in insertion order.
func (s *Server) ListAlarms(_ context.Context, req *wrapperspb.BoolValue) (*structpb.Struct, error) {
	if s.deps.Scheduler == nil {
		return nil, notConfigured("scheduler")
	}

	return record.AlarmsToStruct(s.deps.Scheduler.Alarms(req.GetValue())), nil
}

// SaveAlarm creates or replaces an alarm.
func (s *Server) SaveAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Scheduler == nil {
		return nil, notConfigured("scheduler")
	}

	a, err := record.AlarmFromStruct(req)
	if err != nil {
		return nil, toStatus(err)
	}

	saved, err := s.deps.Scheduler.SaveAlarm(ctx, a)
	if err != nil {
		return nil, toStatus(err)
	}

	return record.AlarmToStruct(saved), nil
}

// DeleteAlarm removes an alarm.
func (s *Server) DeleteAlarm(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if s.deps.Scheduler == nil {
		return nil, notConfigured("scheduler")
	}

	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "alarm id is required")
	}

	if err := s.deps.Scheduler.DeleteAlarm(ctx, req.GetValue()); err != nil {
		return nil, toStatus(err)
	}

	return new(emptypb.Empty), nil
}

// ToggleAlarm flips the active flag of an alarm.
func (s *Server) ToggleAlarm(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if s.deps.Scheduler == nil {
		return nil, notConfigured("scheduler")
	}

	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "alarm id is required")
	}

	toggled, err := s.deps.Scheduler.ToggleAlarm(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return record.AlarmToStruct(toggled), nil
}

// GetStatus reports the ringing session, the volume and the quote.
func (s *Server) GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	if s.deps.Scheduler == nil {
		return nil, notConfigured("scheduler")
	}

	current := Status{
		Session: s.deps.Scheduler.Session(),
	}

	if s.deps.Audio != nil {
		current.Volume = s.deps.Audio.Volume()
	}

	if s.deps.Quotes != nil {
		current.Quote = s.deps.Quotes.Current()
	}

	return StatusToStruct(current), nil
}

// Stop closes the ringing session. The reply tells whether one was open.
func (s *Server) Stop(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	if s.deps.Scheduler == nil {
		return nil, notConfigured("scheduler")
	}

	return wrapperspb.Bool(s.deps.Scheduler.Stop(ctx)), nil
}

// Snooze closes the ringing session and schedules a snooze instance.
func (s *Server) Snooze(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	if s.deps.Scheduler == nil {
		return nil, notConfigured("scheduler")
	}

	snooze, err := s.deps.Scheduler.Snooze(ctx, int(req.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}

	return record.AlarmToStruct(snooze), nil
}

// SetVolume applies a volume in [0, 1] to the live player and returns the stored value.
func (s *Server) SetVolume(ctx context.Context, req *wrapperspb.DoubleValue) (*wrapperspb.DoubleValue, error) {
	if s.deps.Audio == nil {
		return nil, notConfigured("audio")
	}

	if err := s.deps.Audio.SetVolume(req.GetValue()); err != nil {
		logger.WarnKV(ctx, "Player did not accept the volume", "error", err)

		return nil, status.Error(codes.Unavailable, "volume stored, player did not accept it")
	}

	return wrapperspb.Double(s.deps.Audio.Volume()), nil
}

// GetQuote returns the current quote.
func (s *Server) GetQuote(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	if s.deps.Quotes == nil {
		return nil, notConfigured("quotes")
	}

	return QuoteToStruct(s.deps.Quotes.Current()), nil
}

// RefreshQuote fetches a new quote, subject to the refresh interval unless forced.
func (s *Server) RefreshQuote(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.Struct, error) {
	if s.deps.Quotes == nil {
		return nil, notConfigured("quotes")
	}

	err := s.deps.Quotes.Refresh(ctx, req.GetValue())

	switch {
	case err == nil:
		return QuoteToStruct(s.deps.Quotes.Current()), nil
	case errors.Is(err, quote.ErrRateLimited):
		return nil, status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, quote.ErrNoAPIKey):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	default:
		return nil, status.Error(codes.Unavailable, err.Error())
	}
}

// UploadSound stores an audio file and returns its key for use as customAudioRef.
func (s *Server) UploadSound(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s.deps.Sounds == nil {
		return nil, notConfigured("sounds")
	}

	if len(req.GetValue()) > MaxSoundBytes {
		return nil, status.Errorf(codes.InvalidArgument, "sound exceeds %d bytes", MaxSoundBytes)
	}

	key, err := s.deps.Sounds.PutSound(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	logger.InfoKV(ctx, "Sound uploaded", "key", key, "bytes", len(req.GetValue()))

	return wrapperspb.String(key), nil
}

// ListNotifications returns recent notifications, oldest first.
func (s *Server) ListNotifications(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	if s.deps.Notifications == nil {
		return nil, notConfigured("notifications")
	}

	return NotificationsToStruct(s.deps.Notifications.Recent()), nil
}

// ListPresets returns the preset sounds and the snooze menu.
func (s *Server) ListPresets(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return PresetsToStruct(PresetCatalog{
		Presets:         domain.Presets(),
		SnoozeDurations: domain.SnoozeDurations(),
	}), nil
}

// LoggingInterceptor logs every call with its status code and duration.
func LoggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	started := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	if code == codes.OK || code == codes.InvalidArgument || code == codes.NotFound || code == codes.ResourceExhausted {
		logger.DebugKV(ctx, "RPC handled", "method", info.FullMethod, "code", code.String(), "duration", time.Since(started))
	} else {
		logger.WarnKV(ctx, "RPC failed", "method", info.FullMethod, "code", code.String(), "error", err)
	}

	return resp, err
}

// toStatus maps service errors to gRPC status codes.
func toStatus(err error) error {
	if errors.Is(err, scheduler.ErrAlarmNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}

	return status.Error(codes.Internal, "internal error")
}

func notConfigured(component string) error {
	return status.Errorf(codes.Unimplemented, "%s is not configured", component)
}
