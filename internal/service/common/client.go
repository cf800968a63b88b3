//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/morning-glow/internal/api/grpc/alarm"
	"github.com/oshokin/morning-glow/internal/api/record"
	"github.com/oshokin/morning-glow/internal/config"
	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/service/notify"
	"github.com/oshokin/morning-glow/internal/service/quote"
)

// uploadHeadroom covers the message framing around an uploaded sound.
const uploadHeadroom = 1 << 10

// Client wraps the AlarmService connection with typed helpers.
type Client struct {
	// conn is the underlying gRPC connection to the alarm daemon.
	conn grpc.ClientConnInterface
	// closer releases conn, nil for connections owned elsewhere.
	closer func() error

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errAlarmRequired is returned when an alarm is not provided.
	errAlarmRequired = errors.New("alarm must be provided")
)

// Dial establishes a gRPC connection to the alarm daemon.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(api.MaxSoundBytes+uploadHeadroom)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial alarm server: %w", err)
	}

	client := NewClient(conn, opts...)
	client.closer = conn.Close

	return client, nil
}

// NewClient wraps an existing connection. Close does not close conn.
func NewClient(conn grpc.ClientConnInterface, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}

	return c.closer()
}

// ListAlarms returns the alarm list, with snooze instances when includeSnoozes is set.
func (c *Client) ListAlarms(ctx context.Context, includeSnoozes bool) ([]*domain.Alarm, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.MethodListAlarms, wrapperspb.Bool(includeSnoozes), out); err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}

	return record.AlarmsFromStruct(out)
}

// SaveAlarm creates or replaces an alarm and returns the stored copy.
func (c *Client) SaveAlarm(ctx context.Context, a *domain.Alarm) (*domain.Alarm, error) {
	if a == nil {
		return nil, errAlarmRequired
	}

	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.MethodSaveAlarm, record.AlarmToStruct(a), out); err != nil {
		return nil, fmt.Errorf("save alarm: %w", err)
	}

	return record.AlarmFromStruct(out)
}

// DeleteAlarm removes an alarm.
func (c *Client) DeleteAlarm(ctx context.Context, id string) error {
	if err := c.invoke(ctx, api.MethodDeleteAlarm, wrapperspb.String(id), new(emptypb.Empty)); err != nil {
		return fmt.Errorf("delete alarm: %w", err)
	}

	return nil
}

// ToggleAlarm flips the active flag of an alarm.
func (c *Client) ToggleAlarm(ctx context.Context, id string) (*domain.Alarm, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.MethodToggleAlarm, wrapperspb.String(id), out); err != nil {
		return nil, fmt.Errorf("toggle alarm: %w", err)
	}

	return record.AlarmFromStruct(out)
}

// GetStatus reports the ringing session, the volume and the quote.
func (c *Client) GetStatus(ctx context.Context) (api.Status, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.MethodGetStatus, new(emptypb.Empty), out); err != nil {
		return api.Status{}, fmt.Errorf("get status: %w", err)
	}

	return api.StatusFromStruct(out)
}

// Stop closes the ringing session and reports whether one was open.
func (c *Client) Stop(ctx context.Context) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, api.MethodStop, new(emptypb.Empty), out); err != nil {
		return false, fmt.Errorf("stop alarm: %w", err)
	}

	return out.GetValue(), nil
}

// Snooze schedules a snooze instance. Zero minutes uses the alarm's own duration.
func (c *Client) Snooze(ctx context.Context, minutes int) (*domain.Alarm, error) {
	out := new(structpb.Struct)

	//nolint:gosec // Snooze durations are a handful of minutes.
	if err := c.invoke(ctx, api.MethodSnooze, wrapperspb.Int32(int32(minutes)), out); err != nil {
		return nil, fmt.Errorf("snooze alarm: %w", err)
	}

	return record.AlarmFromStruct(out)
}

// SetVolume applies a volume in [0, 1] and returns the value the daemon stored.
func (c *Client) SetVolume(ctx context.Context, volume float64) (float64, error) {
	out := new(wrapperspb.DoubleValue)
	if err := c.invoke(ctx, api.MethodSetVolume, wrapperspb.Double(volume), out); err != nil {
		return 0, fmt.Errorf("set volume: %w", err)
	}

	return out.GetValue(), nil
}

// GetQuote returns the current quote.
func (c *Client) GetQuote(ctx context.Context) (quote.Quote, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.MethodGetQuote, new(emptypb.Empty), out); err != nil {
		return quote.Quote{}, fmt.Errorf("get quote: %w", err)
	}

	return api.QuoteFromStruct(out)
}

// RefreshQuote asks for a new quote, bypassing the refresh interval when force is set.
func (c *Client) RefreshQuote(ctx context.Context, force bool) (quote.Quote, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.MethodRefreshQuote, wrapperspb.Bool(force), out); err != nil {
		return quote.Quote{}, fmt.Errorf("refresh quote: %w", err)
	}

	return api.QuoteFromStruct(out)
}

// UploadSound stores an audio file on the daemon and returns its reference.
func (c *Client) UploadSound(ctx context.Context, data []byte) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, api.MethodUploadSound, wrapperspb.Bytes(data), out); err != nil {
		return "", fmt.Errorf("upload sound: %w", err)
	}

	return out.GetValue(), nil
}

// ListNotifications returns the daemon's recent notifications, oldest first.
func (c *Client) ListNotifications(ctx context.Context) ([]notify.Notification, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.MethodListNotifications, new(emptypb.Empty), out); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	return api.NotificationsFromStruct(out)
}

// ListPresets returns the preset sounds and the snooze menu.
func (c *Client) ListPresets(ctx context.Context) (api.PresetCatalog, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.MethodListPresets, new(emptypb.Empty), out); err != nil {
		return api.PresetCatalog{}, fmt.Errorf("list presets: %w", err)
	}

	return api.PresetsFromStruct(out)
}

func (c *Client) invoke(ctx context.Context, method string, in, out proto.Message) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	return c.conn.Invoke(callCtx, api.FullMethod(method), in, out)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
