package alarms

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/morning-glow/internal/api/record"
	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/logger"
	"github.com/oshokin/morning-glow/internal/service/notify"
)

// Repository defines persistence operations for the alarm list.
type Repository interface {
	Load(ctx context.Context) ([]*domain.Alarm, error)
	Save(ctx context.Context, alarms []*domain.Alarm) error
}

// FileRepository persists the alarm list to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) so the file
// holds the same records the gRPC API sends.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// notifier hears about stored alarms that were skipped on load.
	notifier notify.Notifier
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when the alarm file does not exist yet.
	ErrNotFound = errors.New("alarms not found")
	// errMissingID is returned for a stored alarm without an ID.
	errMissingID = errors.New("alarm ID is empty")
)

// Option configures a FileRepository.
type Option func(*FileRepository)

// WithNotifier reports skipped records to n.
func WithNotifier(n notify.Notifier) Option {
	return func(r *FileRepository) {
		if n != nil {
			r.notifier = n
		}
	}
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string, opts ...Option) *FileRepository {
	r := &FileRepository{
		path:     filepath.Clean(path),
		notifier: notify.Discard{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Load reads the alarm list from disk, in stored order.
// Records that fail to decode or validate are skipped and reported.
func (r *FileRepository) Load(ctx context.Context) ([]*domain.Alarm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read alarms file: %w", err)
	}

	var stored structpb.Struct
	if err = protojson.Unmarshal(contents, &stored); err != nil {
		return nil, fmt.Errorf("decode alarms file: %w", err)
	}

	values := record.AlarmValues(&stored)
	result := make([]*domain.Alarm, 0, len(values))

	for i, value := range values {
		a, err := decodeStored(value)
		if err != nil {
			r.reject(ctx, i, value, err)

			continue
		}

		result = append(result, a)
	}

	return result, nil
}

// Save replaces the file with the given list.
func (r *FileRepository) Save(_ context.Context, alarms []*domain.Alarm) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		Indent:          "  ",
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(record.AlarmsToStruct(alarms))
	if err != nil {
		return fmt.Errorf("encode alarms: %w", err)
	}

	if err = writeAtomically(r.path, data); err != nil {
		return fmt.Errorf("write alarms file: %w", err)
	}

	return nil
}

// decodeStored turns one stored record into a valid alarm.
func decodeStored(value *structpb.Value) (*domain.Alarm, error) {
	a, err := record.AlarmFromStruct(value.GetStructValue())
	if err != nil {
		return nil, err
	}

	if a.ID == "" {
		return nil, errMissingID
	}

	if err = a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

// reject logs and reports a stored record that cannot be used.
func (r *FileRepository) reject(ctx context.Context, index int, value *structpb.Value, err error) {
	id := value.GetStructValue().GetFields()[record.FieldID].GetStringValue()
	if id == "" {
		id = fmt.Sprintf("#%d", index+1)
	}

	logger.WarnKV(ctx, "Skipped invalid stored alarm", "path", r.path, "alarm_id", id, "error", err)
	r.notifier.Notify(ctx, notify.SeverityWarning, fmt.Sprintf("Saved alarm %s was skipped: %v", id, err))
}
