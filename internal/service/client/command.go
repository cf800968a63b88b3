package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/oshokin/morning-glow/internal/config"
	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/logger"
	"github.com/oshokin/morning-glow/internal/service/common"
)

// Options configures how glowctl reaches the daemon.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides server address from config when specified.
	ServerAddress string
}

// Edits holds the alarm fields set on the command line. Nil fields are left unchanged.
type Edits struct {
	Time      *string
	Days      *string
	Label     *string
	Preset    *string
	SoundRef  *string
	SoundName *string
	Snooze    *int
	Active    *bool
}

// Day list shortcuts accepted by ParseDays.
const (
	DaysOnce     = "once"
	DaysDaily    = "daily"
	DaysWeekdays = "weekdays"
	DaysWeekends = "weekends"
)

// errUnknownDay is returned for a day name ParseDays does not recognize.
var errUnknownDay = errors.New("unknown day")

// Connect loads settings and dials the daemon.
// A missing settings file is tolerated when the server address is given explicitly.
func Connect(ctx context.Context, opts *Options) (*common.Client, error) {
	ctx = logger.WithName(ctx, "glowctl")

	serverAddress := opts.ServerAddress
	timeout := config.DefaultTimeout

	cfg, err := config.Load(opts.ConfigPath)

	switch {
	case err == nil:
		if serverAddress == "" {
			serverAddress = cfg.ServerAddress
		}

		timeout = cfg.Timeout
	case errors.Is(err, fs.ErrNotExist) && serverAddress != "":
		logger.DebugKV(ctx, "Settings file not found, using defaults", "path", opts.ConfigPath)
	default:
		return nil, err
	}

	logger.DebugKV(ctx, "Connecting to glow server", "server_address", serverAddress)

	return common.Dial(ctx, serverAddress, common.WithCallTimeout(timeout))
}

// ApplyEdits copies the set fields onto a. Choosing a preset switches the
// alarm to preset audio; choosing a sound reference switches it to custom audio.
func ApplyEdits(a *domain.Alarm, edits Edits) error {
	if edits.Time != nil {
		a.Time = *edits.Time
	}

	if edits.Days != nil {
		days, err := ParseDays(*edits.Days)
		if err != nil {
			return err
		}

		a.RepeatDays = days
	}

	if edits.Label != nil {
		a.Label = *edits.Label
	}

	if edits.Preset != nil {
		a.AudioMode = domain.AudioModePreset
		a.SelectedPresetID = *edits.Preset
	}

	if edits.SoundRef != nil {
		a.AudioMode = domain.AudioModeCustom
		a.CustomAudioRef = *edits.SoundRef
	}

	if edits.SoundName != nil {
		a.CustomAudioName = *edits.SoundName
	}

	if edits.Snooze != nil {
		a.SnoozeDurationMinutes = *edits.Snooze
	}

	if edits.Active != nil {
		a.IsActive = *edits.Active
	}

	return a.Validate()
}

// ParseDays converts a comma separated list of day names or a shortcut into weekdays.
// Both three-letter and full English names are accepted, case-insensitively.
func ParseDays(s string) ([]time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	switch s {
	case "", DaysOnce:
		return []time.Weekday{}, nil
	case DaysDaily:
		return []time.Weekday{
			time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		}, nil
	case DaysWeekdays:
		return []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, nil
	case DaysWeekends:
		return []time.Weekday{time.Sunday, time.Saturday}, nil
	}

	var days []time.Weekday

	for name := range strings.SplitSeq(s, ",") {
		name = strings.TrimSpace(name)

		day, ok := lookupDay(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errUnknownDay, name)
		}

		days = append(days, day)
	}

	return days, nil
}

func lookupDay(name string) (time.Weekday, bool) {
	for day := time.Sunday; day <= time.Saturday; day++ {
		full := strings.ToLower(day.String())
		if name == full || name == full[:3] {
			return day, true
		}
	}

	return 0, false
}
