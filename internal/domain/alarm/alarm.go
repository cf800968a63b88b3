package alarm

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AudioMode selects where the alarm sound comes from.
type AudioMode string

const (
	// AudioModePreset plays one of the built-in remote sounds.
	AudioModePreset AudioMode = "preset"
	// AudioModeCustom plays a user-uploaded sound from the blob store.
	AudioModeCustom AudioMode = "custom"
)

const (
	// SnoozeIDPrefix marks alarms synthesized by snoozing.
	SnoozeIDPrefix = "snooze-"

	// DefaultSnoozeMinutes is used when neither the caller nor the alarm picks a duration.
	DefaultSnoozeMinutes = 5

	// DefaultTime is the wake-up time of a freshly created alarm.
	DefaultTime = "07:00"

	// DefaultLabel is the label of a freshly created alarm.
	DefaultLabel = "New Glow"

	clockLayout = "15:04"
)

var (
	// ErrInvalidTime is returned when the alarm time is not HH:MM in 24h format.
	ErrInvalidTime = errors.New("alarm time must be HH:MM (24h)")
	// ErrInvalidWeekday is returned when a repeat day is outside 0..6.
	ErrInvalidWeekday = errors.New("repeat day must be between 0 (Sunday) and 6 (Saturday)")
	// ErrInvalidSnoozeDuration is returned for a snooze duration outside the menu.
	ErrInvalidSnoozeDuration = errors.New("snooze duration is not allowed")
	// ErrUnknownAudioMode is returned when the audio mode is neither preset nor custom.
	ErrUnknownAudioMode = errors.New("unknown audio mode")
	// ErrUnknownPreset is returned when the preset identifier is not in the preset table.
	ErrUnknownPreset = errors.New("unknown preset sound")
	// ErrMissingCustomAudio is returned when custom mode has no blob reference.
	ErrMissingCustomAudio = errors.New("custom audio mode requires an uploaded sound")
)

// snoozeDurations is the fixed snooze menu, in minutes.
//
//nolint:gochecknoglobals // Static menu shared by validation and the CLI.
var snoozeDurations = []int{3, 5, 10, 15, 20, 30}

// Alarm is a configured wake-up.
type Alarm struct {
	// ID uniquely identifies the alarm. Snooze instances carry SnoozeIDPrefix.
	ID string
	// Time is the wall-clock time in HH:MM, 24h.
	Time string
	// IsActive enables the alarm for scheduling.
	IsActive bool
	// RepeatDays lists the weekdays the alarm repeats on. Empty means one-shot.
	RepeatDays []time.Weekday
	// AudioMode picks preset or custom sound.
	AudioMode AudioMode
	// SelectedPresetID references the preset table.
	SelectedPresetID string
	// CustomAudioRef is the blob store key of an uploaded sound.
	CustomAudioRef string
	// CustomAudioName is the original file name of the uploaded sound.
	CustomAudioName string
	// Label is a free-form caption.
	Label string
	// SnoozeDurationMinutes is the default snooze for this alarm, 0 meaning DefaultSnoozeMinutes.
	SnoozeDurationMinutes int
	// LastFiredAt is when the alarm last opened a ringing session.
	LastFiredAt time.Time
}

// New returns an alarm with the defaults used when the user adds one.
func New() *Alarm {
	return &Alarm{
		ID:       uuid.NewString(),
		Time:     DefaultTime,
		IsActive: true,
		RepeatDays: []time.Weekday{
			time.Monday,
			time.Tuesday,
			time.Wednesday,
			time.Thursday,
			time.Friday,
		},
		AudioMode:        AudioModePreset,
		SelectedPresetID: DefaultPresetID,
		Label:            DefaultLabel,
	}
}

// NewSnooze derives a one-shot alarm that rings minutes after now.
// Audio settings are inherited from source; a nil source falls back to the default preset.
func NewSnooze(source *Alarm, now time.Time, minutes int) *Alarm {
	snooze := &Alarm{
		ID:                    SnoozeIDPrefix + uuid.NewString(),
		Time:                  now.Add(time.Duration(minutes) * time.Minute).Format(clockLayout),
		IsActive:              true,
		RepeatDays:            []time.Weekday{},
		AudioMode:             AudioModePreset,
		SelectedPresetID:      DefaultPresetID,
		SnoozeDurationMinutes: minutes,
	}

	if source == nil {
		return snooze
	}

	snooze.AudioMode = source.AudioMode
	snooze.SelectedPresetID = source.SelectedPresetID
	snooze.CustomAudioRef = source.CustomAudioRef
	snooze.CustomAudioName = source.CustomAudioName
	snooze.Label = source.Label

	if source.SnoozeDurationMinutes > 0 {
		snooze.SnoozeDurationMinutes = source.SnoozeDurationMinutes
	}

	return snooze
}

// Clone returns a deep copy of the alarm.
func (a *Alarm) Clone() *Alarm {
	if a == nil {
		return nil
	}

	cloned := *a
	cloned.RepeatDays = slices.Clone(a.RepeatDays)

	return &cloned
}

// IsOneShot reports whether the alarm has no recurrence.
func (a *Alarm) IsOneShot() bool {
	return len(a.RepeatDays) == 0
}

// IsSnooze reports whether the alarm was synthesized by snoozing.
func (a *Alarm) IsSnooze() bool {
	return strings.HasPrefix(a.ID, SnoozeIDPrefix)
}

// RepeatsOn reports whether the alarm is scheduled for the given weekday.
func (a *Alarm) RepeatsOn(day time.Weekday) bool {
	return a.IsOneShot() || slices.Contains(a.RepeatDays, day)
}

// FiredDuring reports whether the alarm already fired in the minute containing now.
func (a *Alarm) FiredDuring(now time.Time) bool {
	if a.LastFiredAt.IsZero() {
		return false
	}

	return a.LastFiredAt.Truncate(time.Minute).Equal(now.Truncate(time.Minute))
}

// Matches reports whether the alarm is due at now.
// now must already be expressed in the scheduling time zone.
func (a *Alarm) Matches(now time.Time) bool {
	return a.IsActive &&
		a.Time == now.Format(clockLayout) &&
		a.RepeatsOn(now.Weekday()) &&
		!a.FiredDuring(now)
}

// SnoozeMinutes picks the snooze duration: requested when non-zero, else the alarm's own, else the default.
func (a *Alarm) SnoozeMinutes(requested int) int {
	if requested > 0 {
		return requested
	}

	if a != nil && a.SnoozeDurationMinutes > 0 {
		return a.SnoozeDurationMinutes
	}

	return DefaultSnoozeMinutes
}

// Validate checks the alarm invariants and normalizes RepeatDays (sorted, no duplicates).
func (a *Alarm) Validate() error {
	if err := ValidateTime(a.Time); err != nil {
		return err
	}

	for _, day := range a.RepeatDays {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("%w: %d", ErrInvalidWeekday, day)
		}
	}

	days := slices.Clone(a.RepeatDays)
	slices.Sort(days)
	a.RepeatDays = slices.Compact(days)

	if a.RepeatDays == nil {
		a.RepeatDays = []time.Weekday{}
	}

	if a.SnoozeDurationMinutes != 0 && !IsValidSnoozeDuration(a.SnoozeDurationMinutes) {
		return fmt.Errorf("%w: %d", ErrInvalidSnoozeDuration, a.SnoozeDurationMinutes)
	}

	switch a.AudioMode {
	case AudioModePreset:
		if _, ok := LookupPreset(a.SelectedPresetID); !ok {
			return fmt.Errorf("%w: %q", ErrUnknownPreset, a.SelectedPresetID)
		}
	case AudioModeCustom:
		if a.CustomAudioRef == "" {
			return ErrMissingCustomAudio
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAudioMode, a.AudioMode)
	}

	return nil
}

// ValidateTime checks that value is a zero-padded 24h HH:MM time.
func ValidateTime(value string) error {
	if len(value) != len(clockLayout) || value[2] != ':' {
		return fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}

	if _, err := time.Parse(clockLayout, value); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}

	return nil
}

// SnoozeDurations returns the snooze menu in minutes.
func SnoozeDurations() []int {
	return slices.Clone(snoozeDurations)
}

// IsValidSnoozeDuration reports whether minutes is on the snooze menu.
func IsValidSnoozeDuration(minutes int) bool {
	return slices.Contains(snoozeDurations, minutes)
}
