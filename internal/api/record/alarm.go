package record

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
)

// Alarm record field names.
const (
	FieldID                    = "id"
	FieldTime                  = "time"
	FieldIsActive              = "isActive"
	FieldRepeatDays            = "repeatDays"
	FieldAudioMode             = "audioMode"
	FieldSelectedPresetID      = "selectedPresetId"
	FieldCustomAudioRef        = "customAudioRef"
	FieldCustomAudioName       = "customAudioName"
	FieldLabel                 = "label"
	FieldSnoozeDurationMinutes = "snoozeDurationMinutes"
	FieldLastFiredAt           = "lastFiredAt"
	// FieldAlarms holds the list in AlarmsToStruct.
	FieldAlarms = "alarms"
)

var (
	// ErrMissingRecord is returned when a required record is absent.
	ErrMissingRecord = errors.New("record is required")
	// ErrMalformedRecord is returned when a field cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")
	// errNotInteger is returned when a numeric field carries a fraction.
	errNotInteger = errors.New("value must be an integer")
)

// AlarmToStruct encodes an alarm.
func AlarmToStruct(a *domain.Alarm) *structpb.Struct {
	days := make([]*structpb.Value, 0, len(a.RepeatDays))
	for _, day := range a.RepeatDays {
		days = append(days, structpb.NewNumberValue(float64(day)))
	}

	fields := map[string]*structpb.Value{
		FieldID:                    structpb.NewStringValue(a.ID),
		FieldTime:                  structpb.NewStringValue(a.Time),
		FieldIsActive:              structpb.NewBoolValue(a.IsActive),
		FieldRepeatDays:            structpb.NewListValue(&structpb.ListValue{Values: days}),
		FieldAudioMode:             structpb.NewStringValue(string(a.AudioMode)),
		FieldSelectedPresetID:      structpb.NewStringValue(a.SelectedPresetID),
		FieldCustomAudioRef:        structpb.NewStringValue(a.CustomAudioRef),
		FieldCustomAudioName:       structpb.NewStringValue(a.CustomAudioName),
		FieldLabel:                 structpb.NewStringValue(a.Label),
		FieldSnoozeDurationMinutes: structpb.NewNumberValue(float64(a.SnoozeDurationMinutes)),
	}

	if !a.LastFiredAt.IsZero() {
		fields[FieldLastFiredAt] = TimeValue(a.LastFiredAt)
	}

	return &structpb.Struct{Fields: fields}
}

// AlarmFromStruct decodes an alarm. Semantic checks are left to domain validation.
func AlarmFromStruct(s *structpb.Struct) (*domain.Alarm, error) {
	if s == nil {
		return nil, ErrMissingRecord
	}

	fields := s.GetFields()

	a := &domain.Alarm{
		ID:               fields[FieldID].GetStringValue(),
		Time:             fields[FieldTime].GetStringValue(),
		IsActive:         fields[FieldIsActive].GetBoolValue(),
		RepeatDays:       []time.Weekday{},
		AudioMode:        domain.AudioMode(fields[FieldAudioMode].GetStringValue()),
		SelectedPresetID: fields[FieldSelectedPresetID].GetStringValue(),
		CustomAudioRef:   fields[FieldCustomAudioRef].GetStringValue(),
		CustomAudioName:  fields[FieldCustomAudioName].GetStringValue(),
		Label:            fields[FieldLabel].GetStringValue(),
	}

	for _, value := range fields[FieldRepeatDays].GetListValue().GetValues() {
		day, err := Integer(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidWeekday, err)
		}

		a.RepeatDays = append(a.RepeatDays, time.Weekday(day))
	}

	minutes, err := Integer(fields[FieldSnoozeDurationMinutes])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidSnoozeDuration, err)
	}

	a.SnoozeDurationMinutes = minutes

	if a.LastFiredAt, err = ParseTime(fields[FieldLastFiredAt]); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, FieldLastFiredAt, err)
	}

	return a, nil
}

// AlarmsToStruct encodes an alarm list.
func AlarmsToStruct(alarms []*domain.Alarm) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(alarms))
	for _, a := range alarms {
		values = append(values, structpb.NewStructValue(AlarmToStruct(a)))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldAlarms: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// AlarmsFromStruct decodes an alarm list, failing on the first bad record.
func AlarmsFromStruct(s *structpb.Struct) ([]*domain.Alarm, error) {
	values := AlarmValues(s)
	alarms := make([]*domain.Alarm, 0, len(values))

	for _, value := range values {
		a, err := AlarmFromStruct(value.GetStructValue())
		if err != nil {
			return nil, err
		}

		alarms = append(alarms, a)
	}

	return alarms, nil
}

// AlarmValues returns the raw records of an encoded alarm list.
func AlarmValues(s *structpb.Struct) []*structpb.Value {
	return s.GetFields()[FieldAlarms].GetListValue().GetValues()
}

// TimeValue encodes t as RFC 3339.
func TimeValue(t time.Time) *structpb.Value {
	return structpb.NewStringValue(t.Format(time.RFC3339Nano))
}

// ParseTime decodes an RFC 3339 value. A missing value is the zero time.
func ParseTime(value *structpb.Value) (time.Time, error) {
	raw := value.GetStringValue()
	if raw == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, raw)
}

// Integer decodes a whole number. A missing value is zero.
func Integer(value *structpb.Value) (int, error) {
	n := value.GetNumberValue()
	if n != math.Trunc(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: %v", errNotInteger, n)
	}

	return int(n), nil
}
