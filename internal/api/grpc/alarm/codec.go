package alarm

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/morning-glow/internal/api/record"
	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/service/notify"
	"github.com/oshokin/morning-glow/internal/service/quote"
)

// Record field names of the status, quote, notification and preset records.
const (
	fieldRinging         = "ringing"
	fieldSession         = "session"
	fieldAlarm           = "alarm"
	fieldOpenedAt        = "openedAt"
	fieldVolume          = "volume"
	fieldQuote           = "quote"
	fieldText            = "text"
	fieldFetchedAt       = "fetchedAt"
	fieldFallback        = "fallback"
	fieldNotifications   = "notifications"
	fieldSeverity        = "severity"
	fieldMessage         = "message"
	fieldAt              = "at"
	fieldPresets         = "presets"
	fieldName            = "name"
	fieldURL             = "url"
	fieldSnoozeDurations = "snoozeDurations"
)

// Status is the daemon state returned by GetStatus.
type Status struct {
	// Session is the ringing session, nil while idle.
	Session *domain.Session
	// Volume is the live playback volume.
	Volume float64
	// Quote is the quote shown on wake-up.
	Quote quote.Quote
}

// PresetCatalog lists the choices offered when editing an alarm.
type PresetCatalog struct {
	Presets         []domain.Preset
	SnoozeDurations []int
}

// StatusToStruct encodes the daemon status.
func StatusToStruct(status Status) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldRinging: structpb.NewBoolValue(status.Session != nil),
		fieldVolume:  structpb.NewNumberValue(status.Volume),
		fieldQuote:   structpb.NewStructValue(QuoteToStruct(status.Quote)),
	}

	if status.Session != nil {
		fields[fieldSession] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldAlarm:    structpb.NewStructValue(record.AlarmToStruct(status.Session.Alarm)),
			fieldOpenedAt: record.TimeValue(status.Session.OpenedAt),
		}})
	}

	return &structpb.Struct{Fields: fields}
}

// StatusFromStruct decodes the daemon status.
func StatusFromStruct(s *structpb.Struct) (Status, error) {
	fields := s.GetFields()

	status := Status{
		Volume: fields[fieldVolume].GetNumberValue(),
	}

	q, err := QuoteFromStruct(fields[fieldQuote].GetStructValue())
	if err != nil {
		return Status{}, err
	}

	status.Quote = q

	if !fields[fieldRinging].GetBoolValue() {
		return status, nil
	}

	session := fields[fieldSession].GetStructValue().GetFields()

	a, err := record.AlarmFromStruct(session[fieldAlarm].GetStructValue())
	if err != nil {
		return Status{}, err
	}

	openedAt, err := record.ParseTime(session[fieldOpenedAt])
	if err != nil {
		return Status{}, fmt.Errorf("%w: %s: %w", record.ErrMalformedRecord, fieldOpenedAt, err)
	}

	status.Session = &domain.Session{Alarm: a, OpenedAt: openedAt}

	return status, nil
}

// QuoteToStruct encodes a quote.
func QuoteToStruct(q quote.Quote) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldText:     structpb.NewStringValue(q.Text),
		fieldFallback: structpb.NewBoolValue(q.Fallback),
	}

	if !q.FetchedAt.IsZero() {
		fields[fieldFetchedAt] = record.TimeValue(q.FetchedAt)
	}

	return &structpb.Struct{Fields: fields}
}

// QuoteFromStruct decodes a quote.
func QuoteFromStruct(s *structpb.Struct) (quote.Quote, error) {
	fields := s.GetFields()

	fetchedAt, err := record.ParseTime(fields[fieldFetchedAt])
	if err != nil {
		return quote.Quote{}, fmt.Errorf("%w: %s: %w", record.ErrMalformedRecord, fieldFetchedAt, err)
	}

	return quote.Quote{
		Text:      fields[fieldText].GetStringValue(),
		FetchedAt: fetchedAt,
		Fallback:  fields[fieldFallback].GetBoolValue(),
	}, nil
}

// NotificationsToStruct encodes the notification feed.
func NotificationsToStruct(items []notify.Notification) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(items))

	for _, item := range items {
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldSeverity: structpb.NewStringValue(string(item.Severity)),
			fieldMessage:  structpb.NewStringValue(item.Message),
			fieldAt:       record.TimeValue(item.At),
		}}))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldNotifications: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// NotificationsFromStruct decodes the notification feed.
func NotificationsFromStruct(s *structpb.Struct) ([]notify.Notification, error) {
	values := s.GetFields()[fieldNotifications].GetListValue().GetValues()
	items := make([]notify.Notification, 0, len(values))

	for _, value := range values {
		fields := value.GetStructValue().GetFields()

		at, err := record.ParseTime(fields[fieldAt])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", record.ErrMalformedRecord, fieldAt, err)
		}

		items = append(items, notify.Notification{
			Severity: notify.Severity(fields[fieldSeverity].GetStringValue()),
			Message:  fields[fieldMessage].GetStringValue(),
			At:       at,
		})
	}

	return items, nil
}

// PresetsToStruct encodes the preset table and snooze menu.
func PresetsToStruct(catalog PresetCatalog) *structpb.Struct {
	presets := make([]*structpb.Value, 0, len(catalog.Presets))
	for _, p := range catalog.Presets {
		presets = append(presets, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			record.FieldID: structpb.NewStringValue(p.ID),
			fieldName:      structpb.NewStringValue(p.Name),
			fieldURL:       structpb.NewStringValue(p.URL),
		}}))
	}

	durations := make([]*structpb.Value, 0, len(catalog.SnoozeDurations))
	for _, minutes := range catalog.SnoozeDurations {
		durations = append(durations, structpb.NewNumberValue(float64(minutes)))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldPresets:         structpb.NewListValue(&structpb.ListValue{Values: presets}),
		fieldSnoozeDurations: structpb.NewListValue(&structpb.ListValue{Values: durations}),
	}}
}

// PresetsFromStruct decodes the preset table and snooze menu.
func PresetsFromStruct(s *structpb.Struct) (PresetCatalog, error) {
	fields := s.GetFields()

	var catalog PresetCatalog

	for _, value := range fields[fieldPresets].GetListValue().GetValues() {
		preset := value.GetStructValue().GetFields()
		catalog.Presets = append(catalog.Presets, domain.Preset{
			ID:   preset[record.FieldID].GetStringValue(),
			Name: preset[fieldName].GetStringValue(),
			URL:  preset[fieldURL].GetStringValue(),
		})
	}

	for _, value := range fields[fieldSnoozeDurations].GetListValue().GetValues() {
		minutes, err := record.Integer(value)
		if err != nil {
			return PresetCatalog{}, fmt.Errorf("%w: %s: %w", record.ErrMalformedRecord, fieldSnoozeDurations, err)
		}

		catalog.SnoozeDurations = append(catalog.SnoozeDurations, minutes)
	}

	return catalog, nil
}
