package client

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	api "github.com/oshokin/morning-glow/internal/api/grpc/alarm"
	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/service/notify"
	"github.com/oshokin/morning-glow/internal/service/quote"
)

const timestampLayout = "2006-01-02 15:04:05"

// WriteAlarms prints the alarm list as an aligned table.
func WriteAlarms(w io.Writer, alarms []*domain.Alarm) error {
	if len(alarms) == 0 {
		_, err := fmt.Fprintln(w, "No alarms.")

		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "ID\tTIME\tDAYS\tACTIVE\tSOUND\tSNOOZE\tLABEL")

	for _, a := range alarms {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.Time,
			FormatDays(a.RepeatDays),
			onOff(a.IsActive),
			FormatSound(a),
			formatSnooze(a.SnoozeDurationMinutes),
			a.Label,
		)
	}

	return tw.Flush()
}

// FormatAlarm renders one alarm on a single line.
func FormatAlarm(a *domain.Alarm) string {
	if a == nil {
		return "<nil alarm>"
	}

	return fmt.Sprintf("%s %s (%s, %s) %q [%s]",
		a.Time, FormatDays(a.RepeatDays), FormatSound(a), onOff(a.IsActive), a.Label, a.ID)
}

// FormatDays renders repeat days as short names, with shortcuts for common sets.
func FormatDays(days []time.Weekday) string {
	set := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		set[d] = true
	}

	weekdays := set[time.Monday] && set[time.Tuesday] && set[time.Wednesday] && set[time.Thursday] && set[time.Friday]
	weekends := set[time.Saturday] && set[time.Sunday]

	switch {
	case len(set) == 0:
		return DaysOnce
	case len(set) == 7:
		return DaysDaily
	case len(set) == 5 && weekdays:
		return DaysWeekdays
	case len(set) == 2 && weekends:
		return DaysWeekends
	}

	names := make([]string, 0, len(set))

	for day := time.Sunday; day <= time.Saturday; day++ {
		if set[day] {
			names = append(names, day.String()[:3])
		}
	}

	return strings.Join(names, ",")
}

// FormatSound names the sound an alarm plays.
func FormatSound(a *domain.Alarm) string {
	if a.AudioMode == domain.AudioModeCustom {
		if a.CustomAudioName != "" {
			return "custom: " + a.CustomAudioName
		}

		return "custom"
	}

	if p, ok := domain.LookupPreset(a.SelectedPresetID); ok {
		return p.Name
	}

	return a.SelectedPresetID
}

// WriteStatus prints the ringing session, the volume and the quote.
func WriteStatus(w io.Writer, status api.Status) error {
	state := "idle"
	if status.Session != nil {
		state = fmt.Sprintf("RINGING since %s: %s",
			status.Session.OpenedAt.Format(timestampLayout), FormatAlarm(status.Session.Alarm))
	}

	_, err := fmt.Fprintf(w, "State:  %s\nVolume: %d%%\nQuote:  %s\n",
		state, int(status.Volume*100+0.5), FormatQuote(status.Quote))

	return err
}

// FormatQuote renders a quote with its origin.
func FormatQuote(q quote.Quote) string {
	if q.Fallback {
		return q.Text + " (offline)"
	}

	if q.FetchedAt.IsZero() {
		return q.Text
	}

	return fmt.Sprintf("%s (fetched %s)", q.Text, q.FetchedAt.Local().Format(timestampLayout))
}

// WriteNotifications prints notifications oldest first.
func WriteNotifications(w io.Writer, items []notify.Notification) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No notifications.")

		return err
	}

	for _, n := range items {
		if _, err := fmt.Fprintf(w, "%s  %-7s  %s\n",
			n.At.Local().Format(timestampLayout), strings.ToUpper(string(n.Severity)), n.Message); err != nil {
			return err
		}
	}

	return nil
}

// WritePresets prints the preset sounds and the snooze menu.
func WritePresets(w io.Writer, catalog api.PresetCatalog) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "PRESET\tNAME")

	for _, p := range catalog.Presets {
		marker := ""
		if p.ID == domain.DefaultPresetID {
			marker = " (default)"
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s%s\n", p.ID, p.Name, marker)
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	minutes := make([]string, 0, len(catalog.SnoozeDurations))
	for _, m := range catalog.SnoozeDurations {
		minutes = append(minutes, fmt.Sprintf("%d", m))
	}

	_, err := fmt.Fprintf(w, "\nSnooze durations (minutes): %s\n", strings.Join(minutes, ", "))

	return err
}

func formatSnooze(minutes int) string {
	if minutes <= 0 {
		return fmt.Sprintf("%dm", domain.DefaultSnoozeMinutes)
	}

	return fmt.Sprintf("%dm", minutes)
}

func onOff(active bool) string {
	if active {
		return "on"
	}

	return "off"
}
