package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "morning_glow"

// Alarm kinds used as label values.
const (
	KindRepeating = "repeating"
	KindOneShot   = "one_shot"
	KindSnooze    = "snooze"
)

//nolint:gochecknoglobals // Prometheus instruments are process-wide.
var (
	// AlarmsFired counts ringing sessions opened, by alarm kind.
	AlarmsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alarms_fired_total",
		Help:      "Ringing sessions opened by the scheduler.",
	}, []string{"kind"})

	// AlarmsDropped counts alarms that matched in the same minute as another one and did not ring.
	AlarmsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alarms_dropped_total",
		Help:      "Alarms that matched while another alarm won the minute.",
	})

	// Ringing is 1 while a ringing session is open.
	Ringing = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ringing",
		Help:      "Whether an alarm is currently ringing.",
	})

	// SessionsClosed counts how ringing sessions ended.
	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_closed_total",
		Help:      "Ringing sessions closed, by action.",
	}, []string{"action"})

	// PlaybackFailures counts audio problems by reason.
	PlaybackFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_failures_total",
		Help:      "Audio sources that could not be resolved or played.",
	}, []string{"reason"})

	// StaleResolutions counts audio resolutions discarded because the session moved on.
	StaleResolutions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_resolutions_total",
		Help:      "Audio resolutions discarded after being superseded.",
	})

	// PersistFailures counts alarm list writes that failed.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persist_failures_total",
		Help:      "Failed writes of the alarm list.",
	})

	// QuoteRefreshes counts quote refresh attempts by result.
	QuoteRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quote_refreshes_total",
		Help:      "Quote refresh attempts, by result.",
	}, []string{"result"})
)
