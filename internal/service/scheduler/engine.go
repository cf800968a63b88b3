package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/logger"
	"github.com/oshokin/morning-glow/internal/metrics"
	repo "github.com/oshokin/morning-glow/internal/repository/alarms"
	"github.com/oshokin/morning-glow/internal/repository/blob"
	"github.com/oshokin/morning-glow/internal/service/notify"
)

const (
	// MessageSaved confirms an alarm edit.
	MessageSaved = "Alarm saved"
	// MessageStorageFull reports a failed write of the alarm list.
	MessageStorageFull = "Storage limit reached, alarm kept in memory only"
)

var (
	// ErrAlarmNotFound is returned for an unknown alarm ID.
	ErrAlarmNotFound = errors.New("alarm not found")
	// ErrAlarmRequired is returned when saving a nil alarm.
	ErrAlarmRequired = errors.New("alarm is required")
	// ErrReservedID is returned when a new alarm claims the snooze ID prefix.
	ErrReservedID = errors.New("alarm ID prefix is reserved for snoozes")
)

// Coordinator plays the sound of the ringing alarm.
type Coordinator interface {
	Start(ctx context.Context, a *domain.Alarm)
	Stop(ctx context.Context)
}

// QuoteRefresher refreshes the quote shown after waking up.
type QuoteRefresher interface {
	Refresh(ctx context.Context, force bool) error
}

// SoundStore deletes uploaded sounds.
type SoundStore interface {
	DeleteSound(ctx context.Context, key string) error
}

// Engine holds the alarm list and the ringing session.
type Engine struct {
	// repo persists the alarm list.
	repo repo.Repository
	// coordinator drives audio for the ringing alarm.
	coordinator Coordinator
	// quotes is refreshed after a stop. May be nil.
	quotes QuoteRefresher
	// notifier receives user-visible messages.
	notifier notify.Notifier
	// sounds drops uploads no alarm refers to any more. May be nil.
	sounds SoundStore
	// now is the wall clock.
	now func() time.Time
	// location is the scheduling time zone.
	location *time.Location

	// mu serializes ticks and user actions.
	mu sync.Mutex
	// alarms is the alarm list in insertion order.
	alarms []*domain.Alarm
	// session is the ringing session, nil while idle.
	session *domain.Session

	// background tracks fire-and-forget work started by user actions.
	background sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation sets the scheduling time zone.
func WithLocation(location *time.Location) Option {
	return func(e *Engine) {
		if location != nil {
			e.location = location
		}
	}
}

// WithCoordinator sets the audio coordinator.
func WithCoordinator(coordinator Coordinator) Option {
	return func(e *Engine) {
		e.coordinator = coordinator
	}
}

// WithQuoteRefresher sets the quote service refreshed after a stop.
func WithQuoteRefresher(quotes QuoteRefresher) Option {
	return func(e *Engine) {
		e.quotes = quotes
	}
}

// WithNotifier sets the notification surface.
func WithNotifier(notifier notify.Notifier) Option {
	return func(e *Engine) {
		e.notifier = notifier
	}
}

// WithSoundStore lets the engine delete uploaded sounds once no alarm uses them.
func WithSoundStore(sounds SoundStore) Option {
	return func(e *Engine) {
		e.sounds = sounds
	}
}

// NewEngine loads the alarm list from repository. A missing list starts empty.
func NewEngine(ctx context.Context, repository repo.Repository, opts ...Option) (*Engine, error) {
	e := &Engine{
		repo:        repository,
		coordinator: silentCoordinator{},
		notifier:    notify.Discard{},
		now:         time.Now,
		location:    time.Local,
		alarms:      make([]*domain.Alarm, 0),
	}

	for _, opt := range opts {
		opt(e)
	}

	if repository == nil {
		return e, nil
	}

	loaded, err := repository.Load(ctx)
	switch {
	case err == nil:
		e.alarms = append(e.alarms, loaded...)
	case errors.Is(err, repo.ErrNotFound):
		// Start with an empty list.
	default:
		return nil, fmt.Errorf("load alarms: %w", err)
	}

	logger.InfoKV(ctx, "Alarms loaded", "count", len(e.alarms))

	return e, nil
}

// Run ticks every interval until ctx is canceled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ctx = logger.WithName(ctx, "scheduler")

	if interval <= 0 {
		interval = time.Second
	}

	logger.InfoKV(ctx, "Scheduler started", "interval", interval.String(), "location", e.location.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.Tick(ctx, e.now())

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Scheduler stopped")
			return nil
		case <-ticker.C:
			e.Tick(ctx, e.now())
		}
	}
}

// Tick checks for a due alarm at now and opens a ringing session for the first match.
// It returns the opened session, or nil when nothing fired or a session is already open.
func (e *Engine) Tick(ctx context.Context, now time.Time) *domain.Session {
	now = now.In(e.location)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return nil
	}

	var matched []*domain.Alarm

	for _, a := range e.alarms {
		if a.Matches(now) {
			matched = append(matched, a)
		}
	}

	if len(matched) == 0 {
		return nil
	}

	winner := matched[0]

	for _, a := range matched {
		a.LastFiredAt = now

		if a.IsOneShot() && !a.IsSnooze() {
			a.IsActive = false
		}

		if a != winner {
			metrics.AlarmsDropped.Inc()
			logger.WarnKV(ctx, "Alarm skipped, another alarm rings this minute",
				"alarm_id", a.ID, "ringing_id", winner.ID, "time", a.Time)
			e.notifier.Notify(ctx, notify.SeverityWarning,
				fmt.Sprintf("Alarm %q at %s was skipped because another alarm is ringing", displayName(a), a.Time))
		}
	}

	var retired []string

	e.alarms = slices.DeleteFunc(e.alarms, func(a *domain.Alarm) bool {
		done := a.IsSnooze() && slices.Contains(matched, a)
		if done {
			retired = append(retired, a.CustomAudioRef)
		}

		return done
	})

	e.session = &domain.Session{
		Alarm:    winner.Clone(),
		OpenedAt: now,
	}

	metrics.AlarmsFired.WithLabelValues(kind(winner)).Inc()
	metrics.Ringing.Set(1)

	logger.InfoKV(ctx, "Alarm ringing", "alarm_id", winner.ID, "label", winner.Label, "time", winner.Time)

	if e.persistLocked(ctx) {
		e.releaseSoundsLocked(ctx, retired...)
	}

	e.coordinator.Start(ctx, e.session.Alarm)

	return e.session.Clone()
}

// Stop closes the ringing session and refreshes the quote in the background.
// It reports whether a session was open; stopping while idle changes nothing.
func (e *Engine) Stop(ctx context.Context) bool {
	e.mu.Lock()

	if e.session == nil {
		e.mu.Unlock()
		return false
	}

	closed := e.session
	e.closeSessionLocked(ctx, "stop")
	e.mu.Unlock()

	logger.InfoKV(ctx, "Alarm stopped", "alarm_id", closed.Alarm.ID)

	e.refreshQuote(ctx)

	return true
}

// Snooze closes the ringing session and schedules a one-shot alarm minutes from now.
// Zero minutes picks the ringing alarm's snooze duration, or the default without a session.
func (e *Engine) Snooze(ctx context.Context, minutes int) (*domain.Alarm, error) {
	if minutes != 0 && !domain.IsValidSnoozeDuration(minutes) {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidSnoozeDuration, minutes)
	}

	now := e.now().In(e.location)

	e.mu.Lock()
	defer e.mu.Unlock()

	var source *domain.Alarm
	if e.session != nil {
		source = e.session.Alarm
	}

	minutes = source.SnoozeMinutes(minutes)
	snooze := domain.NewSnooze(source, now, minutes)
	e.alarms = append(e.alarms, snooze)

	if e.session != nil {
		e.closeSessionLocked(ctx, "snooze")
	}

	logger.InfoKV(ctx, "Alarm snoozed", "alarm_id", snooze.ID, "time", snooze.Time, "minutes", minutes)

	e.persistLocked(ctx)
	e.notifier.Notify(ctx, notify.SeverityInfo, fmt.Sprintf("Snoozed for %d minutes", minutes))

	return snooze.Clone(), nil
}

// Session returns a copy of the ringing session, or nil while idle.
func (e *Engine) Session() *domain.Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.session.Clone()
}

// Alarms returns copies of the alarms in insertion order. Snooze instances are
// included only when includeSnoozes is set.
func (e *Engine) Alarms(includeSnoozes bool) []*domain.Alarm {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make([]*domain.Alarm, 0, len(e.alarms))

	for _, a := range e.alarms {
		if a.IsSnooze() && !includeSnoozes {
			continue
		}

		result = append(result, a.Clone())
	}

	return result
}

// Alarm returns a copy of the alarm with id.
func (e *Engine) Alarm(id string) (*domain.Alarm, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexLocked(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlarmNotFound, id)
	}

	return e.alarms[idx].Clone(), nil
}

// SaveAlarm validates a and inserts it, or replaces the alarm with the same ID in place.
// An empty ID creates a new alarm.
func (e *Engine) SaveAlarm(ctx context.Context, a *domain.Alarm) (*domain.Alarm, error) {
	if a == nil {
		return nil, ErrAlarmRequired
	}

	candidate := a.Clone()
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}

	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var replacedRef string

	idx := e.indexLocked(candidate.ID)

	switch {
	case idx >= 0:
		previous := e.alarms[idx]
		replacedRef = previous.CustomAudioRef

		// The fired marker only holds for an unchanged time.
		candidate.LastFiredAt = time.Time{}
		if previous.Time == candidate.Time {
			candidate.LastFiredAt = previous.LastFiredAt
		}

		e.alarms[idx] = candidate
	case candidate.IsSnooze():
		return nil, fmt.Errorf("%w: %s", ErrReservedID, candidate.ID)
	default:
		candidate.LastFiredAt = time.Time{}
		e.alarms = append(e.alarms, candidate)
	}

	logger.InfoKV(ctx, "Alarm saved", "alarm_id", candidate.ID, "time", candidate.Time, "days", candidate.RepeatDays)

	if e.persistLocked(ctx) {
		e.releaseSoundsLocked(ctx, replacedRef)
	}

	e.notifier.Notify(ctx, notify.SeveritySuccess, MessageSaved)

	return candidate.Clone(), nil
}

// DeleteAlarm removes the alarm with id. A ringing session keeps its snapshot.
func (e *Engine) DeleteAlarm(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrAlarmNotFound, id)
	}

	deleted := e.alarms[idx]
	e.alarms = slices.Delete(e.alarms, idx, idx+1)

	logger.InfoKV(ctx, "Alarm deleted", "alarm_id", id)

	if e.persistLocked(ctx) {
		e.releaseSoundsLocked(ctx, deleted.CustomAudioRef)
	}

	return nil
}

// ToggleAlarm flips the active flag. Re-activation forgets when the alarm last fired.
func (e *Engine) ToggleAlarm(ctx context.Context, id string) (*domain.Alarm, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexLocked(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlarmNotFound, id)
	}

	a := e.alarms[idx]
	a.IsActive = !a.IsActive

	if a.IsActive {
		a.LastFiredAt = time.Time{}
	}

	logger.InfoKV(ctx, "Alarm toggled", "alarm_id", id, "is_active", a.IsActive)

	e.persistLocked(ctx)

	return a.Clone(), nil
}

// Wait blocks until background work started by Stop has finished.
func (e *Engine) Wait() {
	e.background.Wait()
}

// closeSessionLocked ends the session and silences the coordinator. e.mu must be held.
func (e *Engine) closeSessionLocked(ctx context.Context, action string) {
	closed := e.session
	e.session = nil
	e.coordinator.Stop(ctx)
	e.releaseSoundsLocked(ctx, closed.Alarm.CustomAudioRef)

	metrics.Ringing.Set(0)
	metrics.SessionsClosed.WithLabelValues(action).Inc()
}

// persistLocked writes the list and reports whether it was stored.
// A failure is reported and the in-memory list stays authoritative.
func (e *Engine) persistLocked(ctx context.Context) bool {
	if e.repo == nil {
		return true
	}

	if err := e.repo.Save(ctx, e.alarms); err != nil {
		metrics.PersistFailures.Inc()
		logger.ErrorKV(ctx, "Failed to persist alarms", "error", err)
		e.notifier.Notify(ctx, notify.SeverityError, MessageStorageFull)

		return false
	}

	return true
}

// releaseSoundsLocked deletes the uploaded sounds among refs that no alarm and
// no ringing session uses. e.mu must be held.
func (e *Engine) releaseSoundsLocked(ctx context.Context, refs ...string) {
	if e.sounds == nil {
		return
	}

	for _, ref := range refs {
		if !strings.HasPrefix(ref, blob.SoundKeyPrefix) || e.soundInUseLocked(ref) {
			continue
		}

		if err := e.sounds.DeleteSound(ctx, ref); err != nil {
			logger.WarnKV(ctx, "Failed to delete unused sound", "ref", ref, "error", err)

			continue
		}

		logger.InfoKV(ctx, "Unused sound deleted", "ref", ref)
	}
}

func (e *Engine) soundInUseLocked(ref string) bool {
	if e.session != nil && e.session.Alarm.CustomAudioRef == ref {
		return true
	}

	return slices.ContainsFunc(e.alarms, func(a *domain.Alarm) bool {
		return a.CustomAudioRef == ref
	})
}

func (e *Engine) refreshQuote(ctx context.Context) {
	if e.quotes == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)

	e.background.Go(func() {
		if err := e.quotes.Refresh(ctx, false); err != nil {
			logger.DebugKV(ctx, "Quote not refreshed after stop", "error", err)
		}
	})
}

func (e *Engine) indexLocked(id string) int {
	return slices.IndexFunc(e.alarms, func(a *domain.Alarm) bool {
		return a.ID == id
	})
}

func kind(a *domain.Alarm) string {
	switch {
	case a.IsSnooze():
		return metrics.KindSnooze
	case a.IsOneShot():
		return metrics.KindOneShot
	default:
		return metrics.KindRepeating
	}
}

func displayName(a *domain.Alarm) string {
	if a.Label != "" {
		return a.Label
	}

	return a.ID
}

// silentCoordinator is used when no audio is wired.
type silentCoordinator struct{}

func (silentCoordinator) Start(context.Context, *domain.Alarm) {}

func (silentCoordinator) Stop(context.Context) {}
