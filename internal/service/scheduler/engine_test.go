package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	repo "github.com/oshokin/morning-glow/internal/repository/alarms"
	"github.com/oshokin/morning-glow/internal/service/notify"
)

var (
	errTestLoad = errors.New("test load error")
	errDiskFull = errors.New("disk full")
)

// memoryRepository is an in-memory Repository for tests.
type memoryRepository struct {
	mu sync.Mutex
	// alarms is returned from Load.
	alarms []*domain.Alarm
	// loadErr is returned from Load.
	loadErr error
	// saveErr is returned from Save.
	saveErr error
	// saved is the last list passed to Save.
	saved []*domain.Alarm
	// saves counts Save calls.
	saves int
}

func (m *memoryRepository) Load(context.Context) ([]*domain.Alarm, error) {
	return m.alarms, m.loadErr
}

func (m *memoryRepository) Save(_ context.Context, alarms []*domain.Alarm) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++

	if m.saveErr != nil {
		return m.saveErr
	}

	m.saved = make([]*domain.Alarm, 0, len(alarms))
	for _, a := range alarms {
		m.saved = append(m.saved, a.Clone())
	}

	return nil
}

// fakeCoordinator records audio calls.
type fakeCoordinator struct {
	mu     sync.Mutex
	starts []string
	stops  int
}

func (f *fakeCoordinator) Start(_ context.Context, a *domain.Alarm) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.starts = append(f.starts, a.ID)
}

func (f *fakeCoordinator) Stop(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stops++
}

func (f *fakeCoordinator) started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.starts...)
}

// fakeQuotes counts refreshes.
type fakeQuotes struct {
	mu     sync.Mutex
	forced []bool
}

func (f *fakeQuotes) Refresh(_ context.Context, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.forced = append(f.forced, force)

	return nil
}

func (f *fakeQuotes) calls() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]bool(nil), f.forced...)
}

// monday0700 is Monday, January 1st 2024, 07:00:00 UTC.
var monday0700 = time.Date(2024, time.January, 1, 7, 0, 0, 0, time.UTC)

func repeating(id, at string, days ...time.Weekday) *domain.Alarm {
	a := domain.New()
	a.ID = id
	a.Time = at
	a.RepeatDays = days

	return a
}

func oneShot(id, at string) *domain.Alarm {
	a := domain.New()
	a.ID = id
	a.Time = at
	a.RepeatDays = []time.Weekday{}

	return a
}

type harness struct {
	engine *Engine
	repo   *memoryRepository
	audio  *fakeCoordinator
	quotes *fakeQuotes
	feed   *notify.Feed
	clock  *time.Time
}

func newHarness(t *testing.T, alarms ...*domain.Alarm) *harness {
	t.Helper()

	now := monday0700
	h := &harness{
		repo:   &memoryRepository{alarms: alarms},
		audio:  new(fakeCoordinator),
		quotes: new(fakeQuotes),
		feed:   notify.NewFeed(0),
		clock:  &now,
	}

	engine, err := NewEngine(context.Background(), h.repo,
		WithClock(func() time.Time { return *h.clock }),
		WithLocation(time.UTC),
		WithCoordinator(h.audio),
		WithQuoteRefresher(h.quotes),
		WithNotifier(h.feed),
	)
	require.NoError(t, err)

	h.engine = engine

	return h
}

// TestNewEngine_LoadsOrStartsEmpty covers an existing list, a missing list and a broken store.
func TestNewEngine_LoadsOrStartsEmpty(t *testing.T) {
	t.Parallel()

	e, err := NewEngine(context.Background(), &memoryRepository{alarms: []*domain.Alarm{domain.New()}})
	require.NoError(t, err)
	require.Len(t, e.Alarms(true), 1)

	e, err = NewEngine(context.Background(), &memoryRepository{loadErr: repo.ErrNotFound})
	require.NoError(t, err)
	require.Empty(t, e.Alarms(true))

	e, err = NewEngine(context.Background(), &memoryRepository{loadErr: errTestLoad})
	require.ErrorIs(t, err, errTestLoad)
	require.Nil(t, e)
}

// TestTick_MondayFiresOncePerMinute rings a weekday alarm at 07:00 and never again in that minute.
func TestTick_MondayFiresOncePerMinute(t *testing.T) {
	t.Parallel()

	h := newHarness(t, repeating("weekday", "07:00", time.Monday, time.Wednesday, time.Friday))

	session := h.engine.Tick(context.Background(), monday0700)
	require.NotNil(t, session)
	require.Equal(t, "weekday", session.Alarm.ID)
	require.Equal(t, []string{"weekday"}, h.audio.started())

	// Ringing blocks further scans.
	require.Nil(t, h.engine.Tick(context.Background(), monday0700.Add(time.Second)))

	require.True(t, h.engine.Stop(context.Background()))

	for second := 1; second < 60; second++ {
		require.Nil(t, h.engine.Tick(context.Background(), monday0700.Add(time.Duration(second)*time.Second)))
	}

	require.Len(t, h.audio.started(), 1)

	// Still active, fires again on the next matching day.
	alarms := h.engine.Alarms(false)
	require.True(t, alarms[0].IsActive)
	require.Nil(t, h.engine.Tick(context.Background(), monday0700.AddDate(0, 0, 1)))
	require.NotNil(t, h.engine.Tick(context.Background(), monday0700.AddDate(0, 0, 2)))

	require.NotNil(t, h.repo.saved)
	require.True(t, h.repo.saved[0].LastFiredAt.Equal(monday0700.AddDate(0, 0, 2)))
}

// TestTick_FirstMatchWins opens exactly one session when two alarms share a minute.
func TestTick_FirstMatchWins(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		repeating("first", "07:00", time.Monday),
		repeating("second", "07:00", time.Monday),
	)

	session := h.engine.Tick(context.Background(), monday0700)
	require.NotNil(t, session)
	require.Equal(t, "first", session.Alarm.ID)

	require.True(t, h.engine.Stop(context.Background()))
	require.Nil(t, h.engine.Tick(context.Background(), monday0700.Add(10*time.Second)))
	require.Equal(t, []string{"first"}, h.audio.started())

	recent := h.feed.Recent()
	require.Len(t, recent, 1)
	require.Equal(t, notify.SeverityWarning, recent[0].Severity)
}

// TestTick_DelayedTickStillFires checks a tick landing two seconds into the minute still rings.
func TestTick_DelayedTickStillFires(t *testing.T) {
	t.Parallel()

	h := newHarness(t, repeating("weekday", "07:00", time.Monday))

	require.NotNil(t, h.engine.Tick(context.Background(), monday0700.Add(2*time.Second)))
}

// TestTick_UsesLocation checks the time is compared in the scheduling zone.
func TestTick_UsesLocation(t *testing.T) {
	t.Parallel()

	zone := time.FixedZone("UTC+3", 3*60*60)
	e, err := NewEngine(context.Background(), nil, WithLocation(zone))
	require.NoError(t, err)

	_, err = e.SaveAlarm(context.Background(), oneShot("", "10:00"))
	require.NoError(t, err)

	require.NotNil(t, e.Tick(context.Background(), monday0700))
}

// TestTick_OneShotIsDeactivated checks a one-shot alarm rings once and then stays off.
func TestTick_OneShotIsDeactivated(t *testing.T) {
	t.Parallel()

	h := newHarness(t, oneShot("once", "07:00"))

	require.NotNil(t, h.engine.Tick(context.Background(), monday0700))
	require.True(t, h.engine.Stop(context.Background()))

	alarms := h.engine.Alarms(false)
	require.Len(t, alarms, 1)
	require.False(t, alarms[0].IsActive)

	require.Nil(t, h.engine.Tick(context.Background(), monday0700.AddDate(0, 0, 1)))
}

// TestTick_WaitsForSessionToClose checks a due alarm rings after the current session closes within its minute.
func TestTick_WaitsForSessionToClose(t *testing.T) {
	t.Parallel()

	h := newHarness(t,
		repeating("early", "07:00", time.Monday),
		repeating("late", "07:01", time.Monday),
	)

	require.NotNil(t, h.engine.Tick(context.Background(), monday0700))
	require.Nil(t, h.engine.Tick(context.Background(), monday0700.Add(time.Minute)))

	require.True(t, h.engine.Stop(context.Background()))

	session := h.engine.Tick(context.Background(), monday0700.Add(time.Minute+30*time.Second))
	require.NotNil(t, session)
	require.Equal(t, "late", session.Alarm.ID)
}

// TestSnooze_SchedulesOneShot snoozes at 07:00:03 for five minutes.
func TestSnooze_SchedulesOneShot(t *testing.T) {
	t.Parallel()

	source := repeating("weekday", "07:00", time.Monday)
	source.AudioMode = domain.AudioModeCustom
	source.CustomAudioRef = "sound/rooster"
	source.CustomAudioName = "rooster.mp3"

	h := newHarness(t, source)

	require.NotNil(t, h.engine.Tick(context.Background(), monday0700))

	*h.clock = monday0700.Add(3 * time.Second)

	snooze, err := h.engine.Snooze(context.Background(), 5)
	require.NoError(t, err)
	require.True(t, snooze.IsSnooze())
	require.Equal(t, "07:05", snooze.Time)
	require.Empty(t, snooze.RepeatDays)
	require.True(t, snooze.IsActive)
	require.Equal(t, domain.AudioModeCustom, snooze.AudioMode)
	require.Equal(t, "sound/rooster", snooze.CustomAudioRef)

	require.Nil(t, h.engine.Session())
	require.Equal(t, 1, h.audio.stops)

	// Hidden from the editable list, kept in the full list.
	visible := h.engine.Alarms(false)
	require.Len(t, visible, 1)
	require.Equal(t, "weekday", visible[0].ID)
	require.Equal(t, []time.Weekday{time.Monday}, visible[0].RepeatDays)
	require.True(t, visible[0].IsActive)
	require.Len(t, h.engine.Alarms(true), 2)

	// Snoozing does not refresh the quote.
	require.Empty(t, h.quotes.calls())
}

// TestSnooze_InstanceIsRemovedAfterFiring checks the snooze rings once and disappears.
func TestSnooze_InstanceIsRemovedAfterFiring(t *testing.T) {
	t.Parallel()

	h := newHarness(t, repeating("weekday", "07:00", time.Monday))

	require.NotNil(t, h.engine.Tick(context.Background(), monday0700))

	snooze, err := h.engine.Snooze(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, "07:05", snooze.Time)

	session := h.engine.Tick(context.Background(), monday0700.Add(5*time.Minute))
	require.NotNil(t, session)
	require.Equal(t, snooze.ID, session.Alarm.ID)

	require.Len(t, h.engine.Alarms(true), 1)
	require.Len(t, h.repo.saved, 1)
}

// TestSnooze_Validation rejects durations outside the menu and tolerates a missing session.
func TestSnooze_Validation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	_, err := h.engine.Snooze(context.Background(), 7)
	require.ErrorIs(t, err, domain.ErrInvalidSnoozeDuration)

	snooze, err := h.engine.Snooze(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, "07:10", snooze.Time)
	require.Equal(t, domain.DefaultPresetID, snooze.SelectedPresetID)
	require.Zero(t, h.audio.stops)
}

// TestStop_IdleIsNoop checks stopping without a session changes nothing.
func TestStop_IdleIsNoop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, repeating("weekday", "07:00", time.Monday))

	require.False(t, h.engine.Stop(context.Background()))
	h.engine.Wait()

	require.Empty(t, h.quotes.calls())
	require.Zero(t, h.audio.stops)
	require.Zero(t, h.repo.saves)
}

// TestStop_RefreshesQuote checks a stop triggers one non-forced refresh.
func TestStop_RefreshesQuote(t *testing.T) {
	t.Parallel()

	h := newHarness(t, repeating("weekday", "07:00", time.Monday))

	require.NotNil(t, h.engine.Tick(context.Background(), monday0700))
	require.True(t, h.engine.Stop(context.Background()))
	require.False(t, h.engine.Stop(context.Background()))
	h.engine.Wait()

	require.Equal(t, []bool{false}, h.quotes.calls())
	require.Equal(t, 1, h.audio.stops)
}

// TestSaveAlarm_InsertAndReplace covers creation, in-place edits and validation.
func TestSaveAlarm_InsertAndReplace(t *testing.T) {
	t.Parallel()

	h := newHarness(t, repeating("weekday", "07:00", time.Monday))

	created, err := h.engine.SaveAlarm(context.Background(), &domain.Alarm{
		Time:             "06:15",
		IsActive:         true,
		RepeatDays:       []time.Weekday{time.Friday, time.Monday, time.Friday},
		AudioMode:        domain.AudioModePreset,
		SelectedPresetID: "piano",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, []time.Weekday{time.Monday, time.Friday}, created.RepeatDays)

	edited := created.Clone()
	edited.Label = "Gym"

	_, err = h.engine.SaveAlarm(context.Background(), edited)
	require.NoError(t, err)

	alarms := h.engine.Alarms(false)
	require.Len(t, alarms, 2)
	require.Equal(t, "weekday", alarms[0].ID)
	require.Equal(t, "Gym", alarms[1].Label)

	bad := created.Clone()
	bad.Time = "7:00"

	_, err = h.engine.SaveAlarm(context.Background(), bad)
	require.ErrorIs(t, err, domain.ErrInvalidTime)

	_, err = h.engine.SaveAlarm(context.Background(), nil)
	require.ErrorIs(t, err, ErrAlarmRequired)

	recent := h.feed.Recent()
	require.Len(t, recent, 2)
	require.Equal(t, MessageSaved, recent[1].Message)
	require.Equal(t, notify.SeveritySuccess, recent[1].Severity)
}

// TestSaveAlarm_RetimeAllowsFiringAgain checks moving a fired alarm to the current minute lets it ring.
func TestSaveAlarm_RetimeAllowsFiringAgain(t *testing.T) {
	t.Parallel()

	h := newHarness(t, repeating("weekday", "07:00", time.Monday))

	require.NotNil(t, h.engine.Tick(context.Background(), monday0700))
	require.True(t, h.engine.Stop(context.Background()))

	fired, err := h.engine.Alarm("weekday")
	require.NoError(t, err)
	require.False(t, fired.LastFiredAt.IsZero())

	fired.Label = "Renamed"

	_, err = h.engine.SaveAlarm(context.Background(), fired)
	require.NoError(t, err)
	require.Nil(t, h.engine.Tick(context.Background(), monday0700.Add(5*time.Second)))

	fired.Time = "07:01"

	_, err = h.engine.SaveAlarm(context.Background(), fired)
	require.NoError(t, err)
	require.NotNil(t, h.engine.Tick(context.Background(), monday0700.Add(time.Minute)))
}

// TestDeleteAndToggle covers removal, unknown IDs and re-activation.
func TestDeleteAndToggle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, oneShot("once", "07:00"), repeating("keep", "08:00", time.Monday))

	require.NotNil(t, h.engine.Tick(context.Background(), monday0700))
	require.True(t, h.engine.Stop(context.Background()))

	toggled, err := h.engine.ToggleAlarm(context.Background(), "once")
	require.NoError(t, err)
	require.True(t, toggled.IsActive)
	require.True(t, toggled.LastFiredAt.IsZero())

	toggled, err = h.engine.ToggleAlarm(context.Background(), "keep")
	require.NoError(t, err)
	require.False(t, toggled.IsActive)

	require.NoError(t, h.engine.DeleteAlarm(context.Background(), "once"))
	require.ErrorIs(t, h.engine.DeleteAlarm(context.Background(), "once"), ErrAlarmNotFound)

	_, err = h.engine.ToggleAlarm(context.Background(), "missing")
	require.ErrorIs(t, err, ErrAlarmNotFound)

	_, err = h.engine.Alarm("missing")
	require.ErrorIs(t, err, ErrAlarmNotFound)

	require.Len(t, h.repo.saved, 1)
	require.Equal(t, "keep", h.repo.saved[0].ID)
}

// TestPersistFailure_KeepsMemory checks a failed write is reported and the list survives in memory.
func TestPersistFailure_KeepsMemory(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.saveErr = errDiskFull

	saved, err := h.engine.SaveAlarm(context.Background(), domain.New())
	require.NoError(t, err)

	alarms := h.engine.Alarms(false)
	require.Len(t, alarms, 1)
	require.Equal(t, saved.ID, alarms[0].ID)

	recent := h.feed.Recent()
	require.Len(t, recent, 2)
	require.Equal(t, notify.SeverityError, recent[0].Severity)
	require.Equal(t, MessageStorageFull, recent[0].Message)
}

// TestAccessorsReturnCopies ensures callers cannot mutate engine state.
func TestAccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	h := newHarness(t, repeating("weekday", "07:00", time.Monday))
	require.NotNil(t, h.engine.Tick(context.Background(), monday0700))

	session := h.engine.Session()
	session.Alarm.Label = "changed"

	alarms := h.engine.Alarms(false)
	alarms[0].RepeatDays[0] = time.Sunday

	require.NotEqual(t, "changed", h.engine.Session().Alarm.Label)
	require.Equal(t, time.Monday, h.engine.Alarms(false)[0].RepeatDays[0])
}

// fakeSounds records sound deletions.
type fakeSounds struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakeSounds) DeleteSound(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, key)

	return nil
}

func (f *fakeSounds) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.deleted...)
}

func custom(id, at, ref string) *domain.Alarm {
	a := repeating(id, at, time.Monday)
	a.AudioMode = domain.AudioModeCustom
	a.CustomAudioRef = ref
	a.CustomAudioName = "song.mp3"

	return a
}

// TestSoundCleanup_DeletesUnusedUploads checks uploads are removed once nothing refers to them.
func TestSoundCleanup_DeletesUnusedUploads(t *testing.T) {
	t.Parallel()

	sounds := new(fakeSounds)
	memory := &memoryRepository{alarms: []*domain.Alarm{
		custom("a", "06:00", "sound/a"),
		custom("b1", "06:30", "sound/b"),
		custom("b2", "06:45", "sound/b"),
		custom("ext", "08:00", "/music/song.mp3"),
	}}

	e, err := NewEngine(context.Background(), memory, WithSoundStore(sounds))
	require.NoError(t, err)

	require.NoError(t, e.DeleteAlarm(context.Background(), "a"))
	require.NoError(t, e.DeleteAlarm(context.Background(), "b1"))
	require.NoError(t, e.DeleteAlarm(context.Background(), "ext"))
	require.Equal(t, []string{"sound/a"}, sounds.keys())

	replaced, err := e.Alarm("b2")
	require.NoError(t, err)

	replaced.CustomAudioRef = "sound/c"

	_, err = e.SaveAlarm(context.Background(), replaced)
	require.NoError(t, err)
	require.Equal(t, []string{"sound/a", "sound/b"}, sounds.keys())

	memory.saveErr = errDiskFull

	require.NoError(t, e.DeleteAlarm(context.Background(), "b2"))
	require.Equal(t, []string{"sound/a", "sound/b"}, sounds.keys())
}

// TestSoundCleanup_KeepsRingingSound checks a deleted alarm's sound survives until its session closes.
func TestSoundCleanup_KeepsRingingSound(t *testing.T) {
	t.Parallel()

	sounds := new(fakeSounds)

	e, err := NewEngine(context.Background(),
		&memoryRepository{alarms: []*domain.Alarm{custom("ring", "07:00", "sound/r")}},
		WithLocation(time.UTC),
		WithCoordinator(new(fakeCoordinator)),
		WithSoundStore(sounds),
	)
	require.NoError(t, err)

	require.NotNil(t, e.Tick(context.Background(), monday0700))
	require.NoError(t, e.DeleteAlarm(context.Background(), "ring"))
	require.Empty(t, sounds.keys())

	require.True(t, e.Stop(context.Background()))
	require.Equal(t, []string{"sound/r"}, sounds.keys())
	e.Wait()
}

// TestSaveAlarm_RejectsSnoozePrefix checks new alarms cannot claim snooze IDs.
func TestSaveAlarm_RejectsSnoozePrefix(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	forged := repeating(domain.SnoozeIDPrefix+"forged", "06:00", time.Monday)

	_, err := h.engine.SaveAlarm(context.Background(), forged)
	require.ErrorIs(t, err, ErrReservedID)
	require.Empty(t, h.engine.Alarms(true))
	require.Zero(t, h.repo.saves)

	snooze, err := h.engine.Snooze(context.Background(), 5)
	require.NoError(t, err)

	snooze.Label = "Later"

	_, err = h.engine.SaveAlarm(context.Background(), snooze)
	require.NoError(t, err)

	alarms := h.engine.Alarms(true)
	require.Len(t, alarms, 1)
	require.Equal(t, "Later", alarms[0].Label)
}
