package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/logger"
	"github.com/oshokin/morning-glow/internal/metrics"
	"github.com/oshokin/morning-glow/internal/service/notify"
)

const (
	// MessageNoSound is shown when nothing playable could be resolved.
	MessageNoSound = "No sound available for this alarm"
	// MessagePlaybackBlocked is shown when the player refused to start.
	MessagePlaybackBlocked = "Unable to start alarm sound, interact with the device to enable audio"
	// MessagePlaybackEnded is shown when the player quit while an alarm was ringing.
	MessagePlaybackEnded = "Alarm sound stopped unexpectedly"
)

// ErrNoSource is returned when an alarm has no playable sound.
var ErrNoSource = errors.New("no playable sound")

// BlobGetter loads uploaded sounds by key.
type BlobGetter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// exitReporter is implemented by players whose playback can end on its own.
type exitReporter interface {
	OnUnexpectedExit(fn ExitHandler)
}

// Coordinator resolves alarm sounds and owns the shared Player.
type Coordinator struct {
	// player is the shared audio output.
	player Player
	// blobs holds uploaded sounds.
	blobs BlobGetter
	// notifier receives user-visible failures.
	notifier notify.Notifier
	// tempDir receives temporary copies of uploaded sounds.
	tempDir string

	// mu guards the fields below.
	mu sync.Mutex
	// generation increases on every start and stop; a resolution only applies if it still matches.
	generation uint64
	// alarmID is the alarm the current generation resolves for.
	alarmID string
	// handle is the temporary file backing the current playback, if any.
	handle *tempFile
	// cancel aborts the current resolution.
	cancel context.CancelFunc
	// volume is the live volume in [0, 1].
	volume float64

	// playMu serializes player calls between resolutions and stops.
	playMu sync.Mutex
	// wg tracks resolution goroutines.
	wg sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTempDir sets where uploaded sounds are materialized.
func WithTempDir(dir string) Option {
	return func(c *Coordinator) {
		if dir != "" {
			c.tempDir = dir
		}
	}
}

// WithVolume sets the initial volume.
func WithVolume(volume float64) Option {
	return func(c *Coordinator) {
		c.volume = clampVolume(volume)
	}
}

// NewCoordinator creates a coordinator around player.
func NewCoordinator(player Player, blobs BlobGetter, notifier notify.Notifier, opts ...Option) *Coordinator {
	if notifier == nil {
		notifier = notify.Discard{}
	}

	c := &Coordinator{
		player:   player,
		blobs:    blobs,
		notifier: notifier,
		tempDir:  os.TempDir(),
		volume:   1,
	}

	for _, opt := range opts {
		opt(c)
	}

	if r, ok := player.(exitReporter); ok {
		r.OnUnexpectedExit(c.playbackEnded)
	}

	return c
}

// superseded is what a start or stop takes over from the previous generation.
type superseded struct {
	cancel context.CancelFunc
	handle *tempFile
}

// Start begins resolving and playing the sound of a. Whatever was playing is stopped first.
// Resolution runs in the background; Start does not block on I/O.
func (c *Coordinator) Start(ctx context.Context, a *domain.Alarm) {
	c.mu.Lock()
	prev := c.supersedeLocked()

	gen := c.generation
	c.alarmID = a.ID

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	c.mu.Unlock()

	c.release(ctx, prev)

	go c.run(runCtx, gen, a.Clone())
}

// Stop halts playback, invalidates any in-flight resolution and releases the temporary file.
// Stopping an idle coordinator is a no-op.
func (c *Coordinator) Stop(ctx context.Context) {
	c.mu.Lock()
	prev := c.supersedeLocked()
	c.mu.Unlock()

	c.release(ctx, prev)
}

// SetVolume applies volume to the current playback without reloading the source.
func (c *Coordinator) SetVolume(volume float64) error {
	volume = clampVolume(volume)

	c.mu.Lock()
	c.volume = volume
	c.mu.Unlock()

	if err := c.player.SetVolume(volume); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}

	return nil
}

// Volume returns the live volume.
func (c *Coordinator) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.volume
}

// Wait blocks until every resolution goroutine has returned.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close stops playback and waits for background work.
func (c *Coordinator) Close(ctx context.Context) {
	c.Stop(ctx)
	c.Wait()
}

// supersedeLocked starts a new generation and hands back what the old one owned.
func (c *Coordinator) supersedeLocked() superseded {
	prev := superseded{
		cancel: c.cancel,
		handle: c.handle,
	}

	c.generation++
	c.alarmID = ""
	c.cancel = nil
	c.handle = nil

	return prev
}

// release cancels the old resolution, stops the player and removes the old temporary file.
func (c *Coordinator) release(ctx context.Context, prev superseded) {
	if prev.cancel != nil {
		prev.cancel()
	}

	c.playMu.Lock()
	err := c.player.Stop()
	c.playMu.Unlock()

	if err != nil {
		logger.WarnKV(ctx, "Failed to stop player", "error", err)
	}

	prev.handle.release(ctx)
}

// run resolves the source for one generation and starts playback if still current.
func (c *Coordinator) run(ctx context.Context, gen uint64, a *domain.Alarm) {
	defer c.wg.Done()

	ctx = logger.WithKV(ctx, "alarm_id", a.ID, "generation", gen)

	src, handle, err := c.resolve(ctx, a)
	if err != nil {
		handle.release(ctx)

		if ctx.Err() != nil || !c.isCurrent(gen) {
			metrics.StaleResolutions.Inc()
			logger.DebugKV(ctx, "Discarded superseded sound resolution", "error", err)

			return
		}

		metrics.PlaybackFailures.WithLabelValues("no_source").Inc()
		logger.WarnKV(ctx, "Alarm sound could not be resolved", "error", err)
		c.notifier.Notify(ctx, notify.SeverityWarning, MessageNoSound)

		return
	}

	c.playMu.Lock()
	defer c.playMu.Unlock()

	c.mu.Lock()
	current := c.generation == gen && c.alarmID == a.ID
	if current {
		c.handle = handle
	}
	volume := c.volume
	c.mu.Unlock()

	if !current {
		handle.release(ctx)
		metrics.StaleResolutions.Inc()
		logger.Debug(ctx, "Discarded superseded sound resolution")

		return
	}

	err = c.player.Play(ctx, src, volume)

	switch {
	case err == nil:
		logger.InfoKV(ctx, "Alarm sound playing", "source", src.Name, "volume", volume)
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled):
		logger.DebugKV(ctx, "Alarm sound start interrupted", "error", err)
	default:
		metrics.PlaybackFailures.WithLabelValues("play").Inc()
		logger.WarnKV(ctx, "Alarm sound failed to start", "error", err)
		c.notifier.Notify(ctx, notify.SeverityWarning, MessagePlaybackBlocked)
	}
}

// playbackEnded reports a player exit while an alarm is still ringing.
func (c *Coordinator) playbackEnded(ctx context.Context, err error) {
	c.mu.Lock()
	alarmID := c.alarmID
	c.mu.Unlock()

	if alarmID == "" {
		return
	}

	metrics.PlaybackFailures.WithLabelValues("exited").Inc()
	logger.WarnKV(ctx, "Alarm sound ended unexpectedly", "alarm_id", alarmID, "error", err)
	c.notifier.Notify(ctx, notify.SeverityWarning, MessagePlaybackEnded)
}

func (c *Coordinator) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generation == gen
}

// resolve maps the alarm audio settings to a playable source.
// Custom sounds are copied into a temporary file the caller must release.
func (c *Coordinator) resolve(ctx context.Context, a *domain.Alarm) (Source, *tempFile, error) {
	switch a.AudioMode {
	case domain.AudioModePreset:
		preset, ok := domain.LookupPreset(a.SelectedPresetID)
		if !ok {
			return Source{}, nil, fmt.Errorf("%w: unknown preset %q", ErrNoSource, a.SelectedPresetID)
		}

		return Source{Location: preset.URL, Name: preset.Name}, nil, nil
	case domain.AudioModeCustom:
		if a.CustomAudioRef == "" || c.blobs == nil {
			return Source{}, nil, fmt.Errorf("%w: no uploaded sound", ErrNoSource)
		}

		data, err := c.blobs.Get(ctx, a.CustomAudioRef)
		if err != nil {
			return Source{}, nil, fmt.Errorf("load uploaded sound: %w", err)
		}

		if len(data) == 0 {
			return Source{}, nil, fmt.Errorf("%w: uploaded sound is empty", ErrNoSource)
		}

		handle, err := writeTempFile(c.tempDir, data)
		if err != nil {
			return Source{}, nil, err
		}

		name := a.CustomAudioName
		if name == "" {
			name = a.CustomAudioRef
		}

		return Source{Location: handle.path, Name: name}, handle, nil
	default:
		return Source{}, nil, fmt.Errorf("%w: audio mode %q", ErrNoSource, a.AudioMode)
	}
}

func clampVolume(volume float64) float64 {
	return min(max(volume, 0), 1)
}
