package audio

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/repository/blob"
	"github.com/oshokin/morning-glow/internal/service/notify"
)

var errAutoplayBlocked = errors.New("autoplay blocked")

// recordingPlayer captures player calls.
type recordingPlayer struct {
	mu      sync.Mutex
	plays   []Source
	volumes []float64
	stops   int
	playErr error
}

func (p *recordingPlayer) Play(_ context.Context, src Source, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playErr != nil {
		return p.playErr
	}

	p.plays = append(p.plays, src)
	p.volumes = append(p.volumes, volume)

	return nil
}

func (p *recordingPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stops++

	return nil
}

func (p *recordingPlayer) SetVolume(volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.volumes = append(p.volumes, volume)

	return nil
}

func (p *recordingPlayer) played() []Source {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Source(nil), p.plays...)
}

// gatedBlobs blocks Get until released, ignoring cancellation, to model a slow read
// that completes after the session moved on.
type gatedBlobs struct {
	data    []byte
	started chan struct{}
	release chan struct{}
}

func newGatedBlobs(data []byte) *gatedBlobs {
	return &gatedBlobs{
		data:    data,
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (g *gatedBlobs) Get(context.Context, string) ([]byte, error) {
	g.started <- struct{}{}
	<-g.release

	return g.data, nil
}

func presetAlarm() *domain.Alarm {
	a := domain.New()
	a.AudioMode = domain.AudioModePreset
	a.SelectedPresetID = "zen"

	return a
}

func customAlarm(ref string) *domain.Alarm {
	a := domain.New()
	a.AudioMode = domain.AudioModeCustom
	a.CustomAudioRef = ref
	a.CustomAudioName = "rooster.mp3"

	return a
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// TestCoordinator_PlaysPreset checks a preset alarm resolves to the preset URL at the live volume.
func TestCoordinator_PlaysPreset(t *testing.T) {
	t.Parallel()

	player := new(recordingPlayer)
	c := NewCoordinator(player, nil, nil, WithVolume(0.4))

	c.Start(context.Background(), presetAlarm())
	c.Wait()

	zen, ok := domain.LookupPreset("zen")
	require.True(t, ok)

	plays := player.played()
	require.Len(t, plays, 1)
	require.Equal(t, zen.URL, plays[0].Location)
	require.InDelta(t, 0.4, player.volumes[0], 1e-9)
}

// TestCoordinator_PlaysUploadedSound checks the upload is materialized and removed on stop.
func TestCoordinator_PlaysUploadedSound(t *testing.T) {
	t.Parallel()

	store, err := blob.OpenInMemory()
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	key, err := store.PutSound(context.Background(), []byte("ID3 sound bytes"))
	require.NoError(t, err)

	dir := t.TempDir()
	player := new(recordingPlayer)
	c := NewCoordinator(player, store, nil, WithTempDir(dir))

	c.Start(context.Background(), customAlarm(key))
	c.Wait()

	plays := player.played()
	require.Len(t, plays, 1)
	require.Equal(t, "rooster.mp3", plays[0].Name)

	contents, err := os.ReadFile(plays[0].Location)
	require.NoError(t, err)
	require.Equal(t, "ID3 sound bytes", string(contents))

	c.Stop(context.Background())
	requireEmptyDir(t, dir)
}

// TestCoordinator_SupersededResolutionIsReleased checks that a resolution finishing after a stop
// neither plays nor leaks its temporary file.
func TestCoordinator_SupersededResolutionIsReleased(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blobs := newGatedBlobs([]byte("late bytes"))
	player := new(recordingPlayer)
	feed := notify.NewFeed(0)
	c := NewCoordinator(player, blobs, feed, WithTempDir(dir))

	c.Start(context.Background(), customAlarm("sound/slow"))
	<-blobs.started

	c.Stop(context.Background())
	close(blobs.release)
	c.Wait()

	require.Empty(t, player.played())
	require.Empty(t, feed.Recent())
	requireEmptyDir(t, dir)
}

// TestCoordinator_NewerStartWins checks that only the latest alarm ends up playing.
func TestCoordinator_NewerStartWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blobs := newGatedBlobs([]byte("old bytes"))
	player := new(recordingPlayer)
	c := NewCoordinator(player, blobs, nil, WithTempDir(dir))

	c.Start(context.Background(), customAlarm("sound/old"))
	<-blobs.started

	c.Start(context.Background(), presetAlarm())
	close(blobs.release)
	c.Wait()

	zen, _ := domain.LookupPreset("zen")

	plays := player.played()
	require.Len(t, plays, 1)
	require.Equal(t, zen.URL, plays[0].Location)
	requireEmptyDir(t, dir)
}

// TestCoordinator_MissingSoundNotifies checks a missing upload produces a warning.
func TestCoordinator_MissingSoundNotifies(t *testing.T) {
	t.Parallel()

	store, err := blob.OpenInMemory()
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	player := new(recordingPlayer)
	feed := notify.NewFeed(0)
	c := NewCoordinator(player, store, feed, WithTempDir(t.TempDir()))

	c.Start(context.Background(), customAlarm("sound/gone"))
	c.Wait()

	require.Empty(t, player.played())

	recent := feed.Recent()
	require.Len(t, recent, 1)
	require.Equal(t, notify.SeverityWarning, recent[0].Severity)
	require.Equal(t, MessageNoSound, recent[0].Message)
}

// TestCoordinator_PlaybackRefusedNotifies checks a player error produces a warning.
func TestCoordinator_PlaybackRefusedNotifies(t *testing.T) {
	t.Parallel()

	player := &recordingPlayer{playErr: errAutoplayBlocked}
	feed := notify.NewFeed(0)
	c := NewCoordinator(player, nil, feed)

	c.Start(context.Background(), presetAlarm())
	c.Wait()

	recent := feed.Recent()
	require.Len(t, recent, 1)
	require.Equal(t, MessagePlaybackBlocked, recent[0].Message)
}

// TestCoordinator_SetVolumeClampsAndAppliesLive checks the live volume path.
func TestCoordinator_SetVolumeClampsAndAppliesLive(t *testing.T) {
	t.Parallel()

	player := new(recordingPlayer)
	c := NewCoordinator(player, nil, nil)

	require.NoError(t, c.SetVolume(1.5))
	require.InDelta(t, 1.0, c.Volume(), 1e-9)

	require.NoError(t, c.SetVolume(-1))
	require.Zero(t, c.Volume())

	require.Equal(t, []float64{1, 0}, player.volumes)
}

// TestCoordinator_StopIsIdempotent checks stopping an idle coordinator is harmless.
func TestCoordinator_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	player := new(recordingPlayer)
	feed := notify.NewFeed(0)
	c := NewCoordinator(player, nil, feed)

	c.Stop(context.Background())
	c.Close(context.Background())

	require.Empty(t, player.played())
	require.Empty(t, feed.Recent())
}
