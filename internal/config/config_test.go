package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields, format validations and defaults.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing socket.
	settings := new(Config)
	require.Error(t, Validate(settings))

	// Bad socket.
	settings = &Config{ServerAddress: "bad:address"}
	require.Error(t, Validate(settings))

	// Bad volume.
	settings = &Config{ServerAddress: "127.0.0.1:0", Volume: 1.5}
	require.ErrorIs(t, Validate(settings), errVolumeOutOfRange)

	// Bad player.
	settings = &Config{ServerAddress: "127.0.0.1:0", Player: PlayerConfig{Kind: "vlc"}}
	require.ErrorIs(t, Validate(settings), errUnknownPlayer)

	// Bad level.
	settings = &Config{ServerAddress: "127.0.0.1:0", LogLevel: "loud"}
	require.ErrorIs(t, Validate(settings), errUnknownLogLevel)

	// Bad timezone.
	settings = &Config{ServerAddress: "127.0.0.1:0", Timezone: "Mars/Olympus"}
	require.Error(t, Validate(settings))

	// Defaults.
	settings = &Config{ServerAddress: "127.0.0.1:0", Timezone: "UTC"}
	require.NoError(t, Validate(settings))
	require.Equal(t, DefaultTimeout, settings.Timeout)
	require.Equal(t, DefaultTickInterval, settings.TickInterval)
	require.Equal(t, DefaultAlarmsFilename, settings.AlarmsFile)
	require.Equal(t, DefaultDataDir, settings.DataDir)
	require.Equal(t, PlayerMPV, settings.Player.Kind)
	require.Equal(t, DefaultQuoteRefreshInterval, settings.Quote.RefreshInterval)
	require.Equal(t, DefaultQuoteModel, settings.Quote.Model)

	loc, err := settings.Location()
	require.NoError(t, err)
	require.Equal(t, "UTC", loc.String())
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		ServerAddress: "127.0.0.1:50061",
		Volume:        0.25,
		TickInterval:  500 * time.Millisecond,
		Player:        PlayerConfig{Kind: PlayerNone},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.ServerAddress, loaded.ServerAddress)
	require.InDelta(t, 0.25, loaded.Volume, 1e-9)
	require.Equal(t, 500*time.Millisecond, loaded.TickInterval)
	require.Equal(t, PlayerNone, loaded.Player.Kind)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoadDefaultsVolume ensures an absent volume key yields the default and an explicit value is validated as written.
func TestLoadDefaultsVolume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	absent := filepath.Join(dir, "absent.yaml")
	require.NoError(t, os.WriteFile(absent, []byte("server_addr: 127.0.0.1:50061\n"), DefaultFilePermissions))

	cfg, err := Load(absent)
	require.NoError(t, err)
	require.InDelta(t, DefaultVolume, cfg.Volume, 1e-9)

	muted := filepath.Join(dir, "muted.yaml")
	require.NoError(t, os.WriteFile(muted, []byte("server_addr: 127.0.0.1:50061\nvolume: 0\n"), DefaultFilePermissions))

	cfg, err = Load(muted)
	require.NoError(t, err)
	require.Zero(t, cfg.Volume)

	negative := filepath.Join(dir, "negative.yaml")
	require.NoError(t, os.WriteFile(negative, []byte("server_addr: 127.0.0.1:50061\nvolume: -1\n"), DefaultFilePermissions))

	_, err = Load(negative)
	require.ErrorIs(t, err, errVolumeOutOfRange)
}

// TestWatcherReload verifies that Reload swaps settings and notifies the subscriber,
// and that an invalid file keeps the previous settings.
func TestWatcherReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_addr: 127.0.0.1:50061\nvolume: 0.3\n"), DefaultFilePermissions))

	initial, err := Load(path)
	require.NoError(t, err)

	var seen []float64

	w := NewWatcher(path, initial, func(_ context.Context, cfg *Config) {
		seen = append(seen, cfg.Volume)
	})

	require.NoError(t, os.WriteFile(path, []byte("server_addr: 127.0.0.1:50061\nvolume: 0.9\n"), DefaultFilePermissions))
	require.NoError(t, w.Reload(context.Background()))
	require.InDelta(t, 0.9, w.Current().Volume, 1e-9)

	require.NoError(t, os.WriteFile(path, []byte("server_addr: 127.0.0.1:50061\nvolume: 4\n"), DefaultFilePermissions))
	require.Error(t, w.Reload(context.Background()))
	require.InDelta(t, 0.9, w.Current().Volume, 1e-9)

	require.Equal(t, []float64{0.9}, seen)
}

// TestWatcherRun checks that a write to the file triggers a reload through fsnotify.
func TestWatcherRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_addr: 127.0.0.1:50061\nvolume: 0.3\n"), DefaultFilePermissions))

	reloaded := make(chan float64, 4)
	w := NewWatcher(path, nil, func(_ context.Context, cfg *Config) {
		select {
		case reloaded <- cfg.Volume:
		default:
		}
	})
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- w.Run(ctx)
	}()

	// Keep writing until the watcher is registered and picks a change up.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("server_addr: 127.0.0.1:50061\nvolume: 0.6\n"), DefaultFilePermissions)

		select {
		case v := <-reloaded:
			return v == 0.6
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
