package integration

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/morning-glow/internal/config"
	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/service/common"
	"github.com/oshokin/morning-glow/internal/service/server"
)

// reservePort returns a loopback address that was free a moment ago.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// writeSettings saves a daemon configuration rooted in dir.
func writeSettings(t *testing.T, path, dir, addr, metricsAddr string, volume float64) {
	t.Helper()

	require.NoError(t, config.Save(path, &config.Config{
		ServerAddress:  addr,
		MetricsAddress: metricsAddr,
		AlarmsFile:     filepath.Join(dir, "alarms.json"),
		DataDir:        filepath.Join(dir, "data"),
		Timeout:        3 * time.Second,
		Volume:         volume,
		Player: config.PlayerConfig{
			Kind:    config.PlayerNone,
			TempDir: dir,
		},
		Quote: config.QuoteConfig{
			// Unset on purpose: the daemon serves fallback quotes.
			APIKeyEnv: "MORNING_GLOW_TEST_UNSET_KEY",
		},
	}))
}

// startDaemon runs glow-server in the background. The returned stop function
// cancels it and waits until it has released its files.
func startDaemon(t *testing.T, cfgPath, addr string) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- server.Run(ctx, &server.Options{
			ConfigPath:  cfgPath,
			WatchConfig: true,
		})
	}()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err != nil {
			return false
		}

		_ = conn.Close()

		return true
	}, 5*time.Second, 20*time.Millisecond)

	return func() {
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Fatal("daemon did not stop")
		}
	}
}

// TestDaemon_Lifecycle starts the real daemon over TCP, checks persistence
// across a restart, the metrics listener and settings hot reload.
//
//nolint:paralleltest // The daemon reconfigures the global logger.
func TestDaemon_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "settings.yaml")
	addr := reservePort(t)
	metricsAddr := reservePort(t)

	writeSettings(t, cfgPath, dir, addr, metricsAddr, 0.6)

	stop := startDaemon(t, cfgPath, addr)
	ctx := context.Background()

	c, err := common.Dial(ctx, addr, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	ref, err := c.UploadSound(ctx, []byte("not really a song"))
	require.NoError(t, err)

	draft := domain.New()
	draft.Time = "05:45"
	draft.Label = "Sunrise run"
	draft.AudioMode = domain.AudioModeCustom
	draft.CustomAudioRef = ref
	draft.CustomAudioName = "run.mp3"

	saved, err := c.SaveAlarm(ctx, draft)
	require.NoError(t, err)

	status, err := c.GetStatus(ctx)
	require.NoError(t, err)
	require.Nil(t, status.Session)
	require.InDelta(t, 0.6, status.Volume, 1e-9)
	require.True(t, status.Quote.Fallback)

	// Metrics listener.
	resp, err := http.Get("http://" + metricsAddr + "/metrics") //nolint:noctx // Test helper.
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Contains(t, string(body), "morning_glow_ringing")

	// Hot reload of the volume.
	writeSettings(t, cfgPath, dir, addr, metricsAddr, 0.3)

	require.Eventually(t, func() bool {
		current, err := c.GetStatus(ctx)

		return err == nil && current.Volume > 0.29 && current.Volume < 0.31
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, c.Close())
	stop()

	_, err = os.Stat(filepath.Join(dir, "alarms.json"))
	require.NoError(t, err)

	// Everything survives a restart.
	stop = startDaemon(t, cfgPath, addr)
	defer stop()

	c, err = common.Dial(ctx, addr, common.WithCallTimeout(3*time.Second))
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	alarms, err := c.ListAlarms(ctx, true)
	require.NoError(t, err)
	require.Len(t, alarms, 1)
	require.Equal(t, saved.ID, alarms[0].ID)
	require.Equal(t, "Sunrise run", alarms[0].Label)
	require.Equal(t, ref, alarms[0].CustomAudioRef)

	status, err = c.GetStatus(ctx)
	require.NoError(t, err)
	require.InDelta(t, 0.3, status.Volume, 1e-9)
}
