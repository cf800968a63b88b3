package server

import (
	"context"
	"fmt"
	"os"
	"sync"

	api "github.com/oshokin/morning-glow/internal/api/grpc/alarm"
	"github.com/oshokin/morning-glow/internal/config"
	"github.com/oshokin/morning-glow/internal/logger"
	repo "github.com/oshokin/morning-glow/internal/repository/alarms"
	"github.com/oshokin/morning-glow/internal/repository/blob"
	"github.com/oshokin/morning-glow/internal/service/audio"
	"github.com/oshokin/morning-glow/internal/service/notify"
	"github.com/oshokin/morning-glow/internal/service/quote"
	"github.com/oshokin/morning-glow/internal/service/scheduler"
)

// daemon owns the long-lived services behind the gRPC API.
type daemon struct {
	store       *blob.Store
	feed        *notify.Feed
	coordinator *audio.Coordinator
	quotes      *quote.Service
	engine      *scheduler.Engine

	// mu guards volume, the last volume read from the settings file.
	mu     sync.Mutex
	volume float64
}

// newDaemon opens the stores and wires the services from settings.
func newDaemon(ctx context.Context, settings *config.Config, alarmsFile string) (*daemon, error) {
	location, err := settings.Location()
	if err != nil {
		return nil, err
	}

	fetcher, err := quote.NewGeminiFetcher(ctx,
		quote.NewHTTPClient(settings.Quote.Timeout),
		settings.Quote.Endpoint,
		settings.Quote.Model,
		os.Getenv(settings.Quote.APIKeyEnv),
	)
	if err != nil {
		return nil, err
	}

	store, err := blob.Open(settings.DataDir)
	if err != nil {
		return nil, err
	}

	feed := notify.NewFeed(0)

	coordinator := audio.NewCoordinator(newPlayer(ctx, settings.Player), store, feed,
		audio.WithTempDir(settings.Player.TempDir),
		audio.WithVolume(settings.Volume),
	)

	quotes := quote.NewService(ctx, fetcher, store, quote.WithInterval(settings.Quote.RefreshInterval))

	engine, err := scheduler.NewEngine(ctx, repo.NewFileRepository(alarmsFile, repo.WithNotifier(feed)),
		scheduler.WithLocation(location),
		scheduler.WithCoordinator(coordinator),
		scheduler.WithQuoteRefresher(quotes),
		scheduler.WithNotifier(feed),
		scheduler.WithSoundStore(store),
	)
	if err != nil {
		coordinator.Close(ctx)
		_ = store.Close()

		return nil, fmt.Errorf("initialise scheduler: %w", err)
	}

	return &daemon{
		store:       store,
		feed:        feed,
		coordinator: coordinator,
		quotes:      quotes,
		engine:      engine,
		volume:      settings.Volume,
	}, nil
}

// dependencies exposes the services to the gRPC handler.
func (d *daemon) dependencies() api.Dependencies {
	return api.Dependencies{
		Scheduler:     d.engine,
		Audio:         d.coordinator,
		Quotes:        d.quotes,
		Sounds:        d.store,
		Notifications: d.feed,
	}
}

// applySettings takes the hot-reloadable parts of a reloaded settings file.
// The volume is applied only when the file changed it, so a volume set over
// the API survives unrelated edits.
func (d *daemon) applySettings(ctx context.Context, settings *config.Config) {
	if level, ok := logger.ParseLogLevel(settings.LogLevel); ok && level != logger.Level() {
		logger.SetLevel(level)
		logger.InfoKV(ctx, "Log level changed", "level", level.String())
	}

	d.mu.Lock()
	changed := settings.Volume != d.volume
	d.volume = settings.Volume
	d.mu.Unlock()

	if !changed {
		return
	}

	if err := d.coordinator.SetVolume(settings.Volume); err != nil {
		logger.WarnKV(ctx, "Player did not accept the reloaded volume", "error", err)

		return
	}

	logger.InfoKV(ctx, "Volume changed", "volume", settings.Volume)
}

// close stops playback, waits for background work and closes the blob store.
func (d *daemon) close(ctx context.Context) error {
	d.engine.Wait()
	d.coordinator.Close(ctx)

	if err := d.store.Close(); err != nil {
		return fmt.Errorf("close blob store: %w", err)
	}

	return nil
}

func newPlayer(ctx context.Context, player config.PlayerConfig) audio.Player {
	if player.Kind == config.PlayerNone {
		return audio.NewSilent(ctx)
	}

	return audio.NewMPV(ctx, player.Binary, player.TempDir)
}
