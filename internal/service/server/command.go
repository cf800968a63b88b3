package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/morning-glow/internal/api/grpc/alarm"
	"github.com/oshokin/morning-glow/internal/config"
	"github.com/oshokin/morning-glow/internal/logger"
	"github.com/oshokin/morning-glow/internal/metrics"
	"github.com/oshokin/morning-glow/internal/version"
)

// Options controls the glow-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// AlarmsFile overrides the alarm list path from the settings file.
	AlarmsFile string
	// WatchConfig reloads log level and volume when the settings file changes.
	WatchConfig bool
}

// messageHeadroom covers the framing around the largest uploaded sound.
const messageHeadroom = 1 << 10

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the daemon and blocks until context is canceled or a component fails.
// Loads configuration first, then determines listen address from config or override.
//
//nolint:funlen // Linear wiring of the daemon components.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "glow-server")

	// Load configuration first to get server settings.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	level, _ := logger.ParseLogLevel(settings.LogLevel)
	format, _ := logger.ParseFormat(settings.LogFormat)
	logger.Configure(level, format)

	// Use AlarmsFile from config unless overridden by command line option.
	alarmsFile := settings.AlarmsFile
	if opts.AlarmsFile != "" {
		alarmsFile = opts.AlarmsFile
	}

	// Determine listen address: CLI argument overrides config port extraction.
	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	d, err := newDaemon(ctx, settings, alarmsFile)
	if err != nil {
		return err
	}

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return errors.Join(fmt.Errorf("listen on %s: %w", listenAddress, err), d.close(ctx))
	}

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(api.LoggingInterceptor),
		grpc.MaxRecvMsgSize(api.MaxSoundBytes+messageHeadroom),
	)
	api.RegisterAlarmServiceServer(grpcServer, api.NewServer(d.dependencies()))

	logger.InfoKV(ctx, "Glow server listening",
		"listen_address", listenAddress,
		"alarms_file", alarmsFile,
		"data_dir", settings.DataDir,
		"player", settings.Player.Kind,
		"version", version.Short(),
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return d.engine.Run(groupCtx, settings.TickInterval)
	})

	group.Go(func() error {
		// Done channel is closed after GracefulStop finishes to ensure we block
		// until the server fully stops before returning.
		done := make(chan struct{})

		go func() {
			<-groupCtx.Done()
			logger.Info(ctx, "Shutting down gRPC server")
			grpcServer.GracefulStop()
			close(done)
		}()

		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		<-done
		logger.Info(ctx, "GRPC server stopped")

		return nil
	})

	if settings.MetricsAddress != "" {
		group.Go(func() error {
			return metrics.Serve(groupCtx, settings.MetricsAddress)
		})
	}

	if opts.WatchConfig {
		watcher := config.NewWatcher(opts.ConfigPath, settings, d.applySettings)

		group.Go(func() error {
			return watcher.Run(groupCtx)
		})
	}

	runErr := group.Wait()

	// Shutdown must finish even though ctx is already canceled.
	closeErr := d.close(context.WithoutCancel(ctx))

	logger.Info(ctx, "Glow server stopped")

	return errors.Join(runErr, closeErr)
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
// Returns appropriate listen address (e.g., ":8080" for port-only binding).
func resolveListenAddress(configAddr, override string) (string, error) {
	// Use override address if provided (e.g., ":9090", "0.0.0.0:8080").
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	// Parse the address to extract port.
	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Return port-only listen address to bind on all interfaces.
	return ":" + port, nil
}
