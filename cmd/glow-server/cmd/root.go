package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/morning-glow/internal/config"
	"github.com/oshokin/morning-glow/internal/service/server"
	"github.com/oshokin/morning-glow/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// alarmsFile path where the alarm list is persisted.
	alarmsFile string
	// watchConfig enables hot reload of the settings file.
	watchConfig bool

	// rootCmd represents the base command for running the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "glow-server [listen-address]",
		Short: "Run the morning glow alarm daemon.",
		Long: `Starts the alarm daemon that rings alarms and serves glowctl over gRPC.

The daemon checks the alarm list every tick, opens a ringing session for the first
due alarm and plays its sound until the session is stopped or snoozed.
Only the port from ServerAddress config is used for listening (e.g., :7070).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:7070).
Alarms are persisted to a JSON file; uploaded sounds and the cached quote live in the data directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				AlarmsFile:    alarmsFile,
				WatchConfig:   watchConfig,
			})
		},
	}
)

// Execute runs the glow-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&alarmsFile, "alarms-file", "a", "", "path to persist the alarm list (overrides config)")
	rootCmd.Flags().BoolVarP(&watchConfig, "watch", "w", true, "reload log level and volume when the configuration file changes")
}
