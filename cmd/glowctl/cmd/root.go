package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/morning-glow/internal/config"
	"github.com/oshokin/morning-glow/internal/service/client"
	"github.com/oshokin/morning-glow/internal/service/common"
	"github.com/oshokin/morning-glow/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the daemon address from the configuration file.
	serverAddress string

	// rootCmd represents the base command for controlling the alarm daemon.
	rootCmd = &cobra.Command{
		Use:   "glowctl",
		Short: "Manage morning glow alarms.",
		Long: `Controls a running glow-server over gRPC.

Lists, adds, edits and removes alarms, stops or snoozes the ringing alarm,
adjusts the volume, uploads custom sounds and shows the wake-up quote.
The daemon address is read from the configuration file unless --server is given.`,
		SilenceUsage: true,
	}
)

// Execute runs the glowctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withClient connects to the daemon, runs fn and closes the connection.
func withClient(fn func(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		c, err := client.Connect(ctx, &client.Options{
			ConfigPath:    cfgPath,
			ServerAddress: serverAddress,
		})
		if err != nil {
			return err
		}

		defer func() {
			_ = c.Close()
		}()

		return fn(ctx, cmd, c, args)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "server", "s", "", "daemon address (overrides config)")
}
