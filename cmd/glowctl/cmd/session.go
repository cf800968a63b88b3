package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oshokin/morning-glow/internal/service/client"
	"github.com/oshokin/morning-glow/internal/service/common"
)

var (
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show whether an alarm is ringing, the volume and the quote.",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, _ []string) error {
			status, err := c.GetStatus(ctx)
			if err != nil {
				return err
			}

			return client.WriteStatus(cmd.OutOrStdout(), status)
		}),
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the ringing alarm.",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, _ []string) error {
			stopped, err := c.Stop(ctx)
			if err != nil {
				return err
			}

			message := "No alarm is ringing."
			if stopped {
				message = "Alarm stopped. Good morning!"
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), message)

			return err
		}),
	}

	snoozeCmd = &cobra.Command{
		Use:   "snooze [minutes]",
		Short: "Snooze the ringing alarm.",
		Long: `Stops the ringing alarm and rings again after the given minutes.
Without an argument the alarm's own snooze duration is used.
With no alarm ringing, a snooze alarm with the default sound is scheduled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
			var minutes int

			if len(args) > 0 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid minutes %q: %w", args[0], err)
				}

				minutes = parsed
			}

			snooze, err := c.Snooze(ctx, minutes)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Snoozed until", snooze.Time)

			return err
		}),
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(statusCmd, stopCmd, snoozeCmd)
}
