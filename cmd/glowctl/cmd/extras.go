package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	api "github.com/oshokin/morning-glow/internal/api/grpc/alarm"
	"github.com/oshokin/morning-glow/internal/service/client"
	"github.com/oshokin/morning-glow/internal/service/common"
	"github.com/oshokin/morning-glow/internal/service/quote"
)

var (
	// refreshQuote fetches a new quote before printing it.
	refreshQuote bool
	// attachTo names the alarm an uploaded sound is assigned to.
	attachTo string

	volumeCmd = &cobra.Command{
		Use:   "volume [level]",
		Short: "Show or set the playback volume (0 to 1).",
		Args:  cobra.MaximumNArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
			if len(args) == 0 {
				status, err := c.GetStatus(ctx)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Volume: %.2f\n", status.Volume)

				return err
			}

			level, err := strconv.ParseFloat(args[0], 64)
			if err != nil || level < 0 || level > 1 {
				return fmt.Errorf("volume must be a number between 0 and 1, got %q", args[0])
			}

			applied, err := c.SetVolume(ctx, level)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Volume: %.2f\n", applied)

			return err
		}),
	}

	quoteCmd = &cobra.Command{
		Use:   "quote",
		Short: "Show the wake-up quote.",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, _ []string) error {
			var (
				q   quote.Quote
				err error
			)

			if refreshQuote {
				q, err = c.RefreshQuote(ctx, true)
			} else {
				q, err = c.GetQuote(ctx)
			}

			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), client.FormatQuote(q))

			return err
		}),
	}

	uploadCmd = &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a custom alarm sound.",
		Long: `Stores an audio file on the daemon and prints its reference.
With --alarm the sound is assigned to that alarm right away.`,
		Args: cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
			data, err := os.ReadFile(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("read sound: %w", err)
			}

			if len(data) > api.MaxSoundBytes {
				return fmt.Errorf("sound is %d bytes, the limit is %d", len(data), api.MaxSoundBytes)
			}

			ref, err := c.UploadSound(ctx, data)
			if err != nil {
				return err
			}

			if attachTo == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), ref)

				return err
			}

			a, err := findAlarm(ctx, c, attachTo)
			if err != nil {
				return err
			}

			name := filepath.Base(args[0])
			if err = client.ApplyEdits(a, client.Edits{SoundRef: &ref, SoundName: &name}); err != nil {
				return err
			}

			saved, err := c.SaveAlarm(ctx, a)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Saved:", client.FormatAlarm(saved))

			return err
		}),
	}

	notificationsCmd = &cobra.Command{
		Use:   "notifications",
		Short: "Show recent daemon notifications.",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, _ []string) error {
			items, err := c.ListNotifications(ctx)
			if err != nil {
				return err
			}

			return client.WriteNotifications(cmd.OutOrStdout(), items)
		}),
	}

	presetsCmd = &cobra.Command{
		Use:   "presets",
		Short: "List preset sounds and snooze durations.",
		Args:  cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, _ []string) error {
			catalog, err := c.ListPresets(ctx)
			if err != nil {
				return err
			}

			return client.WritePresets(cmd.OutOrStdout(), catalog)
		}),
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	quoteCmd.Flags().BoolVarP(&refreshQuote, "refresh", "r", false, "fetch a new quote first")
	uploadCmd.Flags().StringVar(&attachTo, "alarm", "", "assign the sound to this alarm")

	rootCmd.AddCommand(volumeCmd, quoteCmd, uploadCmd, notificationsCmd, presetsCmd)
}
