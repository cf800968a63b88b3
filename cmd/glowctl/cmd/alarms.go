package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	domain "github.com/oshokin/morning-glow/internal/domain/alarm"
	"github.com/oshokin/morning-glow/internal/service/client"
	"github.com/oshokin/morning-glow/internal/service/common"
)

var (
	// listAll includes snooze instances in the listing.
	listAll bool

	listCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List alarms.",
		Args:    cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, _ []string) error {
			alarms, err := c.ListAlarms(ctx, listAll)
			if err != nil {
				return err
			}

			return client.WriteAlarms(cmd.OutOrStdout(), alarms)
		}),
	}

	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Add an alarm.",
		Long: `Adds an alarm. Unset fields take the defaults of a new alarm:
07:00 on weekdays with the default preset sound.`,
		Args: cobra.NoArgs,
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, _ []string) error {
			a := domain.New()
			if err := client.ApplyEdits(a, editsFromFlags(cmd.Flags())); err != nil {
				return err
			}

			saved, err := c.SaveAlarm(ctx, a)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Added:", client.FormatAlarm(saved))

			return err
		}),
	}

	editCmd = &cobra.Command{
		Use:   "edit <alarm-id>",
		Short: "Change fields of an alarm.",
		Long: `Changes the given fields of an alarm. Changing its time lets the alarm
ring again in the current minute.`,
		Args: cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
			a, err := findAlarm(ctx, c, args[0])
			if err != nil {
				return err
			}

			if err = client.ApplyEdits(a, editsFromFlags(cmd.Flags())); err != nil {
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

	deleteCmd = &cobra.Command{
		Use:     "delete <alarm-id>",
		Aliases: []string{"rm"},
		Short:   "Delete an alarm.",
		Args:    cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
			if err := c.DeleteAlarm(ctx, args[0]); err != nil {
				return err
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])

			return err
		}),
	}

	toggleCmd = &cobra.Command{
		Use:   "toggle <alarm-id>",
		Short: "Turn an alarm on or off.",
		Args:  cobra.ExactArgs(1),
		RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *common.Client, args []string) error {
			toggled, err := c.ToggleAlarm(ctx, args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), client.FormatAlarm(toggled))

			return err
		}),
	}
)

// findAlarm looks up an alarm, including snooze instances, by ID.
func findAlarm(ctx context.Context, c *common.Client, id string) (*domain.Alarm, error) {
	alarms, err := c.ListAlarms(ctx, true)
	if err != nil {
		return nil, err
	}

	for _, a := range alarms {
		if a.ID == id {
			return a, nil
		}
	}

	return nil, fmt.Errorf("alarm %q not found", id)
}

// addEditFlags registers the alarm field flags shared by add and edit.
func addEditFlags(flags *pflag.FlagSet) {
	flags.StringP("time", "t", "", "wake-up time, HH:MM in 24h format")
	flags.StringP("days", "d", "", "repeat days: once, daily, weekdays, weekends or a list like mon,wed,fri")
	flags.StringP("label", "l", "", "alarm label")
	flags.StringP("preset", "p", "", "preset sound ID (see glowctl presets)")
	flags.String("sound", "", "uploaded sound reference (see glowctl upload)")
	flags.String("sound-name", "", "display name of the uploaded sound")
	flags.Int("snooze", 0, "snooze duration in minutes, 0 for the default")
}

// editsFromFlags collects only the flags the user set.
func editsFromFlags(flags *pflag.FlagSet) client.Edits {
	var edits client.Edits

	stringFlag := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}

		value, _ := flags.GetString(name)

		return &value
	}

	edits.Time = stringFlag("time")
	edits.Days = stringFlag("days")
	edits.Label = stringFlag("label")
	edits.Preset = stringFlag("preset")
	edits.SoundRef = stringFlag("sound")
	edits.SoundName = stringFlag("sound-name")

	if flags.Changed("snooze") {
		snooze, _ := flags.GetInt("snooze")
		edits.Snooze = &snooze
	}

	if flags.Lookup("active") != nil && flags.Changed("active") {
		active, _ := flags.GetBool("active")
		edits.Active = &active
	}

	return edits
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include snooze instances")

	addEditFlags(addCmd.Flags())
	addEditFlags(editCmd.Flags())
	editCmd.Flags().Bool("active", true, "whether the alarm is on")

	rootCmd.AddCommand(listCmd, addCmd, editCmd, deleteCmd, toggleCmd)
}
