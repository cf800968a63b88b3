package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AttachCobraVersionCommand adds a `version` subcommand to root.
// With --short it prints only the semantic version.
func AttachCobraVersionCommand(root *cobra.Command) {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Long:  "Print the version, commit hash and build timestamp injected at build time.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			text := Full()
			if short {
				text = Short()
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print only the version number")
	root.AddCommand(cmd)
}
