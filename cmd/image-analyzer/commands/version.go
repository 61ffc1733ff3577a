package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/image-analyzer/cmd/image-analyzer/ui"
)

// Version is overridden at build time with -ldflags.
var Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the version",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		ui.Message("image-analyzer %s", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
