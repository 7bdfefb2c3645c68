package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// these will be overridden at build time using -ldflags
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "whenitworks %s (commit %s, built %s)\n", version, commit, date)
	},
}
