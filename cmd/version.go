package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/egoavara/plugforge/internal/version"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Long: `Print the plugforge version and the toolchain it was built with.

With --short only the release version is printed, for scripts.

Example:
  plugforge version
  plugforge version --short`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if versionShort {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), "plugforge "+version.String())
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the release version")
	rootCmd.AddCommand(versionCmd)
}
