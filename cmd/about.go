package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/egoavara/plugforge/internal/config"
	"github.com/egoavara/plugforge/internal/version"
)

var aboutTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

var aboutCmd = &cobra.Command{
	Use:     "about",
	Aliases: []string{"info"},
	Short:   "Show installation details",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()
		out := cmd.OutOrStdout()

		index := cfg.Index.Default
		if index == "" {
			index = "(not set)"
		}

		fmt.Fprintln(out, aboutTitleStyle.Render("plugforge "+version.Short()))
		fmt.Fprintln(out, "Installs plugins from a plugin index or builds them from git.")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "  config:     %s\n", configPath)
		fmt.Fprintf(out, "  ledger:     %s\n", config.LedgerPath(configPath))
		fmt.Fprintf(out, "  plugins:    %s\n", cfg.Plugins.Dir)
		fmt.Fprintf(out, "  index:      %s\n", index)
		fmt.Fprintf(out, "  contract:   %s\n", cfg.Plugins.Contract)
	},
}
