package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/egoavara/plugforge/internal/config"
	"github.com/egoavara/plugforge/internal/i18n"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Ask the host to reload the plugin directory",
	Long: `Request a host reinitialization without installing anything.

New or changed artifacts in the plugin directory are loaded.

Example:
  plugforge restart`,
	Args: cobra.NoArgs,
	RunE: runRestart,
}

func runRestart(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	rt, err := openRuntime(cmd.Context(), cfg, config.LedgerPath(configPath))
	if err != nil {
		return err
	}

	// The host must drain the request before the loader counts are read.
	if err := rt.orchestrator.Restart(cmd.Context()); err != nil {
		if cerr := rt.Close(); cerr != nil {
			slog.Default().WarnContext(cmd.Context(), "failed to stop plugin host", "error", cerr)
		}
		return err
	}
	if err := rt.Close(); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), i18n.T("restart.done", map[string]any{
		"Dir":    cfg.Plugins.Dir,
		"Loaded": len(rt.loader.Loaded()),
	}))
	if pending := rt.loader.Pending(); len(pending) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), i18n.T("restart.pending", map[string]any{"Count": len(pending)}, len(pending)))
		for _, path := range pending {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", path)
		}
	}
	return nil
}
