package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/egoavara/plugforge/internal/config"
	"github.com/egoavara/plugforge/internal/errutil"
	"github.com/egoavara/plugforge/internal/i18n"
	"github.com/egoavara/plugforge/internal/logging"
	"github.com/egoavara/plugforge/internal/plugin"
	"github.com/egoavara/plugforge/internal/version"
)

// Exit codes
const (
	exitOK      = 0
	exitFailed  = 1
	exitAborted = 2
)

var (
	verbose    bool
	assumeYes  bool
	configPath string

	rootCmd = &cobra.Command{
		Use:           "plugforge",
		Short:         "Install plugins from an index or build them from source",
		SilenceErrors: true,
		SilenceUsage:  true,
		Long: `plugforge installs plugins into a live plugin directory.

Plugins are found by name in a plugin index and downloaded, or built
from a git repository. Installed plugins are loaded without restarting
the host.

Commands:
  plugin   Manage plugins (search, install, git, list)
  restart  Ask the host to reload the plugin directory
  config   Manage configuration
  about    Show installation details

Shortcuts (aliases):
  search   = plugin search   (find-plugin)
  install  = plugin install  (install-plugin)
  git      = plugin git      (git-plugin)`,
		PersistentPreRunE: setup,
	}
)

// setup loads configuration, then configures logging and the locale.
func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	config.Set(cfg)

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logging.SetDefault("plugforge", version.Version, cfg.Log.Format, level)
	i18n.SetLocale(i18n.Resolve(cfg.Locale))
	return nil
}

// createAliasCommand creates a root-level alias that shares flags with a plugin subcommand
func createAliasCommand(pluginSubCmd *cobra.Command, aliases []string) *cobra.Command {
	aliasCmd := &cobra.Command{
		Use:     pluginSubCmd.Use,
		Short:   pluginSubCmd.Short + " (alias)",
		Long:    pluginSubCmd.Long,
		Args:    pluginSubCmd.Args,
		Aliases: aliases,
		RunE:    pluginSubCmd.RunE,
	}
	// Copy all flags from the original command
	pluginSubCmd.Flags().VisitAll(func(f *pflag.Flag) {
		aliasCmd.Flags().AddFlag(f)
	})
	return aliasCmd
}

// Execute runs the root command and exits with 1 on failure and 2 when the
// user aborted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(report(os.Stderr, err))
}

// report prints the outcome of a command and returns its exit code.
func report(w io.Writer, err error) int {
	switch {
	case err == nil:
		return exitOK
	case plugin.IsAborted(err):
		fmt.Fprintln(w, i18n.T("aborted", nil))
		return exitAborted
	}

	if verbose {
		errutil.LogError(slog.Default(), "command failed", err)
	}
	fmt.Fprintln(w, i18n.T("error", map[string]any{"Error": err.Error()}))
	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Hint() != "" {
		fmt.Fprintln(w, i18n.T("error.hint", map[string]any{"Hint": oopsErr.Hint()}))
	}
	return exitFailed
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", config.ConfigPath(), "config file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every prompt")
	flags.String("log-format", "text", "log format (text or json)")
	flags.String("index", "", "plugin index URL or path (overrides index.default)")
	flags.String("plugin-dir", "", "live plugin directory (overrides plugins.dir)")

	// Main commands
	rootCmd.AddCommand(pluginCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(aboutCmd)
}

// RegisterPluginAliases registers root-level aliases for plugin subcommands
// Must be called after plugin subcommands are initialized
func RegisterPluginAliases() {
	rootCmd.AddCommand(createAliasCommand(pluginSearchCmd, []string{"find-plugin"}))
	rootCmd.AddCommand(createAliasCommand(pluginInstallCmd, []string{"install-plugin"}))
	rootCmd.AddCommand(createAliasCommand(pluginGitCmd, []string{"git-plugin"}))
}
