package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/egoavara/plugforge/internal/config"
	"github.com/egoavara/plugforge/internal/i18n"
	"github.com/egoavara/plugforge/internal/orchestrator"
	"github.com/egoavara/plugforge/internal/plugin"
	"github.com/egoavara/plugforge/internal/search"
	"github.com/egoavara/plugforge/internal/tui"
)

var pluginCmd = &cobra.Command{
	Use:   "plugin",
	Short: "Manage plugins",
	Long: `Find, install and build plugins.

Commands:
  search   Search the plugin index
  install  Install a plugin from the plugin index
  git      Build and install a plugin from a git repository
  list     List installed plugins`,
}

var pluginSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the plugin index",
	Long: `Search the default plugin index for plugins whose name contains the query.

Results are ordered by fuzzy match quality. With --pick an interactive
picker opens and the chosen plugin is installed.

Example:
  plugforge plugin search formatter
  plugforge plugin search --pick`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPluginSearch,
}

var pluginInstallCmd = &cobra.Command{
	Use:   "install [name]",
	Short: "Install a plugin from the plugin index",
	Long: `Install the single plugin in the default index whose name contains name.

Binary plugins are downloaded; plugins that point at a git repository are
built from source. Without a name, an interactive picker opens.

Example:
  plugforge plugin install foo-plugin
  plugforge plugin install foo --index ./plugins.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPluginInstall,
}

var pluginGitCmd = &cobra.Command{
	Use:   "git <repository-url>",
	Short: "Build and install a plugin from a git repository",
	Long: `Clone a plugin project, build it and install the artifact.

The checkout lives in a temporary workspace that is always removed,
unless --checkout-dir names a directory to keep it in.

Example:
  plugforge plugin git https://github.com/example/foo-plugin.git
  plugforge plugin git https://github.com/example/foo-plugin.git --ref v1.2.0`,
	Args: cobra.ExactArgs(1),
	RunE: runPluginGit,
}

var pluginListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed plugins",
	Long: `List the occupied plugin slots recorded by plugforge.

The ledger lives next to the config file. With --prune, slots whose
artifact no longer exists are forgotten first.

Example:
  plugforge plugin list
  plugforge plugin list --prune`,
	Args: cobra.NoArgs,
	RunE: runPluginList,
}

var (
	pluginSearchPick   bool
	pluginGitRef       string
	pluginGitCheckout  string
	pluginListPrune    bool
	progressStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	installedMarkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
)

func init() {
	pluginSearchCmd.Flags().BoolVarP(&pluginSearchPick, "pick", "i", false, "pick a result interactively and install it")
	pluginGitCmd.Flags().StringVar(&pluginGitRef, "ref", "", "branch, tag or commit to build (default branch if empty)")
	pluginGitCmd.Flags().StringVar(&pluginGitCheckout, "checkout-dir", "", "keep the checkout in this directory")
	pluginListCmd.Flags().BoolVar(&pluginListPrune, "prune", false, "forget plugins whose installed file is gone")

	pluginCmd.AddCommand(pluginSearchCmd)
	pluginCmd.AddCommand(pluginInstallCmd)
	pluginCmd.AddCommand(pluginGitCmd)
	pluginCmd.AddCommand(pluginListCmd)
}

func runPluginSearch(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) > 0 {
		query = args[0]
	}

	return withRuntime(cmd, func(rt *runtime) error {
		refs, err := rt.orchestrator.Search(cmd.Context(), query)
		if err != nil {
			return err
		}

		if pluginSearchPick {
			return pickAndInstall(cmd, rt, refs, query)
		}

		out := cmd.OutOrStdout()
		if len(refs) == 0 {
			fmt.Fprintln(out, i18n.T("search.none", map[string]any{"Query": query}))
			return nil
		}

		installed := installedNames(rt.ledger)
		results := search.Rank(refs, query)

		fmt.Fprintln(out, i18n.T("search.results", map[string]any{"Count": len(results)}, len(results)))
		fmt.Fprintln(out)
		for _, r := range results {
			printReference(out, r.Reference, installed[r.Reference.Name])
		}
		return nil
	})
}

func runPluginInstall(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(rt *runtime) error {
		if len(args) == 0 {
			if !tui.Interactive() {
				return fmt.Errorf("%s", i18n.T("install.name_required", nil))
			}
			refs, err := rt.orchestrator.Search(cmd.Context(), "")
			if err != nil {
				return err
			}
			return pickAndInstall(cmd, rt, refs, "")
		}

		ctx := withProgress(cmd.Context(), cmd.ErrOrStderr())
		rep, err := rt.orchestrator.InstallByName(ctx, args[0])
		return finishInstall(cmd.OutOrStdout(), rep, err)
	})
}

func runPluginGit(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(rt *runtime) error {
		ctx := withProgress(cmd.Context(), cmd.ErrOrStderr())
		rep, err := rt.orchestrator.InstallFromSourceControl(ctx, args[0], pluginGitRef, pluginGitCheckout)
		return finishInstall(cmd.OutOrStdout(), rep, err)
	})
}

func runPluginList(cmd *cobra.Command, args []string) error {
	ledger := plugin.NewInstalledManager(config.LedgerPath(configPath))
	out := cmd.OutOrStdout()

	if pluginListPrune {
		stale, err := ledger.Prune()
		if err != nil {
			return err
		}
		if len(stale) > 0 {
			fmt.Fprintln(out, i18n.T("list.pruned", map[string]any{"Count": len(stale)}, len(stale)))
			for _, slot := range stale {
				fmt.Fprintf(out, "  %s\n", slot)
			}
			fmt.Fprintln(out)
		}
	}

	slots, installed, err := ledger.List()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, i18n.T("list.header", nil))
	fmt.Fprintln(out, strings.Repeat("-", 40))

	if len(slots) == 0 {
		fmt.Fprintln(out, i18n.T("list.empty", nil))
		return nil
	}

	for _, slot := range slots {
		entry := installed.Slots[slot]
		version := entry.Version
		if version == "" {
			version = "latest"
		}
		fmt.Fprintf(out, "  %s\n", slot)
		fmt.Fprintf(out, "    %s (v%s)\n", entry.Name, version)
		switch entry.Strategy {
		case plugin.StrategyGit:
			source := entry.Repository
			if entry.Ref != "" {
				source += "#" + entry.Ref
			}
			fmt.Fprintf(out, "    Source: %s\n", source)
			if entry.Commit != "" {
				fmt.Fprintf(out, "    Commit: %s\n", entry.Commit)
			}
		default:
			fmt.Fprintf(out, "    Artifact: %s\n", entry.Coordinate)
		}
		fmt.Fprintf(out, "    Path: %s\n", entry.Path)
		fmt.Fprintf(out, "    Installed: %s\n", entry.InstalledAt)
		fmt.Fprintln(out)
	}
	return nil
}

// pickAndInstall opens the picker over refs and installs the chosen one.
func pickAndInstall(cmd *cobra.Command, rt *runtime, refs []plugin.Reference, query string) error {
	installed := installedNames(rt.ledger)
	items := make([]tui.PickerItem, 0, len(refs))
	for _, ref := range refs {
		items = append(items, tui.PickerItem{Reference: ref, Installed: installed[ref.Name]})
	}

	chosen, err := tui.RunPicker(cmd.Context(), items, query)
	if err != nil {
		return err
	}
	if chosen == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("search.cancelled", nil))
		return nil
	}

	ctx := withProgress(cmd.Context(), cmd.ErrOrStderr())
	rep, err := rt.orchestrator.InstallReference(ctx, *chosen)
	return finishInstall(cmd.OutOrStdout(), rep, err)
}

func finishInstall(w io.Writer, rep *orchestrator.Report, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(w, i18n.T("install.done", map[string]any{
		"Name": rep.Reference.Name,
		"Path": rep.Path,
	}))
	return nil
}

// withProgress prints a line to w for every install phase worth reporting.
func withProgress(ctx context.Context, w io.Writer) context.Context {
	return plugin.WithTracker(ctx, plugin.TrackerFunc(func(p plugin.Phase) {
		if p.Terminal() {
			return
		}
		switch p {
		case plugin.PhaseIdle, plugin.PhaseSlotOccupancyChecked, plugin.PhaseInstalled:
			return
		}
		fmt.Fprintln(w, progressStyle.Render(i18n.T("phase."+string(p), nil)))
	}))
}

func installedNames(ledger *plugin.InstalledManager) map[string]bool {
	names := make(map[string]bool)
	_, installed, err := ledger.List()
	if err != nil {
		return names
	}
	for _, entry := range installed.Slots {
		names[entry.Name] = true
	}
	return names
}

func printReference(w io.Writer, ref plugin.Reference, installed bool) {
	version := ref.Version
	if version == "" {
		version = "latest"
	}

	mark := ""
	if installed {
		mark = " " + installedMarkStyle.Render(i18n.T("search.installed", nil))
	}
	fmt.Fprintf(w, "  %s (v%s)%s\n", ref.Name, version, mark)

	if ref.IsGit() {
		source := ref.GitRepo
		if ref.GitRef != "" {
			source += "#" + ref.GitRef
		}
		fmt.Fprintf(w, "    Source: %s\n", source)
	} else {
		fmt.Fprintf(w, "    Artifact: %s\n", ref.Artifact)
	}

	if ref.Description != "" {
		fmt.Fprintf(w, "    %s\n", ref.Description)
	}
	if len(ref.Tags) > 0 {
		fmt.Fprintf(w, "    Tags: %s\n", strings.Join(ref.Tags, ", "))
	}
	fmt.Fprintln(w)
}
