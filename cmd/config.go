package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/egoavara/plugforge/internal/config"
	"github.com/egoavara/plugforge/internal/i18n"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage plugforge configuration",
	Long: `Manage plugforge configuration settings.

Example:
  plugforge config show
  plugforge config set index.default https://plugins.example.com/index.yaml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Available keys:
` + keyHelp() + `
Example:
  plugforge config set locale ko-KR
  plugforge config set index.default https://plugins.example.com/index.yaml
  plugforge config set fetch.retries 5`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintln(out, strings.Repeat("-", 40))
	for _, kv := range cfg.Values() {
		value := kv[1]
		if value == "" {
			value = "(not set)"
		}
		fmt.Fprintf(out, "  %s: %s\n", kv[0], value)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Locale:")
	if cfg.Locale == "auto" {
		fmt.Fprintln(out, "  auto: System locale is auto-detected")
	} else {
		fmt.Fprintf(out, "  %s: Using fixed locale\n", cfg.Locale)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if err := config.SetValue(configPath, key, value); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), i18n.T("config.updated", map[string]any{"Key": key, "Value": value}))
	return nil
}

func keyHelp() string {
	keys := make([]string, 0, len(config.Keys))
	for key := range config.Keys {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "  %-18s - %s\n", key, config.Keys[key])
	}
	return b.String()
}
