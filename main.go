package main

import (
	"github.com/egoavara/plugforge/cmd"
	"github.com/egoavara/plugforge/internal/config"
	"github.com/egoavara/plugforge/internal/i18n"
)

func main() {
	// Locale from the default config file; --config is applied per command.
	i18n.Init(i18n.Resolve(config.GetLocale()))

	// Register plugin aliases (search, install, git)
	cmd.RegisterPluginAliases()

	cmd.Execute()
}
