package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "plugforge"

// Dir returns the plugforge config directory path.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config/plugforge/
func Dir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "~"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigPath returns the config.yaml file path
// ~/.config/plugforge/config.yaml
func ConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// LedgerPath returns the installed.json file that sits next to configPath
// ~/.config/plugforge/installed.json for the default config
func LedgerPath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "installed.json")
}

// DefaultPluginDir returns the default live plugin directory
// ~/.config/plugforge/plugins/
func DefaultPluginDir() string {
	return filepath.Join(Dir(), "plugins")
}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
