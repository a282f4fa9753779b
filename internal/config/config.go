package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultContract is the coordinate of the plugin development library every
// plugin project is expected to depend on.
const DefaultContract = "io.plugforge:plugforge-api"

// Config represents the main configuration file structure
type Config struct {
	Locale  string        `koanf:"locale"` // "auto" or ISO format (e.g., "ko-KR", "en-US")
	Index   IndexConfig   `koanf:"index"`
	Plugins PluginsConfig `koanf:"plugins"`
	Git     GitConfig     `koanf:"git"`
	Fetch   FetchConfig   `koanf:"fetch"`
	Log     LogConfig     `koanf:"log"`
}

// IndexConfig locates the plugin index searched by name
type IndexConfig struct {
	Default string `koanf:"default"` // URL or path of the default index
}

// PluginsConfig describes the live plugin directory
type PluginsConfig struct {
	Dir      string `koanf:"dir"`
	Contract string `koanf:"contract"`
}

// GitConfig contains source-control client settings
type GitConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// FetchConfig contains index and download transport settings
type FetchConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	Retries int           `koanf:"retries"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Format string `koanf:"format"` // "text" or "json"
}

// Keys lists the configuration keys accepted by SetValue
var Keys = map[string]string{
	"locale":           "Language setting (auto, en-US, ko-KR, ...)",
	"index.default":    "URL or path of the default plugin index",
	"plugins.dir":      "Directory holding live plugin artifacts",
	"plugins.contract": "Coordinate of the plugin development library",
	"git.timeout":      "Timeout of a single git invocation (e.g. 5m)",
	"fetch.timeout":    "Timeout of a single index or download request (e.g. 5m)",
	"fetch.retries":    "Retries of transient index or download failures",
	"log.format":       "Log format (text or json)",
}

// flagKeys maps command-line flag names onto configuration keys
var flagKeys = map[string]string{
	"index":      "index.default",
	"plugin-dir": "plugins.dir",
	"log-format": "log.format",
}

var (
	current   *Config
	currentMu sync.RWMutex
)

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Locale: "auto",
		Plugins: PluginsConfig{
			Dir:      DefaultPluginDir(),
			Contract: DefaultContract,
		},
		Git: GitConfig{
			Timeout: 5 * time.Minute,
		},
		Fetch: FetchConfig{
			Timeout: 5 * time.Minute,
			Retries: 3,
		},
		Log: LogConfig{
			Format: "text",
		},
	}
}

// Load loads the configuration file at path and applies changed flags on top.
// A missing file yields the defaults.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to apply flags: %w", err)
		}
	}

	cfg := NewConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Locale == "" {
		cfg.Locale = "auto"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	return cfg, nil
}

// SetValue validates and persists a single key in the config file at path
func SetValue(path, key, value string) error {
	if _, ok := Keys[key]; !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}

	var typed interface{} = value
	switch key {
	case "git.timeout", "fetch.timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration %q for %s: %w", value, key, err)
		}
	case "fetch.retries":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid value %q for %s: expected a non-negative integer", value, key)
		}
		typed = n
	case "log.format":
		if value != "text" && value != "json" {
			return fmt.Errorf("invalid value '%s' for %s. Valid values: text, json", value, key)
		}
	}

	k, err := loadFile(path)
	if err != nil {
		return err
	}
	if err := k.Set(key, typed); err != nil {
		return err
	}

	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return err
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Values returns the effective configuration as sorted key/value pairs
func (c *Config) Values() [][2]string {
	values := map[string]string{
		"locale":           c.Locale,
		"index.default":    c.Index.Default,
		"plugins.dir":      c.Plugins.Dir,
		"plugins.contract": c.Plugins.Contract,
		"git.timeout":      c.Git.Timeout.String(),
		"fetch.timeout":    c.Fetch.Timeout.String(),
		"fetch.retries":    strconv.Itoa(c.Fetch.Retries),
		"log.format":       c.Log.Format,
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([][2]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, [2]string{key, values[key]})
	}
	return pairs
}

// Get returns the current configuration, loading the default file on first use
func Get() *Config {
	currentMu.RLock()
	cfg := current
	currentMu.RUnlock()
	if cfg != nil {
		return cfg
	}

	loaded, err := Load(ConfigPath(), nil)
	if err != nil {
		loaded = NewConfig()
	}
	Set(loaded)
	return loaded
}

// Set replaces the current configuration
func Set(cfg *Config) {
	currentMu.Lock()
	defer currentMu.Unlock()
	current = cfg
}

// GetLocale returns the configured locale
func GetLocale() string {
	return Get().Locale
}

func loadFile(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return k, nil
		}
		return nil, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return k, nil
}
