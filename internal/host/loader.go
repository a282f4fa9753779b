// Package host is the live side of plugin installation: loading artifacts
// into the running process and rescanning the plugin directory when asked.
package host

import (
	"context"
	"log/slog"
	"path/filepath"
	goplugin "plugin"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/egoavara/plugforge/internal/plugin"
)

// Loader makes an installed artifact live.
type Loader interface {
	Load(ctx context.Context, path string) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, path string) error

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, path string) error {
	return f(ctx, path)
}

// PluginLoader opens .so artifacts with the Go plugin package. Artifacts of
// other kinds are recorded as pending and left for the host's next rescan.
type PluginLoader struct {
	mu      sync.Mutex
	opened  map[string]*goplugin.Plugin
	pending map[string]bool
	logger  *slog.Logger
}

// NewPluginLoader creates a PluginLoader.
func NewPluginLoader(logger *slog.Logger) *PluginLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PluginLoader{
		opened:  make(map[string]*goplugin.Plugin),
		pending: make(map[string]bool),
		logger:  logger,
	}
}

// Load opens path if it is a Go plugin, otherwise records it as pending.
func (l *PluginLoader) Load(ctx context.Context, path string) error {
	if filepath.Ext(path) != ".so" {
		l.mu.Lock()
		l.pending[path] = true
		l.mu.Unlock()
		l.logger.InfoContext(ctx, "artifact queued for next rescan", "path", path)
		return nil
	}

	p, err := goplugin.Open(path)
	if err != nil {
		return oops.Code(plugin.CodeLoadFailed).
			With("path", path).
			Wrapf(err, "failed to load plugin %s", path)
	}

	l.mu.Lock()
	l.opened[path] = p
	delete(l.pending, path)
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "plugin loaded", "path", path)
	return nil
}

// Loaded returns the paths of opened plugins, sorted.
func (l *PluginLoader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedKeys(l.opened)
}

// Pending returns the paths waiting for a rescan, sorted.
func (l *PluginLoader) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return sortedKeys(l.pending)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
