package host

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/egoavara/plugforge/internal/plugin"
)

// Manager keeps the plugin directory and the running host in sync.
type Manager struct {
	dir    string
	loader Loader
	logger *slog.Logger

	mu     sync.Mutex
	loaded map[string]time.Time
}

// NewManager creates a Manager for the plugin directory dir.
func NewManager(dir string, loader Loader, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dir:    dir,
		loader: loader,
		logger: logger,
		loaded: make(map[string]time.Time),
	}
}

// Load makes path live through the underlying loader and remembers it, so
// the next Scan skips it unless it changes again.
func (m *Manager) Load(ctx context.Context, path string) error {
	if err := m.loader.Load(ctx, path); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	m.mu.Lock()
	m.loaded[path] = info.ModTime()
	m.mu.Unlock()
	return nil
}

// Scan loads every artifact in the plugin directory that is new or changed
// since the last scan. It returns the number of artifacts loaded. A failing
// artifact does not stop the others; the failures are joined.
func (m *Manager) Scan(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, oops.Code(plugin.CodeReinitializeFailed).
			With("dir", m.dir).
			Wrapf(err, "failed to scan plugin directory")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		count int
		errs  []error
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(m.dir, entry.Name())
		if modTime, ok := m.loaded[path]; ok && modTime.Equal(info.ModTime()) {
			continue
		}

		if err := m.loader.Load(ctx, path); err != nil {
			m.logger.WarnContext(ctx, "plugin failed to load", "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		m.loaded[path] = info.ModTime()
		count++
	}

	return count, errors.Join(errs...)
}

// Run rescans the plugin directory on every signal until ctx is done or the
// signal channel is closed. Requests pending at close are still served.
func (m *Manager) Run(ctx context.Context, signals <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			n, err := m.Scan(ctx)
			if err != nil {
				m.logger.ErrorContext(ctx, "plugin rescan incomplete", "dir", m.dir, "loaded", n, "error", err)
				continue
			}
			m.logger.InfoContext(ctx, "plugin directory rescanned", "dir", m.dir, "loaded", n)
		}
	}
}
