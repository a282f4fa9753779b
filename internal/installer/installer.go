// Package installer places artifacts into live plugin slots.
package installer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/egoavara/plugforge/internal/config"
	"github.com/egoavara/plugforge/internal/i18n"
	"github.com/egoavara/plugforge/internal/plugin"
)

// Prompter asks the user yes/no questions.
type Prompter interface {
	Confirm(ctx context.Context, question string, defaultYes bool) (bool, error)
}

// Loader makes an installed artifact live.
type Loader interface {
	Load(ctx context.Context, path string) error
}

// Installer copies artifacts into the plugin directory and loads them.
type Installer struct {
	pluginDir string
	prompter  Prompter
	loader    Loader
	logger    *slog.Logger
}

// New creates an Installer for pluginDir.
func New(pluginDir string, prompter Prompter, loader Loader, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{
		pluginDir: pluginDir,
		prompter:  prompter,
		loader:    loader,
		logger:    logger,
	}
}

// Install copies artifactPath into the slot and loads it, returning the
// installed path. An occupied slot is only replaced after confirmation.
// If loading fails the file stays installed and LOAD_FAILED is returned.
func (i *Installer) Install(ctx context.Context, artifactPath, slot string) (string, error) {
	if !plugin.IsRegularFile(artifactPath) {
		return "", plugin.ErrArtifactMissing(artifactPath)
	}
	if i.pluginDir == "" {
		return "", plugin.ErrConfigMissing("plugins.dir", "set the live plugin directory or pass --plugin-dir")
	}
	if slot == "" || slot != filepath.Base(slot) || slot == "." || slot == ".." {
		return "", oops.Code(plugin.CodeInstallFailed).
			With("slot", slot).
			Errorf("invalid plugin slot %q", slot)
	}

	errb := oops.Code(plugin.CodeInstallFailed).
		With("artifact", artifactPath).
		With("slot", slot)

	if err := config.EnsureDir(i.pluginDir); err != nil {
		return "", errb.Wrap(err)
	}

	target := filepath.Join(i.pluginDir, slot)

	occupied, err := exists(target)
	if err != nil {
		return "", errb.Wrapf(err, "failed to inspect %s", target)
	}
	plugin.Track(ctx, plugin.PhaseSlotOccupancyChecked)

	if occupied {
		replace, err := i.prompter.Confirm(ctx, i18n.T("prompt.replace", nil), true)
		if err != nil {
			return "", errb.Wrapf(err, "failed to ask for confirmation")
		}
		if !replace {
			i.logger.InfoContext(ctx, "kept existing plugin", "path", target)
			return "", plugin.ErrAborted("existing plugin kept")
		}
		if err := os.Remove(target); err != nil {
			return "", errb.Wrapf(err, "failed to remove existing plugin %s", target)
		}
		i.logger.DebugContext(ctx, "removed existing plugin", "path", target)
	}

	if err := plugin.CopyFile(artifactPath, target); err != nil {
		return "", errb.Wrapf(err, "failed to install plugin into %s", target)
	}
	plugin.Track(ctx, plugin.PhaseInstalled)
	i.logger.InfoContext(ctx, "plugin installed", "path", target, "replaced", occupied)

	if err := i.loader.Load(ctx, target); err != nil {
		if plugin.ErrorCode(err) == "" {
			err = oops.Code(plugin.CodeLoadFailed).With("path", target).Wrap(err)
		}
		return target, err
	}

	return target, nil
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
