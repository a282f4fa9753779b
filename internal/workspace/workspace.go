// Package workspace manages the temporary directories an install attempt
// stages its work in.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/egoavara/plugforge/internal/plugin"
)

const (
	rootPrefix   = "plugforge-"
	repoDirName  = "repo"
	rootDirPerms = 0o700
)

// Workspace is a uniquely named temporary directory owned by one attempt.
type Workspace struct {
	root     string
	mu       sync.Mutex
	released bool
}

// Acquire creates a fresh workspace under parent, or under the system temp
// directory when parent is empty. A workspace is never reused.
func Acquire(parent string) (*Workspace, error) {
	if parent == "" {
		parent = os.TempDir()
	}

	root := filepath.Join(parent, rootPrefix+ulid.Make().String())
	if err := os.Mkdir(root, rootDirPerms); err != nil {
		return nil, oops.Code(plugin.CodeWorkspaceFailed).
			With("path", root).
			Wrapf(err, "failed to create workspace")
	}

	return &Workspace{root: root}, nil
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// PrepareBuildDir returns an empty directory to check sources out into.
// An explicit directory is used as given and survives Release; otherwise the
// directory lives inside the workspace. Any previous contents are removed.
//
// An explicit directory that is, or contains, the working directory, the home
// directory or any of protected is refused, as is one inside protected.
func (w *Workspace) PrepareBuildDir(explicit string, protected ...string) (string, error) {
	dir := filepath.Join(w.root, repoDirName)
	if explicit != "" {
		abs, err := filepath.Abs(explicit)
		if err != nil {
			return "", oops.Code(plugin.CodeWorkspaceFailed).
				With("path", explicit).
				Wrapf(err, "invalid checkout directory")
		}
		if err := checkOverlap(abs, protected); err != nil {
			return "", err
		}
		dir = abs
	}

	if err := os.RemoveAll(dir); err != nil {
		return "", oops.Code(plugin.CodeWorkspaceFailed).
			With("path", dir).
			Wrapf(err, "failed to clean checkout directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", oops.Code(plugin.CodeWorkspaceFailed).
			With("path", dir).
			Wrapf(err, "failed to create checkout directory")
	}

	return dir, nil
}

func checkOverlap(dir string, protected []string) error {
	var guarded []string
	if wd, err := os.Getwd(); err == nil {
		guarded = append(guarded, wd)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		guarded = append(guarded, home)
	}

	refuse := func(other string) error {
		return oops.Code(plugin.CodeWorkspaceFailed).
			With("path", dir).
			With("protected", other).
			Hint("choose an empty directory for --checkout-dir").
			Errorf("refusing to clean checkout directory %s: it overlaps %s", dir, other)
	}

	for _, g := range guarded {
		if within(g, dir) {
			return refuse(g)
		}
	}
	for _, p := range protected {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if within(abs, dir) || within(dir, abs) {
			return refuse(abs)
		}
	}
	return nil
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Release deletes the workspace and everything inside it. It is safe to call
// more than once.
func (w *Workspace) Release() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.released {
		return nil
	}
	if err := os.RemoveAll(w.root); err != nil {
		return oops.Code(plugin.CodeWorkspaceFailed).
			With("path", w.root).
			Wrapf(err, "failed to remove workspace")
	}
	w.released = true
	return nil
}
