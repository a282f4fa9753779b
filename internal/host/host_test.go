package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/egoavara/plugforge/internal/errutil"
	"github.com/egoavara/plugforge/internal/logging"
	"github.com/egoavara/plugforge/internal/plugin"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingLoader struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]bool
}

func (r *recordingLoader) Load(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[filepath.Base(path)] {
		return errors.New("bad artifact")
	}
	r.paths = append(r.paths, path)
	return nil
}

func (r *recordingLoader) loaded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSignal_Coalesces(t *testing.T) {
	s := NewSignal()

	require.NoError(t, s.Reinitialize())
	require.NoError(t, s.Reinitialize())
	require.NoError(t, s.Reinitialize())

	<-s.C()
	select {
	case <-s.C():
		t.Fatal("requests should coalesce into one")
	default:
	}
}

func TestSignal_Closed(t *testing.T) {
	s := NewSignal()
	s.Close()
	s.Close()

	err := s.Reinitialize()
	errutil.AssertErrorCode(t, err, plugin.CodeReinitializeFailed)

	_, ok := <-s.C()
	assert.False(t, ok)
}

func TestManager_ScanLoadsNewAndChanged(t *testing.T) {
	dir := t.TempDir()
	loader := &recordingLoader{}
	m := NewManager(dir, loader, logging.Discard())

	a := writeArtifact(t, dir, "example_a.so", "a")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	n, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "unchanged artifacts are not reloaded")

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(a, later, later))
	writeArtifact(t, dir, "example_b.so", "b")

	n, err = m.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, loader.loaded(), 3)
}

func TestManager_LoadIsRemembered(t *testing.T) {
	dir := t.TempDir()
	loader := &recordingLoader{}
	m := NewManager(dir, loader, logging.Discard())

	path := writeArtifact(t, dir, "example_a.so", "a")
	require.NoError(t, m.Load(context.Background(), path))

	n, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_ScanContinuesPastFailures(t *testing.T) {
	dir := t.TempDir()
	loader := &recordingLoader{fail: map[string]bool{"broken.so": true}}
	m := NewManager(dir, loader, logging.Discard())

	writeArtifact(t, dir, "broken.so", "x")
	writeArtifact(t, dir, "good.so", "y")

	n, err := m.Scan(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestManager_ScanMissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent"), &recordingLoader{}, logging.Discard())
	n, err := m.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_RunServesSignalsUntilClosed(t *testing.T) {
	dir := t.TempDir()
	loader := &recordingLoader{}
	m := NewManager(dir, loader, logging.Discard())
	s := NewSignal()

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background(), s.C()) }()

	writeArtifact(t, dir, "example_a.so", "a")
	require.NoError(t, s.Reinitialize())
	s.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	assert.Len(t, loader.loaded(), 1, "pending request is served before exit")
}

func TestManager_RunStopsOnContext(t *testing.T) {
	m := NewManager(t.TempDir(), &recordingLoader{}, logging.Discard())
	s := NewSignal()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, s.C()) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestPluginLoader_NonPluginArtifactIsPending(t *testing.T) {
	l := NewPluginLoader(logging.Discard())
	path := writeArtifact(t, t.TempDir(), "example_foo.jar", "jar")

	require.NoError(t, l.Load(context.Background(), path))
	assert.Equal(t, []string{path}, l.Pending())
	assert.Empty(t, l.Loaded())
}

func TestPluginLoader_InvalidSharedObject(t *testing.T) {
	l := NewPluginLoader(logging.Discard())
	path := writeArtifact(t, t.TempDir(), "example_foo.so", "not an elf file")

	err := l.Load(context.Background(), path)
	errutil.AssertErrorCode(t, err, plugin.CodeLoadFailed)
	assert.Empty(t, l.Loaded())
}

func TestLoaderFunc(t *testing.T) {
	var got string
	f := LoaderFunc(func(_ context.Context, path string) error {
		got = path
		return nil
	})
	require.NoError(t, f.Load(context.Background(), "/p/x.so"))
	assert.Equal(t, "/p/x.so", got)
}
