package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(retries int) *Fetcher {
	return New(WithRetries(retries), WithBaseDelay(time.Millisecond), WithTimeout(5*time.Second))
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestOpen_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plugins: []"))
	}))
	defer srv.Close()

	rc, err := newTestFetcher(0).Open(context.Background(), srv.URL+"/index.yaml")
	require.NoError(t, err)
	assert.Equal(t, "plugins: []", readAll(t, rc))
}

func TestOpen_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	rc, err := newTestFetcher(3).Open(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", readAll(t, rc))
	assert.Equal(t, int32(3), calls.Load())
}

func TestOpen_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Open(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestOpen_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Open(context.Background(), srv.URL+"/missing.jar")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "404")
}

func TestOpen_RetriesTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	rc, err := newTestFetcher(1).Open(context.Background(), srv.URL)
	require.NoError(t, err)
	readAll(t, rc)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpen_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(3).Open(ctx, srv.URL)
	assert.Error(t, err)
}

func TestOpen_LocalPathAndFileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.yaml")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))

	f := newTestFetcher(0)

	rc, err := f.Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "local", readAll(t, rc))

	rc, err = f.Open(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "local", readAll(t, rc))
}

func TestOpen_LocalMissing(t *testing.T) {
	_, err := newTestFetcher(0).Open(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestOpen_EmptyLocation(t *testing.T) {
	_, err := newTestFetcher(0).Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestName(t *testing.T) {
	assert.Equal(t, "foo-1.0.jar", Name("https://repo.example.com/com/example/foo-1.0.jar?sig=abc"))
	assert.Equal(t, "foo.so", Name("file:///srv/plugins/foo.so"))
	assert.Equal(t, "bar.so", Name("/tmp/build/bar.so"))
	assert.True(t, IsRemote("http://x/y"))
	assert.False(t, IsRemote("/tmp/x"))
	assert.False(t, IsRemote("C:\\plugins\\x.so"))
}
