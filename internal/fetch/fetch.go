// Package fetch opens index and artifact locations over HTTP or the local
// filesystem. Remote requests are traced and retried on transient failures.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout   = 5 * time.Minute
	defaultRetries   = 3
	defaultBaseDelay = 250 * time.Millisecond
)

// StatusError is returned when a remote location answers with a non-2xx status.
type StatusError struct {
	Location   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.Location, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Fetcher opens locations.
type Fetcher struct {
	client    *http.Client
	retries   uint64
	baseDelay time.Duration
	logger    *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds a single request, including reading its body.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.retries = uint64(n)
		}
	}
}

// WithBaseDelay sets the first backoff delay. Later delays grow exponentially.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.baseDelay = d
		}
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithTransport replaces the base round tripper. It is still wrapped for tracing.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.client.Transport = otelhttp.NewTransport(rt)
	}
}

// New creates a Fetcher with a traced HTTP client.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		retries:   defaultRetries,
		baseDelay: defaultBaseDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsRemote reports whether location is an http or https URL.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Name returns the last path element of a location, without query or fragment.
func Name(location string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return path.Base(u.Path)
	}
	return filepath.Base(location)
}

// Open returns a reader for location. Callers must close it.
// http and https URLs are fetched remotely; file URLs and plain paths are opened locally.
func (f *Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if strings.TrimSpace(location) == "" {
		return nil, oops.Errorf("empty location")
	}
	if IsRemote(location) {
		return f.openRemote(ctx, location)
	}
	return openLocal(location)
}

func (f *Fetcher) openRemote(ctx context.Context, location string) (io.ReadCloser, error) {
	var body io.ReadCloser
	attempt := 0

	backoff := retry.WithMaxRetries(f.retries, retry.NewExponential(f.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return err
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.DebugContext(ctx, "fetch attempt failed",
				"location", location, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			statusErr := &StatusError{Location: location, StatusCode: resp.StatusCode}
			if statusErr.Temporary() {
				f.logger.DebugContext(ctx, "fetch attempt failed",
					"location", location, "attempt", attempt, "status", resp.StatusCode)
				return retry.RetryableError(statusErr)
			}
			return statusErr
		}

		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, oops.
			With("location", location).
			With("attempts", attempt).
			Wrapf(err, "failed to fetch %s", location)
	}
	return body, nil
}

func openLocal(location string) (io.ReadCloser, error) {
	p := location
	if strings.HasPrefix(location, "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, oops.With("location", location).Wrapf(err, "invalid file URL")
		}
		p = u.Path
	}

	file, err := os.Open(p)
	if err != nil {
		return nil, oops.With("location", location).Wrapf(err, "failed to open %s", p)
	}
	return file, nil
}
