// Package download fetches binary plugin artifacts into a staging directory.
package download

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/egoavara/plugforge/internal/fetch"
	"github.com/egoavara/plugforge/internal/plugin"
)

// Opener opens an artifact location for reading.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// HTTPDownloader downloads the artifact named by a reference's URL.
type HTTPDownloader struct {
	opener Opener
	logger *slog.Logger
}

// NewHTTPDownloader creates an HTTPDownloader reading through opener.
func NewHTTPDownloader(opener Opener, logger *slog.Logger) *HTTPDownloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPDownloader{opener: opener, logger: logger}
}

// Download writes the artifact of ref to destDir/<base name of its URL> and
// returns that path. An empty body counts as nothing produced.
func (d *HTTPDownloader) Download(ctx context.Context, ref plugin.Reference, destDir string) (string, error) {
	errb := oops.Code(plugin.CodeDownloadFailed).
		With("plugin", ref.Name).
		With("artifact", ref.Artifact)

	if ref.URL == "" {
		return "", errb.Errorf("plugin [%s] has no download location for %s", ref.Name, ref.Artifact)
	}

	name := fetch.Name(ref.URL)
	if name == "" || name == "." || name == "/" {
		return "", errb.With("url", ref.URL).Errorf("cannot derive a file name from %s", ref.URL)
	}
	dest := filepath.Join(destDir, name)

	rc, err := d.opener.Open(ctx, ref.URL)
	if err != nil {
		return "", errb.With("url", ref.URL).Wrapf(err, "failed to download %s", ref.Artifact)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return "", errb.With("path", dest).Wrapf(err, "failed to create %s", dest)
	}

	n, err := io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", errb.With("url", ref.URL).Wrapf(err, "failed to write %s", dest)
	}
	if n == 0 {
		_ = os.Remove(dest)
		return "", errb.With("url", ref.URL).Errorf("download of %s produced no artifact", ref.Artifact)
	}

	d.logger.DebugContext(ctx, "artifact downloaded",
		"plugin", ref.Name, "url", ref.URL, "path", dest, "bytes", n)
	return dest, nil
}
