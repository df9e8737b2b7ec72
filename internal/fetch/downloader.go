// Package fetch downloads remote artifacts to local files.
package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"whisper-stream/internal/domain"
	"whisper-stream/internal/metrics"
)

// tempSuffix marks an in-flight download next to its destination.
const tempSuffix = ".download"

// Downloader performs blocking HTTP GETs and streams bodies to disk.
// It does not retry, resume or verify checksums.
type Downloader struct {
	client  *resty.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		if c != nil {
			d.client = resty.NewWithClient(c)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics attaches download counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Downloader) {
		d.metrics = m
	}
}

// New builds a Downloader with no request timeout.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		client: resty.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch downloads url into destination. HTTP failures are returned as
// *domain.FetchError and filesystem failures as *domain.IOError. The body
// is written to a temporary sibling file and renamed into place only after
// it has been flushed to disk.
func (d *Downloader) Fetch(ctx context.Context, url, destination string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	n, err := d.fetch(ctx, url, destination)
	d.metrics.ObserveDownload(err == nil, n)
	if err != nil {
		d.logger.Warn("download failed", zap.String("url", url), zap.String("path", destination), zap.Error(err))
		return err
	}

	d.logger.Info("download complete", zap.String("url", url), zap.String("path", destination), zap.Int64("bytes", n))
	return nil
}

func (d *Downloader) fetch(ctx context.Context, url, destination string) (int64, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return 0, &domain.FetchError{URL: url, Err: err}
	}

	body := resp.RawBody()
	if body == nil {
		return 0, &domain.FetchError{URL: url, StatusCode: resp.StatusCode(), Status: resp.Status(), Err: errors.New("empty response")}
	}
	defer body.Close()

	if !resp.IsSuccess() {
		return 0, &domain.FetchError{URL: url, StatusCode: resp.StatusCode(), Status: resp.Status()}
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return 0, &domain.IOError{Op: "prepare destination directory", Path: filepath.Dir(destination), Err: err}
	}

	tmpPath := destination + tempSuffix
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, &domain.IOError{Op: "remove stale temp file", Path: tmpPath, Err: err}
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, &domain.IOError{Op: "create", Path: tmpPath, Err: err}
	}

	n, copyErr := io.Copy(file, body)
	var syncErr error
	if copyErr == nil {
		syncErr = file.Sync()
	}
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(tmpPath)
		return n, &domain.IOError{Op: "write", Path: destination, Err: copyErr}
	case syncErr != nil:
		_ = os.Remove(tmpPath)
		return n, &domain.IOError{Op: "flush", Path: destination, Err: syncErr}
	case closeErr != nil:
		_ = os.Remove(tmpPath)
		return n, &domain.IOError{Op: "close", Path: destination, Err: closeErr}
	}

	if err := os.Rename(tmpPath, destination); err != nil {
		_ = os.Remove(tmpPath)
		return n, &domain.IOError{Op: "move download into place", Path: destination, Err: err}
	}
	return n, nil
}
