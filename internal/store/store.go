// Package store resolves the local model cache and acquires missing
// artifacts.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"go.uber.org/zap"

	"whisper-stream/internal/archive"
	"whisper-stream/internal/domain"
	"whisper-stream/internal/metrics"
)

const (
	// AppNamespace is the directory created under the platform data dir.
	AppNamespace = "whisper-stream"

	// EncoderBaseName is the model whose Core ML encoder is published.
	EncoderBaseName = "ggml-base.en"
	// DefaultEncoderURLTemplate has "{}" replaced by EncoderBaseName.
	DefaultEncoderURLTemplate = "https://models.milan.place/whisper-cpp/metal//{}-encoder.mlmodelc.zip"

	// EncoderDirName is the expanded encoder directory under the cache root.
	EncoderDirName = EncoderBaseName + "-encoder.mlmodelc"

	zipSuffix = ".zip"
)

// ErrEncoderLayout means the encoder archive expanded without producing
// EncoderDirName under the cache root.
var ErrEncoderLayout = errors.New("unexpected Core ML encoder archive layout")

// Fetcher downloads url into destination.
type Fetcher interface {
	Fetch(ctx context.Context, url, destination string) error
}

// Expander unpacks an archive and rolls back on failure.
type Expander interface {
	ExpandRequest(req archive.Request) error
}

// Store maps models onto files under a cache root. Ensure is not
// single-flight: concurrent calls for the same missing model race on the
// destination, so callers needing that guarantee must serialize them.
type Store struct {
	root            string
	fetcher         Fetcher
	expander        Expander
	encoderEnabled  bool
	encoderTemplate string
	logger          *zap.Logger
	metrics         *metrics.Metrics
	stat            func(string) (os.FileInfo, error)
	mkdirAll        func(string, os.FileMode) error
	remove          func(string) error
}

// Option configures a Store.
type Option func(*Store)

// WithRoot overrides the cache root directory.
func WithRoot(dir string) Option {
	return func(s *Store) {
		s.root = strings.TrimSpace(dir)
	}
}

// WithFetcher sets the downloader.
func WithFetcher(f Fetcher) Option {
	return func(s *Store) {
		s.fetcher = f
	}
}

// WithExpander sets the archive expander used for the encoder artifact.
func WithExpander(e Expander) Option {
	return func(s *Store) {
		s.expander = e
	}
}

// WithEncoder enables acquisition of the Core ML encoder directory.
func WithEncoder(enabled bool) Option {
	return func(s *Store) {
		s.encoderEnabled = enabled
	}
}

// WithEncoderURL overrides the encoder archive location.
func WithEncoderURL(template string) Option {
	return func(s *Store) {
		if template != "" {
			s.encoderTemplate = template
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches cache counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New builds a Store. A fetcher must be supplied before Ensure can
// download anything; an expander is required only when the encoder is
// enabled.
func New(opts ...Option) *Store {
	s := &Store{
		encoderTemplate: DefaultEncoderURLTemplate,
		logger:          zap.NewNop(),
		stat:            os.Stat,
		mkdirAll:        os.MkdirAll,
		remove:          os.Remove,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultRoot returns <platform local data dir>/whisper-stream.
func DefaultRoot() string {
	return filepath.Join(xdg.DataHome, AppNamespace)
}

// Root resolves the cache root and creates it if missing.
func (s *Store) Root() (string, error) {
	root := s.root
	if root == "" {
		root = DefaultRoot()
	}
	if err := s.mkdirAll(root, 0o755); err != nil {
		return "", &domain.IOError{Op: "create cache directory", Path: root, Err: err}
	}
	return root, nil
}

// ArtifactPath returns where model's artifact lives, creating the root.
func (s *Store) ArtifactPath(model domain.Model) (string, error) {
	if !model.Valid() {
		return "", fmt.Errorf("%w: %s", domain.ErrModelNotFound, model)
	}
	root, err := s.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, model.FileName()), nil
}

// IsPresent reports whether model's artifact exists. Presence is the only
// acquisition signal; a truncated earlier download also counts as present.
func (s *Store) IsPresent(model domain.Model) (bool, string, error) {
	path, err := s.ArtifactPath(model)
	if err != nil {
		return false, "", err
	}
	ok, err := s.exists(path)
	return ok, path, err
}

// EncoderDir returns the Core ML encoder directory path.
func (s *Store) EncoderDir() (string, error) {
	root, err := s.Root()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, EncoderDirName), nil
}

// EncoderEnabled reports whether Ensure also acquires the encoder.
func (s *Store) EncoderEnabled() bool {
	return s.encoderEnabled
}

// Ensure returns the path of model's artifact, downloading it first when
// it is absent. When the encoder is enabled it is acquired as well. An
// artifact already on disk is returned without any network I/O.
func (s *Store) Ensure(ctx context.Context, model domain.Model) (string, error) {
	path, err := s.ArtifactPath(model)
	if err != nil {
		return "", err
	}

	present, err := s.exists(path)
	if err != nil {
		return "", err
	}
	if present {
		s.logger.Debug("model already cached", zap.String("model", model.Name()), zap.String("path", path))
		s.metrics.ObserveCacheHit()
	} else {
		if s.fetcher == nil {
			return "", fmt.Errorf("download model %s: no fetcher configured", model)
		}
		s.logger.Info("downloading whisper model", zap.String("model", model.Name()), zap.String("path", path))
		if err := s.fetcher.Fetch(ctx, model.URL(), path); err != nil {
			return "", fmt.Errorf("download model %s: %w", model, err)
		}
		s.logger.Info("whisper model downloaded", zap.String("path", path))
	}

	if s.encoderEnabled {
		if err := s.ensureEncoder(ctx); err != nil {
			return "", err
		}
	}
	return path, nil
}

func (s *Store) ensureEncoder(ctx context.Context) error {
	root, err := s.Root()
	if err != nil {
		return err
	}
	encoderDir := filepath.Join(root, EncoderDirName)

	present, err := s.exists(encoderDir)
	if err != nil {
		return err
	}
	if present {
		s.logger.Debug("Core ML encoder already present", zap.String("path", encoderDir))
		s.metrics.ObserveCacheHit()
		return nil
	}
	if s.fetcher == nil || s.expander == nil {
		return fmt.Errorf("acquire Core ML encoder: fetcher and expander are required")
	}

	url := strings.ReplaceAll(s.encoderTemplate, "{}", EncoderBaseName)
	zipPath := encoderDir + zipSuffix

	s.logger.Info("downloading Core ML encoder", zap.String("url", url), zap.String("path", zipPath))
	if err := s.fetcher.Fetch(ctx, url, zipPath); err != nil {
		return fmt.Errorf("download Core ML encoder: %w", err)
	}

	s.logger.Info("unzipping Core ML encoder", zap.String("dest", root))
	if err := s.expander.ExpandRequest(archive.Request{
		ArchivePath: zipPath,
		DestDir:     root,
		ArtifactDir: encoderDir,
	}); err != nil {
		return fmt.Errorf("expand Core ML encoder: %w", err)
	}

	if err := s.remove(zipPath); err != nil {
		s.logger.Warn("could not remove Core ML encoder archive", zap.String("path", zipPath), zap.Error(err))
	}

	present, err = s.exists(encoderDir)
	if err != nil {
		return err
	}
	if !present {
		s.logger.Warn("Core ML encoder archive did not produce the expected directory",
			zap.String("url", url),
			zap.String("path", encoderDir),
		)
		return fmt.Errorf("%w: %s not found after expanding %s", ErrEncoderLayout, EncoderDirName, url)
	}
	s.logger.Info("Core ML encoder available", zap.String("path", encoderDir))
	return nil
}

func (s *Store) exists(path string) (bool, error) {
	_, err := s.stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, &domain.IOError{Op: "check artifact", Path: path, Err: err}
}
