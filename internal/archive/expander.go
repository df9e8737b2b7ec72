// Package archive unpacks zip-format model artifacts.
package archive

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"whisper-stream/internal/domain"
	"whisper-stream/internal/metrics"
)

// Request describes one expansion.
type Request struct {
	// ArchivePath is the zip file to read. It is removed if expansion fails.
	ArchivePath string
	// DestDir receives the archive contents.
	DestDir string
	// ArtifactDir is removed if expansion fails. Defaults to DestDir.
	ArtifactDir string
}

// Expander extracts zip archives, confining every entry to the destination
// and rolling back partial output on failure.
type Expander struct {
	logger    *zap.Logger
	metrics   *metrics.Metrics
	mkdirAll  func(string, os.FileMode) error
	openFile  func(string, int, os.FileMode) (*os.File, error)
	remove    func(string) error
	removeAll func(string) error
}

// New builds an expander using real OS dependencies.
func New(logger *zap.Logger, m *metrics.Metrics) *Expander {
	return NewForTests(logger, m, os.MkdirAll, os.OpenFile, os.Remove, os.RemoveAll)
}

// NewForTests creates an expander with injectable filesystem functions.
func NewForTests(
	logger *zap.Logger,
	m *metrics.Metrics,
	mkdirAll func(string, os.FileMode) error,
	openFile func(string, int, os.FileMode) (*os.File, error),
	remove func(string) error,
	removeAll func(string) error,
) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{
		logger:    logger,
		metrics:   m,
		mkdirAll:  mkdirAll,
		openFile:  openFile,
		remove:    remove,
		removeAll: removeAll,
	}
}

// Expand extracts archivePath into destDir, removing both on failure.
func (e *Expander) Expand(archivePath, destDir string) error {
	return e.ExpandRequest(Request{ArchivePath: archivePath, DestDir: destDir})
}

// ExpandRequest extracts req.ArchivePath into req.DestDir. Entries that
// would land outside DestDir are skipped. On any error the archive and
// req.ArtifactDir are removed on a best-effort basis and the original error
// is returned; cleanup failures are only logged.
func (e *Expander) ExpandRequest(req Request) (err error) {
	artifactDir := req.ArtifactDir
	if artifactDir == "" {
		artifactDir = req.DestDir
	}

	defer func() {
		if err != nil {
			e.rollback(req.ArchivePath, artifactDir)
		}
	}()

	return e.extract(req.ArchivePath, req.DestDir)
}

func (e *Expander) extract(archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return &domain.ArchiveError{Path: archivePath, Err: err}
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file == nil {
			continue
		}
		target, ok := enclosedPath(destDir, file.Name)
		if !ok {
			e.logger.Warn("skipping archive entry outside destination",
				zap.String("archive", archivePath),
				zap.String("entry", file.Name),
			)
			e.metrics.ObserveSkippedEntry()
			continue
		}

		if strings.HasSuffix(file.Name, "/") {
			if err := e.mkdirAll(target, 0o755); err != nil {
				return &domain.IOError{Op: "create directory", Path: target, Err: err}
			}
			continue
		}

		if err := e.extractFile(archivePath, file, target); err != nil {
			return err
		}
	}
	return nil
}

func (e *Expander) extractFile(archivePath string, file *zip.File, target string) error {
	if err := e.mkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &domain.IOError{Op: "create directory", Path: filepath.Dir(target), Err: err}
	}

	src, err := file.Open()
	if err != nil {
		return &domain.ArchiveError{Path: archivePath, Entry: file.Name, Err: err}
	}
	defer src.Close()

	dst, err := e.openFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return &domain.IOError{Op: "create", Path: target, Err: err}
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		// Checksum and decompression failures surface while reading the entry.
		var pathErr *os.PathError
		if errors.As(copyErr, &pathErr) {
			return &domain.IOError{Op: "write", Path: target, Err: copyErr}
		}
		return &domain.ArchiveError{Path: archivePath, Entry: file.Name, Err: copyErr}
	}
	if closeErr != nil {
		return &domain.IOError{Op: "close", Path: target, Err: closeErr}
	}
	return nil
}

func (e *Expander) rollback(archivePath, artifactDir string) {
	e.metrics.ObserveRollback()

	if err := e.remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("failed to remove archive during cleanup", zap.String("path", archivePath), zap.Error(err))
	}
	if artifactDir == "" {
		return
	}
	if err := e.removeAll(artifactDir); err != nil {
		e.logger.Warn("failed to remove directory during cleanup", zap.String("path", artifactDir), zap.Error(err))
	}
}

// enclosedPath joins name onto destDir, rejecting absolute names, volume
// names, NUL bytes and anything that resolves outside destDir.
func enclosedPath(destDir, name string) (string, bool) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", false
	}

	normalized := filepath.FromSlash(strings.ReplaceAll(name, `\`, "/"))
	if filepath.IsAbs(normalized) || filepath.VolumeName(normalized) != "" || strings.HasPrefix(normalized, string(filepath.Separator)) {
		return "", false
	}

	cleanName := filepath.Clean(normalized)
	if cleanName == "." {
		return "", false
	}

	target := filepath.Join(destDir, cleanName)
	if !isWithinBaseDir(destDir, target) {
		return "", false
	}
	return target, true
}

// isWithinBaseDir reports whether targetPath is baseDir or below it.
func isWithinBaseDir(baseDir string, targetPath string) bool {
	baseClean := filepath.Clean(baseDir)
	targetClean := filepath.Clean(targetPath)
	relative, err := filepath.Rel(baseClean, targetClean)
	if err != nil {
		return false
	}
	if relative == "." {
		return true
	}
	return relative != ".." && !strings.HasPrefix(relative, ".."+string(filepath.Separator))
}
