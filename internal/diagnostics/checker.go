package diagnostics

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"whisper-stream/internal/domain"
	"whisper-stream/internal/store"
)

// Checker validates the model cache and the artifacts a session needs.
type Checker struct {
	stat       func(string) (os.FileInfo, error)
	readDir    func(string) ([]os.DirEntry, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		stat:       os.Stat,
		readDir:    os.ReadDir,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
	}
}

// Run executes all checks against settings.CacheDir and returns a
// combined report. catalog lists the models counted in the inventory item.
func (c *Checker) Run(settings domain.Settings, catalog []domain.Model) domain.DiagnosticReport {
	items := []domain.DiagnosticItem{
		c.checkCacheDir(settings.CacheDir),
		c.checkModel(settings.CacheDir, settings.Model),
	}
	if settings.CoreMLEncoder {
		items = append(items, c.checkEncoder(settings.CacheDir))
	}
	items = append(items, c.checkInventory(settings.CacheDir, catalog))

	return domain.NewDiagnosticReport(items)
}

// checkCacheDir validates cache directory existence and write access.
func (c *Checker) checkCacheDir(cacheDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "cache_dir",
		Name: "Model cache",
	}

	if strings.TrimSpace(cacheDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Cache directory is empty."
		item.Hint = "Set cache_dir in the config file or unset it to use the platform data directory."
		return item
	}

	if err := c.mkdirAll(cacheDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create cache directory: %s", cacheDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		return item
	}

	tmpFile, err := c.createTemp(cacheDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cache directory is not writable: %s", cacheDir)
		item.Hint = "Models are downloaded here; the directory must be writable."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", cacheDir)
	return item
}

// checkModel validates the configured model is known and downloaded.
func (c *Checker) checkModel(cacheDir, modelID string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "model",
		Name: "Whisper model",
	}

	model, err := domain.ParseModel(modelID)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Unknown model: %q", modelID)
		item.Hint = "Run `whisper-stream models list` to see the available models."
		return item
	}
	item.ID = "model_" + model.Name()

	path := filepath.Join(cacheDir, model.FileName())
	info, err := c.stat(path)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		if IsNotExist(err) {
			item.Message = fmt.Sprintf("Model is not downloaded: %s", path)
		} else {
			item.Message = fmt.Sprintf("Cannot access model file: %s", path)
		}
		item.Hint = fmt.Sprintf("Run `whisper-stream models fetch %s`.", model.Name())
		return item
	}
	if info.IsDir() {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Model path is a directory: %s", path)
		item.Hint = "Remove the directory so the model can be downloaded again."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Model file found: %s", path)
	return item
}

// checkEncoder validates the Core ML encoder directory when it is enabled.
func (c *Checker) checkEncoder(cacheDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "coreml_encoder",
		Name: "Core ML encoder",
	}

	dir := filepath.Join(cacheDir, store.EncoderDirName)
	info, err := c.stat(dir)
	switch {
	case IsNotExist(err):
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Encoder directory is missing: %s", dir)
		item.Hint = "Run `whisper-stream models fetch` with coreml_encoder enabled."
	case err != nil:
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot access encoder directory: %s", dir)
		item.Hint = "Check permissions for the cache directory."
	case !info.IsDir():
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Encoder path is not a directory: %s", dir)
		item.Hint = "Remove the file so the encoder can be downloaded again."
	default:
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Encoder directory found: %s", dir)
	}
	return item
}

// checkInventory counts which catalog models are already cached.
func (c *Checker) checkInventory(cacheDir string, catalog []domain.Model) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   "inventory",
		Name: "Cached models",
	}

	entries, err := c.readDir(cacheDir)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot read cache directory: %s", cacheDir)
		item.Hint = "Check permissions for the cache directory."
		return item
	}

	files := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			files[entry.Name()] = struct{}{}
		}
	}

	var cached []string
	for _, model := range catalog {
		if _, ok := files[model.FileName()]; ok {
			cached = append(cached, model.Name())
		}
	}

	item.Status = domain.DiagnosticStatusPass
	if len(cached) == 0 {
		item.Message = fmt.Sprintf("0 of %d models cached", len(catalog))
		return item
	}
	item.Message = fmt.Sprintf("%d of %d models cached: %s", len(cached), len(catalog), strings.Join(cached, ", "))
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	stat func(string) (os.FileInfo, error),
	readDir func(string) ([]os.DirEntry, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		stat:       stat,
		readDir:    readDir,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
	}
}

// IsNotExist reports whether error represents file-not-found.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
