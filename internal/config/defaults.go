package config

import (
	"path/filepath"

	"github.com/adrg/xdg"

	"whisper-stream/internal/domain"
)

const (
	appDir         = "whisper-stream"
	configFileName = "config.yaml"

	// DefaultLogLevel is used when the config file leaves log_level empty.
	DefaultLogLevel = "info"
)

// DefaultSettings returns baseline configuration for a first run.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		Model:    domain.DefaultModel.Name(),
		LogLevel: DefaultLogLevel,
	}
}

// DefaultPath returns <user config dir>/whisper-stream/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appDir, configFileName)
}
