package domain

// RecordingState tracks the lifecycle of one recording session.
type RecordingState string

const (
	RecordingStateInactive  RecordingState = "inactive"
	RecordingStateActive    RecordingState = "active"
	RecordingStateFinalized RecordingState = "finalized"
)

// Settings contains user-selectable runtime configuration.
type Settings struct {
	CacheDir      string `yaml:"cache_dir,omitempty" json:"cacheDir,omitempty"`
	Model         string `yaml:"model" json:"model"`
	CoreMLEncoder bool   `yaml:"coreml_encoder" json:"coremlEncoder"`
	LogLevel      string `yaml:"log_level" json:"logLevel"`
	LogFile       string `yaml:"log_file,omitempty" json:"logFile,omitempty"`
}
