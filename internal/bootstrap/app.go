package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"whisper-stream/internal/archive"
	"whisper-stream/internal/config"
	"whisper-stream/internal/diagnostics"
	"whisper-stream/internal/domain"
	"whisper-stream/internal/fetch"
	"whisper-stream/internal/logging"
	"whisper-stream/internal/metrics"
	"whisper-stream/internal/store"
)

// Options controls how New assembles the application.
type Options struct {
	// ConfigPath overrides the default config file location.
	ConfigPath string
	// Verbose forces debug logging in development format.
	Verbose bool
}

// App wires configuration, logging, metrics, the model cache and diagnostics.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Artifacts   *store.Store
	Diagnostics domain.DiagnosticReport
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry

	checker    *diagnostics.Checker
	httpClient *http.Client

	mu sync.Mutex
}

// New builds the application from persisted settings.
func New(opts Options) (*App, error) {
	cfgStore := config.NewYAMLStore(opts.ConfigPath)
	settings, err := cfgStore.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	logOpts := logging.Options{Level: settings.LogLevel, File: settings.LogFile}
	if opts.Verbose {
		logOpts.Level = "debug"
		logOpts.Development = true
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return newApp(settings, cfgStore, logger, nil), nil
}

// newApp assembles an App from already loaded parts. A nil client uses
// the downloader default.
func newApp(settings domain.Settings, cfgStore config.Store, logger *zap.Logger, client *http.Client) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	a := &App{
		Settings:   settings,
		Store:      cfgStore,
		Logger:     logger,
		Metrics:    metrics.New(reg),
		Registry:   reg,
		checker:    diagnostics.NewChecker(),
		httpClient: client,
	}
	a.Artifacts = a.buildArtifactStore(settings)
	return a
}

// buildArtifactStore creates the model cache for the given settings.
func (a *App) buildArtifactStore(settings domain.Settings) *store.Store {
	fetchOpts := []fetch.Option{
		fetch.WithLogger(a.Logger.Named("fetch")),
		fetch.WithMetrics(a.Metrics),
	}
	if a.httpClient != nil {
		fetchOpts = append(fetchOpts, fetch.WithHTTPClient(a.httpClient))
	}

	return store.New(
		store.WithRoot(settings.CacheDir),
		store.WithFetcher(fetch.New(fetchOpts...)),
		store.WithExpander(archive.New(a.Logger.Named("archive"), a.Metrics)),
		store.WithEncoder(settings.CoreMLEncoder),
		store.WithLogger(a.Logger.Named("store")),
		store.WithMetrics(a.Metrics),
	)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	settings = normalizeSettings(settings)

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then rebuilds the cache
// and refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if _, err := domain.ParseModel(normalized.Model); err != nil {
		return domain.Settings{}, err
	}
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	artifacts := a.buildArtifactStore(normalized)
	a.mu.Lock()
	a.Settings = normalized
	a.Artifacts = artifacts
	a.mu.Unlock()

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns cache checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.GetSettings()
	if err != nil {
		return domain.DiagnosticReport{}, err
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	report := a.checker.Run(settings, domain.Models())

	a.mu.Lock()
	a.Diagnostics = report
	a.mu.Unlock()
	return report
}

// normalizeSettings trims user inputs and applies defaults when empty.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.CacheDir = strings.TrimSpace(settings.CacheDir)
	if settings.CacheDir == "" {
		settings.CacheDir = store.DefaultRoot()
	}
	settings.Model = strings.TrimSpace(settings.Model)
	if settings.Model == "" {
		settings.Model = domain.DefaultModel.Name()
	}
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))
	if settings.LogLevel == "" {
		settings.LogLevel = config.DefaultLogLevel
	}
	settings.LogFile = strings.TrimSpace(settings.LogFile)
	return settings
}

// artifacts returns the current model cache.
func (a *App) artifacts() *store.Store {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Artifacts
}

// currentSettings returns a snapshot of the active settings.
func (a *App) currentSettings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Settings
}

// ensureContext returns ctx or a background context when nil.
func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
