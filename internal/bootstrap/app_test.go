package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisper-stream/internal/domain"
	"whisper-stream/internal/store"
)

// fakeStore returns deterministic settings for App tests.
type fakeStore struct {
	settings domain.Settings
	saved    []domain.Settings
}

// Load returns preconfigured settings.
func (s *fakeStore) Load() (domain.Settings, error) {
	return s.settings, nil
}

// Save records settings and makes them visible to later loads.
func (s *fakeStore) Save(settings domain.Settings) error {
	s.saved = append(s.saved, settings)
	s.settings = settings
	return nil
}

// rewriteTransport sends every request to a local test server.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.target.Scheme
	clone.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

func newTestApp(t *testing.T, handler http.Handler) (*App, *fakeStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	target, err := url.Parse(server.URL)
	require.NoError(t, err)

	cfg := &fakeStore{settings: normalizeSettings(domain.Settings{CacheDir: t.TempDir()})}
	app := newApp(cfg.settings, cfg, nil, &http.Client{Transport: rewriteTransport{target: target}})
	return app, cfg
}

// TestNormalizeSettingsAppliesDefaults fills model, level and cache root.
func TestNormalizeSettingsAppliesDefaults(t *testing.T) {
	got := normalizeSettings(domain.Settings{Model: "  ", LogLevel: " DEBUG ", LogFile: " /tmp/x.log "})

	assert.Equal(t, "base.en", got.Model)
	assert.Equal(t, "debug", got.LogLevel)
	assert.Equal(t, "/tmp/x.log", got.LogFile)
	assert.Equal(t, store.DefaultRoot(), got.CacheDir)

	kept := normalizeSettings(domain.Settings{CacheDir: " /data/models ", Model: "tiny.en"})
	assert.Equal(t, "/data/models", kept.CacheDir)
	assert.Equal(t, "info", kept.LogLevel)
}

// TestEnsureModelDownloadsOnce fetches the configured model and then serves it from cache.
func TestEnsureModelDownloadsOnce(t *testing.T) {
	var requests atomic.Int32
	app, cfg := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin", r.URL.Path)
		_, _ = w.Write([]byte("base-weights"))
	}))

	path, err := app.EnsureModel(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.settings.CacheDir, "ggml-base.en.bin"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "base-weights", string(data))

	_, err = app.EnsureModel(context.Background(), "base.en")
	require.NoError(t, err)
	assert.EqualValues(t, 1, requests.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(app.Metrics.CacheHits))
	assert.False(t, app.GetDiagnostics().HasFailures, "%+v", app.GetDiagnostics().Items)
}

// TestEnsureModelUnknownID rejects ids outside the catalog.
func TestEnsureModelUnknownID(t *testing.T) {
	app, _ := newTestApp(t, http.NotFoundHandler())

	_, err := app.EnsureModel(context.Background(), "large-v3")
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
}

// TestGetWhisperModelsMarksDownloaded reports cached models with their path.
func TestGetWhisperModelsMarksDownloaded(t *testing.T) {
	app, cfg := newTestApp(t, http.NotFoundHandler())
	modelPath := filepath.Join(cfg.settings.CacheDir, "ggml-small.en.bin")
	require.NoError(t, os.WriteFile(modelPath, []byte("stub"), 0o644))

	models := app.GetWhisperModels()
	require.Len(t, models, len(domain.Models()))
	for _, m := range models {
		if m.ID == "small.en" {
			assert.True(t, m.Downloaded)
			assert.Equal(t, modelPath, m.LocalPath)
			continue
		}
		assert.False(t, m.Downloaded, m.ID)
		assert.Empty(t, m.LocalPath, m.ID)
	}
}

// TestModelPathDoesNotDownload reports absence without touching the network.
func TestModelPathDoesNotDownload(t *testing.T) {
	var requests atomic.Int32
	app, cfg := newTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))

	path, present, err := app.ModelPath("tiny.en")
	require.NoError(t, err)
	assert.False(t, present)
	assert.Equal(t, filepath.Join(cfg.settings.CacheDir, "ggml-tiny.en.bin"), path)
	assert.Zero(t, requests.Load())
}

// TestSelectModelPersists saves the chosen model as the new default.
func TestSelectModelPersists(t *testing.T) {
	app, cfg := newTestApp(t, http.NotFoundHandler())

	settings, err := app.SelectModel("small.en")
	require.NoError(t, err)
	assert.Equal(t, "small.en", settings.Model)
	require.Len(t, cfg.saved, 1)
	assert.Equal(t, "small.en", cfg.saved[0].Model)
	assert.Equal(t, "small.en", app.Settings.Model)

	_, err = app.SelectModel("medium")
	assert.ErrorIs(t, err, domain.ErrModelNotFound)
	assert.Len(t, cfg.saved, 1)
}

// TestRefreshDiagnosticsReportsMissingModel runs checks against the cache.
func TestRefreshDiagnosticsReportsMissingModel(t *testing.T) {
	app, _ := newTestApp(t, http.NotFoundHandler())

	report, err := app.RefreshDiagnostics()
	require.NoError(t, err)
	assert.True(t, report.HasFailures)
	assert.Equal(t, report, app.GetDiagnostics())
}
