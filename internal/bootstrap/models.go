package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"whisper-stream/internal/domain"
)

// GetWhisperModels returns the model catalog with cache presence marked.
func (a *App) GetWhisperModels() []domain.WhisperModelOption {
	artifacts := a.artifacts()
	models := domain.Models()
	options := make([]domain.WhisperModelOption, 0, len(models))
	for _, model := range models {
		option := model.Option()
		present, path, err := artifacts.IsPresent(model)
		if err == nil && present {
			option.Downloaded = true
			option.LocalPath = path
		}
		options = append(options, option)
	}
	return options
}

// resolveModel parses modelID, falling back to the configured model.
func (a *App) resolveModel(modelID string) (domain.Model, error) {
	id := strings.TrimSpace(modelID)
	if id == "" {
		id = a.currentSettings().Model
	}
	return domain.ParseModel(id)
}

// EnsureModel makes the model available locally and returns its path.
// An empty modelID selects the configured model.
func (a *App) EnsureModel(ctx context.Context, modelID string) (string, error) {
	model, err := a.resolveModel(modelID)
	if err != nil {
		return "", err
	}

	path, err := a.artifacts().Ensure(ensureContext(ctx), model)
	if err != nil {
		return "", err
	}
	a.refreshDiagnosticsFromSettings(a.currentSettings())
	return path, nil
}

// ModelPath returns where the model lives and whether it is cached,
// without downloading anything.
func (a *App) ModelPath(modelID string) (string, bool, error) {
	model, err := a.resolveModel(modelID)
	if err != nil {
		return "", false, err
	}
	present, path, err := a.artifacts().IsPresent(model)
	if err != nil {
		return "", false, err
	}
	return path, present, nil
}

// SelectModel makes modelID the configured default and persists it.
func (a *App) SelectModel(modelID string) (domain.Settings, error) {
	model, err := domain.ParseModel(modelID)
	if err != nil {
		return domain.Settings{}, err
	}
	if a.Store == nil {
		return domain.Settings{}, fmt.Errorf("settings store is not configured")
	}

	settings, err := a.GetSettings()
	if err != nil {
		return domain.Settings{}, err
	}
	settings.Model = model.Name()
	return a.SaveSettings(settings)
}
