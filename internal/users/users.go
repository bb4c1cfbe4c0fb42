// Package users manages per-user pipeline preferences. Settings are created
// lazily with defaults the first time a user is seen.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/store"
	"scribe/internal/task"
)

// Service reads and mutates user settings.
type Service struct {
	store        *store.Store
	defaultModel task.Model
	logger       *slog.Logger
}

// NewService constructs a settings service. defaultModel seeds the preferred
// model of newly created settings; an empty or unknown value falls back to the
// built-in default.
func NewService(st *store.Store, defaultModel task.Model, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	if _, ok := task.ParseModel(string(defaultModel)); !ok {
		defaultModel = ""
	}
	return &Service{
		store:        st,
		defaultModel: defaultModel,
		logger:       logging.NewComponentLogger(logger, "users"),
	}
}

// GetOrCreateDefault returns the user's settings, creating the default row on
// first access. Concurrent first accesses converge on a single row.
func (s *Service) GetOrCreateDefault(ctx context.Context, userID int64) (*task.UserSettings, error) {
	existing, err := s.store.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	defaults := task.DefaultSettings(userID)
	if s.defaultModel != "" {
		defaults.PreferredModel = s.defaultModel
	}
	if err := s.store.SaveUserSettings(ctx, &defaults); err != nil {
		// A concurrent creator may have won; the stored row is authoritative.
		if recovered, getErr := s.store.GetUserSettings(ctx, userID); getErr == nil && recovered != nil {
			return recovered, nil
		}
		return nil, fmt.Errorf("create default settings: %w", err)
	}
	s.logger.Info("created default settings", logging.Int64(logging.FieldUserID, userID))
	return &defaults, nil
}

// Fields selects which settings an Update call changes. Nil fields keep their
// stored value.
type Fields struct {
	PreferredModel        *task.Model
	PreferredExportFormat *task.ExportFormat
	AutoDetectLanguage    *bool
	AutoDeleteFiles       *bool
	DiarizationEnabled    *bool
}

const updateRetries = 3

// Update applies a partial settings change, retrying lost revision races.
func (s *Service) Update(ctx context.Context, userID int64, fields Fields) (*task.UserSettings, error) {
	if fields.PreferredModel != nil {
		if _, ok := task.ParseModel(string(*fields.PreferredModel)); !ok {
			return nil, services.Wrap(services.ErrValidation, "users", "update", fmt.Sprintf("unknown model %q", *fields.PreferredModel), nil)
		}
	}
	if fields.PreferredExportFormat != nil {
		if _, ok := task.ParseExportFormat(string(*fields.PreferredExportFormat)); !ok {
			return nil, services.Wrap(services.ErrValidation, "users", "update", fmt.Sprintf("unknown export format %q", *fields.PreferredExportFormat), nil)
		}
	}

	var lastErr error
	for attempt := 0; attempt < updateRetries; attempt++ {
		settings, err := s.GetOrCreateDefault(ctx, userID)
		if err != nil {
			return nil, err
		}
		apply(settings, fields)

		lastErr = s.store.UpdateUserSettings(ctx, settings)
		if lastErr == nil {
			return settings, nil
		}
		if !errors.Is(lastErr, store.ErrConflict) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("update settings for user %d: %w", userID, lastErr)
}

func apply(settings *task.UserSettings, fields Fields) {
	if fields.PreferredModel != nil {
		settings.PreferredModel = *fields.PreferredModel
	}
	if fields.PreferredExportFormat != nil {
		settings.PreferredExportFormat = *fields.PreferredExportFormat
	}
	if fields.AutoDetectLanguage != nil {
		settings.AutoDetectLanguage = *fields.AutoDetectLanguage
	}
	if fields.AutoDeleteFiles != nil {
		settings.AutoDeleteFiles = *fields.AutoDeleteFiles
	}
	if fields.DiarizationEnabled != nil {
		settings.DiarizationEnabled = *fields.DiarizationEnabled
	}
}
