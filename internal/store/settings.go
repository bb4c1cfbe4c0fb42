package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scribe/internal/task"
)

const settingsColumns = "user_id, preferred_model, preferred_export_format, auto_detect_language, auto_delete_files, diarization_enabled, created_at, updated_at, revision"

// GetUserSettings fetches a user's settings. Returns nil when the user has
// never been seen.
func (s *Store) GetUserSettings(ctx context.Context, userID int64) (*task.UserSettings, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+settingsColumns+` FROM user_settings WHERE user_id = ?`,
		userID,
	)
	settings, err := scanUserSettings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	return settings, nil
}

// SaveUserSettings inserts a fresh settings row for a user.
func (s *Store) SaveUserSettings(ctx context.Context, settings *task.UserSettings) error {
	if settings == nil {
		return errors.New("user settings is nil")
	}
	now := time.Now().UTC()
	settings.CreatedAt = now
	settings.UpdatedAt = now
	settings.Revision = 1

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO user_settings (`+settingsColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settings.UserID,
		string(settings.PreferredModel),
		string(settings.PreferredExportFormat),
		boolToInt(settings.AutoDetectLanguage),
		boolToInt(settings.AutoDeleteFiles),
		boolToInt(settings.DiarizationEnabled),
		timestamp(settings.CreatedAt),
		timestamp(settings.UpdatedAt),
		settings.Revision,
	)
	if err != nil {
		return fmt.Errorf("insert user settings: %w", err)
	}
	return nil
}

// UpdateUserSettings persists changes conditionally on the revision read earlier.
func (s *Store) UpdateUserSettings(ctx context.Context, settings *task.UserSettings) error {
	if settings == nil {
		return errors.New("user settings is nil")
	}
	previous := settings.Revision
	settings.UpdatedAt = time.Now().UTC()

	err := s.casUpdate(
		ctx,
		`UPDATE user_settings
         SET preferred_model = ?, preferred_export_format = ?, auto_detect_language = ?,
             auto_delete_files = ?, diarization_enabled = ?, updated_at = ?, revision = revision + 1
         WHERE user_id = ? AND revision = ?`,
		string(settings.PreferredModel),
		string(settings.PreferredExportFormat),
		boolToInt(settings.AutoDetectLanguage),
		boolToInt(settings.AutoDeleteFiles),
		boolToInt(settings.DiarizationEnabled),
		timestamp(settings.UpdatedAt),
		settings.UserID,
		previous,
	)
	if err != nil {
		return err
	}
	settings.Revision = previous + 1
	return nil
}

func scanUserSettings(scanner interface{ Scan(dest ...any) error }) (*task.UserSettings, error) {
	var (
		userID     int64
		model      string
		format     string
		autoDetect int
		autoDelete int
		diarize    int
		createdRaw string
		updatedRaw string
		revision   int64
	)
	if err := scanner.Scan(
		&userID, &model, &format, &autoDetect, &autoDelete, &diarize,
		&createdRaw, &updatedRaw, &revision,
	); err != nil {
		return nil, err
	}

	settings := &task.UserSettings{
		UserID:                userID,
		PreferredModel:        task.Model(model),
		PreferredExportFormat: task.ExportFormat(format),
		AutoDetectLanguage:    autoDetect != 0,
		AutoDeleteFiles:       autoDelete != 0,
		DiarizationEnabled:    diarize != 0,
		Revision:              revision,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		settings.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		settings.UpdatedAt = updated
	}
	return settings, nil
}
