package task

import "time"

// UserSettings holds per-user pipeline preferences. Created lazily with
// defaults on first access; mutated only through explicit update calls.
type UserSettings struct {
	UserID                int64
	PreferredModel        Model
	PreferredExportFormat ExportFormat
	AutoDetectLanguage    bool
	AutoDeleteFiles       bool
	DiarizationEnabled    bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Revision              int64
}

// DefaultSettings returns the settings applied on first access.
func DefaultSettings(userID int64) UserSettings {
	return UserSettings{
		UserID:                userID,
		PreferredModel:        ModelWhisperLargeV3,
		PreferredExportFormat: ExportDOCX,
		AutoDetectLanguage:    true,
		AutoDeleteFiles:       true,
		DiarizationEnabled:    true,
	}
}
