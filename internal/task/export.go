package task

import (
	"strings"
	"time"
)

// ExportFormat enumerates the transcript export formats.
type ExportFormat string

const (
	ExportDOCX ExportFormat = "docx"
	ExportTXT  ExportFormat = "txt"
	ExportSRT  ExportFormat = "srt"
	ExportVTT  ExportFormat = "vtt"
	ExportJSON ExportFormat = "json"
)

// ParseExportFormat normalizes a format name.
func ParseExportFormat(value string) (ExportFormat, bool) {
	normalized := ExportFormat(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ExportDOCX, ExportTXT, ExportSRT, ExportVTT, ExportJSON:
		return normalized, true
	default:
		return "", false
	}
}

// Export is one requested artifact rendering of a settled task.
type Export struct {
	ID              string
	UserID          int64
	TaskID          string
	TranscriptionID string
	DiarizationID   string
	Format          ExportFormat
	Status          Status
	FilePath        string
	FileURL         string
	Options         map[string]any
	ErrorMessage    string
	Attempt         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Revision        int64
}

// Option returns a boolean export option, defaulting when absent.
func (e *Export) Option(key string, fallback bool) bool {
	if e.Options == nil {
		return fallback
	}
	if value, ok := e.Options[key].(bool); ok {
		return value
	}
	return fallback
}

// MarkInProgress moves the export out of pending.
func (e *Export) MarkInProgress() error {
	next, err := e.Status.transition(StatusInProgress)
	if err != nil {
		return err
	}
	e.Status = next
	return nil
}

// MarkCompleted records the rendered artifact location.
func (e *Export) MarkCompleted(filePath, fileURL string) error {
	next, err := e.Status.transition(StatusCompleted)
	if err != nil {
		return err
	}
	e.Status = next
	e.FilePath = filePath
	e.FileURL = fileURL
	e.ErrorMessage = ""
	return nil
}

// MarkFailed records a terminal failure reason.
func (e *Export) MarkFailed(reason string) error {
	next, err := e.Status.transition(StatusFailed)
	if err != nil {
		return err
	}
	e.Status = next
	e.ErrorMessage = reason
	return nil
}

// MarkSkipped parks a non-terminal export when its task is cancelled.
func (e *Export) MarkSkipped() error {
	next, err := e.Status.transition(StatusSkipped)
	if err != nil {
		return err
	}
	e.Status = next
	return nil
}
