package task

import (
	"strings"
	"time"
)

// AudioFormat enumerates the upload formats the pipeline accepts.
type AudioFormat string

const (
	FormatMP3  AudioFormat = "mp3"
	FormatWAV  AudioFormat = "wav"
	FormatOGG  AudioFormat = "ogg"
	FormatM4A  AudioFormat = "m4a"
	FormatWebM AudioFormat = "webm"
)

var supportedFormats = map[AudioFormat]struct{}{
	FormatMP3:  {},
	FormatWAV:  {},
	FormatOGG:  {},
	FormatM4A:  {},
	FormatWebM: {},
}

// ParseAudioFormat normalizes a format or filename extension into a known format.
func ParseAudioFormat(value string) (AudioFormat, bool) {
	normalized := AudioFormat(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), ".")))
	_, ok := supportedFormats[normalized]
	return normalized, ok
}

// AudioFile is the ingested artifact a task is built around. It is created at
// submission, mutated by validation, and immutable afterwards except for
// ProcessedPath.
type AudioFile struct {
	ID               string
	UserID           int64
	OriginalFilename string
	Format           AudioFormat
	SizeBytes        int64
	DurationSeconds  float64
	Path             string
	ProcessedPath    string
	IsValid          bool
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Revision         int64
}

// TaskID derives the pipeline task identifier from the audio file id.
func (a *AudioFile) TaskID() string {
	return a.ID
}

// Invalidate records a validation failure. An invalid audio file blocks every
// downstream stage.
func (a *AudioFile) Invalidate(reason string) {
	a.IsValid = false
	a.ErrorMessage = reason
}
