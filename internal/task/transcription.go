package task

import (
	"strings"
	"time"
)

// Model enumerates the supported transcription models.
type Model string

const (
	ModelWhisperLargeV3 Model = "whisper-large-v3"
	ModelWhisperTurbo   Model = "whisper-turbo"
)

// ParseModel normalizes a model name.
func ParseModel(value string) (Model, bool) {
	normalized := Model(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ModelWhisperLargeV3, ModelWhisperTurbo:
		return normalized, true
	default:
		return "", false
	}
}

// Segment is one timed slice of transcribed speech. Segments are ordered by
// StartTime and StartTime < EndTime holds for every segment.
type Segment struct {
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Transcription is the transcription stage result for one audio file.
type Transcription struct {
	ID           string
	AudioFileID  string
	UserID       int64
	Model        Model
	Status       Status
	Language     string
	Segments     []Segment
	ErrorMessage string
	Attempt      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Revision     int64
}

// MarkInProgress moves the result out of pending.
func (t *Transcription) MarkInProgress() error {
	next, err := t.Status.transition(StatusInProgress)
	if err != nil {
		return err
	}
	t.Status = next
	return nil
}

// MarkCompleted records the transcribed segments and detected language.
func (t *Transcription) MarkCompleted(language string, segments []Segment) error {
	next, err := t.Status.transition(StatusCompleted)
	if err != nil {
		return err
	}
	t.Status = next
	t.Language = language
	t.Segments = segments
	t.ErrorMessage = ""
	return nil
}

// MarkFailed records a terminal failure reason.
func (t *Transcription) MarkFailed(reason string) error {
	next, err := t.Status.transition(StatusFailed)
	if err != nil {
		return err
	}
	t.Status = next
	t.ErrorMessage = reason
	return nil
}

// MarkSkipped parks a non-terminal result when its task is cancelled.
func (t *Transcription) MarkSkipped() error {
	next, err := t.Status.transition(StatusSkipped)
	if err != nil {
		return err
	}
	t.Status = next
	return nil
}
