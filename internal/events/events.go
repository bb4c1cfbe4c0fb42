package events

import "scribe/internal/task"

// Event is one bus message. Name identifies the concrete kind and doubles as
// the subject suffix the message is published under.
type Event interface {
	Name() string
}

// Command subjects consumed by stage workers.
const (
	NameTranscriptionRequested = "TranscriptionRequested"
	NameDiarizationRequested   = "DiarizationRequested"
	NameExportRequested        = "ExportRequested"
)

// Event subjects published by workers and the coordinator.
const (
	NameAudioRejected          = "AudioRejected"
	NameTranscriptionCompleted = "TranscriptionCompleted"
	NameDiarizationCompleted   = "DiarizationCompleted"
	NameStageProgress          = "StageProgress"
	NameTaskReady              = "TaskReady"
	NameTaskFailed             = "TaskFailed"
	NameExportCompleted        = "ExportCompleted"
)

// TranscriptionRequested asks the transcription worker to process a task's
// audio. Attempt starts at 0 and increments on every retry.
type TranscriptionRequested struct {
	TaskID             string     `json:"task_id"`
	AudioFileID        string     `json:"audio_file_id"`
	TranscriptionID    string     `json:"transcription_id"`
	UserID             int64      `json:"user_id"`
	AudioPath          string     `json:"audio_path"`
	Model              task.Model `json:"model"`
	Language           string     `json:"language,omitempty"`
	AutoDetectLanguage bool       `json:"auto_detect_language"`
	Attempt            int        `json:"attempt"`
}

func (TranscriptionRequested) Name() string { return NameTranscriptionRequested }

// DiarizationRequested asks the diarization worker to process a task's audio.
type DiarizationRequested struct {
	TaskID        string `json:"task_id"`
	AudioFileID   string `json:"audio_file_id"`
	DiarizationID string `json:"diarization_id"`
	UserID        int64  `json:"user_id"`
	AudioPath     string `json:"audio_path"`
	NumSpeakers   int    `json:"num_speakers,omitempty"`
	Attempt       int    `json:"attempt"`
}

func (DiarizationRequested) Name() string { return NameDiarizationRequested }

// ExportRequested asks the export worker to render a settled task.
type ExportRequested struct {
	TaskID   string            `json:"task_id"`
	ExportID string            `json:"export_id"`
	UserID   int64             `json:"user_id"`
	Format   task.ExportFormat `json:"format"`
	Options  map[string]any    `json:"options,omitempty"`
	Attempt  int               `json:"attempt"`
}

func (ExportRequested) Name() string { return NameExportRequested }

// AudioRejected reports that validation refused a submission. No downstream
// stage starts for the task.
type AudioRejected struct {
	TaskID string `json:"task_id"`
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

func (AudioRejected) Name() string { return NameAudioRejected }

// TranscriptionCompleted reports a transcription stage outcome.
type TranscriptionCompleted struct {
	TaskID          string         `json:"task_id"`
	TranscriptionID string         `json:"transcription_id"`
	UserID          int64          `json:"user_id"`
	Attempt         int            `json:"attempt"`
	Success         bool           `json:"success"`
	Language        string         `json:"language,omitempty"`
	Segments        []task.Segment `json:"segments,omitempty"`
	Error           string         `json:"error,omitempty"`
	// Permanent marks unrecoverable worker failures that must not retry.
	Permanent bool `json:"permanent,omitempty"`
}

func (TranscriptionCompleted) Name() string { return NameTranscriptionCompleted }

// DiarizationCompleted reports a diarization stage outcome.
type DiarizationCompleted struct {
	TaskID        string                `json:"task_id"`
	DiarizationID string                `json:"diarization_id"`
	UserID        int64                 `json:"user_id"`
	Attempt       int                   `json:"attempt"`
	Success       bool                  `json:"success"`
	NumSpeakers   int                   `json:"num_speakers,omitempty"`
	Segments      []task.SpeakerSegment `json:"segments,omitempty"`
	Error         string                `json:"error,omitempty"`
	Permanent     bool                  `json:"permanent,omitempty"`
}

func (DiarizationCompleted) Name() string { return NameDiarizationCompleted }

// StageProgress carries incremental worker progress. The coordinator stores
// the last-known percentage without blocking; lost progress events are
// harmless.
type StageProgress struct {
	TaskID  string  `json:"task_id"`
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message,omitempty"`
}

func (StageProgress) Name() string { return NameStageProgress }

// TaskReady announces that a task's sub-results settled and the merged
// transcript is available.
type TaskReady struct {
	TaskID string `json:"task_id"`
	UserID int64  `json:"user_id"`
}

func (TaskReady) Name() string { return NameTaskReady }

// TaskFailed announces that the critical path failed permanently.
type TaskFailed struct {
	TaskID string `json:"task_id"`
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

func (TaskFailed) Name() string { return NameTaskFailed }

// ExportCompleted reports an export stage outcome.
type ExportCompleted struct {
	TaskID   string `json:"task_id"`
	ExportID string `json:"export_id"`
	UserID   int64  `json:"user_id"`
	Attempt  int    `json:"attempt"`
	Success  bool   `json:"success"`
	FileURL  string `json:"file_url,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (ExportCompleted) Name() string { return NameExportCompleted }
