// Package worker hosts the stage executors. Each worker subscribes to its
// command subject, invokes the backing service, and reports the outcome as a
// completion event. Workers never touch the task repository; the coordinator
// owns all state transitions.
package worker

import (
	"context"
	"log/slog"
	"time"

	"scribe/internal/bus"
	"scribe/internal/config"
	"scribe/internal/events"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/storage"
	"scribe/internal/task"
)

// TranscribeRequest carries the inputs for one transcription run.
type TranscribeRequest struct {
	AudioPath          string
	Model              task.Model
	Language           string
	AutoDetectLanguage bool
}

// TranscribeResult is a successful transcription outcome.
type TranscribeResult struct {
	Language string
	Segments []task.Segment
}

// Transcriber converts audio into timed text segments.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest) (TranscribeResult, error)
}

// DiarizeRequest carries the inputs for one diarization run.
type DiarizeRequest struct {
	AudioPath   string
	NumSpeakers int
}

// DiarizeResult is a successful diarization outcome.
type DiarizeResult struct {
	NumSpeakers int
	Segments    []task.SpeakerSegment
}

// Diarizer attributes time ranges of audio to anonymous speakers.
type Diarizer interface {
	Diarize(ctx context.Context, req DiarizeRequest) (DiarizeResult, error)
}

// Renderer turns a stored merged transcript into artifact bytes. It matches
// the export package's Render signature.
type Renderer func(ctx context.Context, taskID string, format task.ExportFormat, options map[string]any) (data []byte, err error)

// Pool wires the three stage workers onto the bus.
type Pool struct {
	cfg         *config.Config
	bus         bus.Bus
	storage     storage.ObjectStorage
	transcriber Transcriber
	diarizer    Diarizer
	renderer    Renderer
	logger      *slog.Logger
}

// NewPool constructs the stage worker pool.
func NewPool(cfg *config.Config, eventBus bus.Bus, objects storage.ObjectStorage, transcriber Transcriber, diarizer Diarizer, renderer Renderer, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pool{
		cfg:         cfg,
		bus:         eventBus,
		storage:     objects,
		transcriber: transcriber,
		diarizer:    diarizer,
		renderer:    renderer,
		logger:      logging.NewComponentLogger(logger, "worker"),
	}
}

// Start subscribes the workers to their command subjects.
func (p *Pool) Start() error {
	subscriptions := map[string]bus.Handler{
		events.NameTranscriptionRequested: p.onCommand,
		events.NameDiarizationRequested:   p.onCommand,
		events.NameExportRequested:        p.onCommand,
	}
	for name, handler := range subscriptions {
		if err := p.bus.Subscribe(name, handler); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) onCommand(ctx context.Context, event events.Event) error {
	switch cmd := event.(type) {
	case *events.TranscriptionRequested:
		return p.runTranscription(ctx, cmd)
	case *events.DiarizationRequested:
		return p.runDiarization(ctx, cmd)
	case *events.ExportRequested:
		return p.runExport(ctx, cmd)
	default:
		return nil
	}
}

func (p *Pool) runTranscription(ctx context.Context, cmd *events.TranscriptionRequested) error {
	ctx = logging.WithAttempt(logging.WithStage(logging.WithTask(ctx, cmd.TaskID), "transcription"), cmd.Attempt)
	logger := logging.WithContext(ctx, p.logger)

	timeout := time.Duration(p.cfg.Pipeline.TranscriptionTimeout) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.reportProgress(ctx, cmd.TaskID, "transcription", 0, "starting")
	result, err := p.transcriber.Transcribe(runCtx, TranscribeRequest{
		AudioPath:          cmd.AudioPath,
		Model:              cmd.Model,
		Language:           cmd.Language,
		AutoDetectLanguage: cmd.AutoDetectLanguage,
	})
	completion := &events.TranscriptionCompleted{
		TaskID:          cmd.TaskID,
		TranscriptionID: cmd.TranscriptionID,
		UserID:          cmd.UserID,
		Attempt:         cmd.Attempt,
	}
	if err != nil {
		completion.Success = false
		completion.Error = services.UserMessage(err)
		completion.Permanent = !services.Retryable(err)
		logger.Warn("transcription run failed", logging.Error(err))
	} else {
		completion.Success = true
		completion.Language = result.Language
		completion.Segments = result.Segments
		p.reportProgress(ctx, cmd.TaskID, "transcription", 100, "done")
		logger.Info("transcription run finished",
			logging.String("language", result.Language),
			logging.Int("segments", len(result.Segments)))
	}
	return p.bus.Publish(ctx, completion)
}

func (p *Pool) runDiarization(ctx context.Context, cmd *events.DiarizationRequested) error {
	ctx = logging.WithAttempt(logging.WithStage(logging.WithTask(ctx, cmd.TaskID), "diarization"), cmd.Attempt)
	logger := logging.WithContext(ctx, p.logger)

	timeout := time.Duration(p.cfg.Pipeline.DiarizationTimeout) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := p.diarizer.Diarize(runCtx, DiarizeRequest{
		AudioPath:   cmd.AudioPath,
		NumSpeakers: cmd.NumSpeakers,
	})
	completion := &events.DiarizationCompleted{
		TaskID:        cmd.TaskID,
		DiarizationID: cmd.DiarizationID,
		UserID:        cmd.UserID,
		Attempt:       cmd.Attempt,
	}
	if err != nil {
		completion.Success = false
		completion.Error = services.UserMessage(err)
		completion.Permanent = !services.Retryable(err)
		logger.Warn("diarization run failed", logging.Error(err))
	} else {
		completion.Success = true
		completion.NumSpeakers = result.NumSpeakers
		completion.Segments = result.Segments
		logger.Info("diarization run finished", logging.Int("speakers", result.NumSpeakers))
	}
	return p.bus.Publish(ctx, completion)
}

func (p *Pool) runExport(ctx context.Context, cmd *events.ExportRequested) error {
	ctx = logging.WithAttempt(logging.WithStage(logging.WithTask(ctx, cmd.TaskID), "export"), cmd.Attempt)
	logger := logging.WithContext(ctx, p.logger)

	timeout := time.Duration(p.cfg.Pipeline.ExportTimeout) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	completion := &events.ExportCompleted{
		TaskID:   cmd.TaskID,
		ExportID: cmd.ExportID,
		UserID:   cmd.UserID,
		Attempt:  cmd.Attempt,
	}

	data, err := p.renderer(runCtx, cmd.TaskID, cmd.Format, cmd.Options)
	if err != nil {
		completion.Error = services.UserMessage(err)
		logger.Warn("export render failed", logging.Error(err))
		return p.bus.Publish(ctx, completion)
	}

	name := "exports/" + cmd.TaskID + "/" + cmd.ExportID + "." + string(cmd.Format)
	url, err := p.storage.Upload(runCtx, data, name)
	if err != nil {
		completion.Error = services.UserMessage(err)
		logger.Warn("export upload failed", logging.Error(err))
		return p.bus.Publish(ctx, completion)
	}

	completion.Success = true
	completion.FileURL = url
	completion.FilePath = p.storage.Path(name)
	logger.Info("export rendered",
		logging.String("export_id", cmd.ExportID),
		logging.String("format", string(cmd.Format)))
	return p.bus.Publish(ctx, completion)
}

func (p *Pool) reportProgress(ctx context.Context, taskID, stage string, percent float64, message string) {
	_ = p.bus.Publish(ctx, &events.StageProgress{
		TaskID:  taskID,
		Stage:   stage,
		Percent: percent,
		Message: message,
	})
}
