package coordinator

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"scribe/internal/events"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/task"
)

// SubmitRequest describes one incoming audio upload.
type SubmitRequest struct {
	UserID      int64
	Filename    string
	Path        string
	SizeBytes   int64
	Language    string
	NumSpeakers int
}

// SubmitAudio validates an upload and, when acceptable, persists the task and
// fans out the transcription and diarization commands. Rejections persist an
// invalid audio record, emit AudioRejected, and return a validation error; no
// downstream stage starts for a rejected submission.
func (c *Coordinator) SubmitAudio(ctx context.Context, req SubmitRequest) (*task.Task, error) {
	settings, err := c.users.GetOrCreateDefault(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	audio := &task.AudioFile{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		OriginalFilename: req.Filename,
		SizeBytes:        req.SizeBytes,
		Path:             req.Path,
		IsValid:          true,
	}
	ctx = logging.WithTask(ctx, audio.TaskID())

	if reason := c.validate(req, audio); reason != "" {
		audio.Invalidate(reason)
		if err := c.store.SaveAudioFile(ctx, audio); err != nil {
			return nil, err
		}
		_ = c.publish(ctx, &events.AudioRejected{TaskID: audio.TaskID(), UserID: req.UserID, Reason: reason})
		c.logger.Info("submission rejected",
			logging.String(logging.FieldTaskID, audio.TaskID()),
			logging.Int64(logging.FieldUserID, req.UserID),
			logging.String("reason", reason))
		return &task.Task{ID: audio.TaskID(), Audio: audio},
			services.Wrap(services.ErrValidation, "coordinator", "submit", reason, nil)
	}

	if err := c.store.SaveAudioFile(ctx, audio); err != nil {
		return nil, err
	}

	transcription := &task.Transcription{
		ID:          uuid.NewString(),
		AudioFileID: audio.ID,
		UserID:      req.UserID,
		Model:       settings.PreferredModel,
		Status:      task.StatusPending,
	}
	if err := c.store.SaveTranscription(ctx, transcription); err != nil {
		return nil, err
	}

	var diarization *task.Diarization
	if settings.DiarizationEnabled && c.cfg.Diarization.Enabled {
		diarization = &task.Diarization{
			ID:          uuid.NewString(),
			AudioFileID: audio.ID,
			UserID:      req.UserID,
			Status:      task.StatusPending,
		}
		if err := c.store.SaveDiarization(ctx, diarization); err != nil {
			return nil, err
		}
	}

	if err := c.publish(ctx, &events.TranscriptionRequested{
		TaskID:             audio.TaskID(),
		AudioFileID:        audio.ID,
		TranscriptionID:    transcription.ID,
		UserID:             req.UserID,
		AudioPath:          audio.Path,
		Model:              transcription.Model,
		Language:           req.Language,
		AutoDetectLanguage: settings.AutoDetectLanguage && req.Language == "",
	}); err != nil {
		return nil, err
	}
	if err := c.markTranscriptionDispatched(ctx, transcription); err != nil {
		return nil, err
	}
	if diarization != nil {
		if err := c.publish(ctx, &events.DiarizationRequested{
			TaskID:        audio.TaskID(),
			AudioFileID:   audio.ID,
			DiarizationID: diarization.ID,
			UserID:        req.UserID,
			AudioPath:     audio.Path,
			NumSpeakers:   req.NumSpeakers,
		}); err != nil {
			return nil, err
		}
		if err := c.markDiarizationDispatched(ctx, diarization); err != nil {
			return nil, err
		}
	}

	c.logger.Info("task submitted",
		logging.String(logging.FieldTaskID, audio.TaskID()),
		logging.Int64(logging.FieldUserID, req.UserID),
		logging.String("format", string(audio.Format)),
		logging.Bool("diarization", diarization != nil))

	return &task.Task{
		ID:            audio.TaskID(),
		Audio:         audio,
		Transcription: transcription,
		Diarization:   diarization,
	}, nil
}

func (c *Coordinator) validate(req SubmitRequest, audio *task.AudioFile) string {
	format, ok := task.ParseAudioFormat(filepath.Ext(req.Filename))
	if !ok {
		return fmt.Sprintf("unsupported audio format %q", filepath.Ext(req.Filename))
	}
	audio.Format = format

	if req.SizeBytes <= 0 {
		return "audio file is empty"
	}
	maxBytes := c.cfg.Pipeline.MaxFileSizeMB * 1024 * 1024
	if maxBytes > 0 && req.SizeBytes > maxBytes {
		return fmt.Sprintf("audio file exceeds %d MB limit", c.cfg.Pipeline.MaxFileSizeMB)
	}
	return ""
}

// ExportRequest describes one artifact rendering request for a settled task.
type ExportRequest struct {
	TaskID  string
	UserID  int64
	Format  task.ExportFormat
	Options map[string]any
}

// RequestExport creates an export and emits its command. Exports are only
// accepted once the task settled with a completed transcription; diarization
// output is optional and attached when it completed.
func (c *Coordinator) RequestExport(ctx context.Context, req ExportRequest) (*task.Export, error) {
	if _, ok := task.ParseExportFormat(string(req.Format)); !ok {
		return nil, services.Wrap(services.ErrValidation, "coordinator", "export", fmt.Sprintf("unknown export format %q", req.Format), nil)
	}

	unlock := c.lockTask(req.TaskID)
	defer unlock()

	aggregate, err := c.loadTask(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	if !aggregate.Settled() {
		return nil, services.Wrap(services.ErrPrecondition, "coordinator", "export", "task has not settled yet", nil)
	}
	if !aggregate.Mergeable() {
		return nil, services.Wrap(services.ErrPrecondition, "coordinator", "export", "task has no completed transcription", nil)
	}

	export := &task.Export{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		TaskID:          req.TaskID,
		TranscriptionID: aggregate.Transcription.ID,
		Format:          req.Format,
		Status:          task.StatusPending,
		Options:         req.Options,
	}
	if aggregate.Diarization != nil && aggregate.Diarization.Status == task.StatusCompleted {
		export.DiarizationID = aggregate.Diarization.ID
	}
	if err := c.store.SaveExport(ctx, export); err != nil {
		return nil, err
	}

	if err := c.publish(ctx, &events.ExportRequested{
		TaskID:   req.TaskID,
		ExportID: export.ID,
		UserID:   req.UserID,
		Format:   req.Format,
		Options:  req.Options,
	}); err != nil {
		return nil, err
	}
	if err := c.markExportDispatched(ctx, export); err != nil {
		return nil, err
	}

	c.logger.Info("export requested",
		logging.String(logging.FieldTaskID, req.TaskID),
		logging.String("export_id", export.ID),
		logging.String("format", string(req.Format)))
	return export, nil
}

// Cancel marks every non-terminal stage of a task as skipped. Late completion
// events for cancelled stages are rejected by the terminal-state rule.
func (c *Coordinator) Cancel(ctx context.Context, taskID string) error {
	unlock := c.lockTask(taskID)
	defer unlock()

	aggregate, err := c.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if aggregate.Settled() {
		return services.Wrap(services.ErrPrecondition, "coordinator", "cancel", "task already settled", nil)
	}

	if tr := aggregate.Transcription; tr != nil && !tr.Status.Terminal() {
		if err := tr.MarkSkipped(); err == nil {
			if err := c.store.UpdateTranscription(ctx, tr); err != nil {
				return err
			}
		}
	}
	if d := aggregate.Diarization; d != nil && !d.Status.Terminal() {
		if err := d.MarkSkipped(); err == nil {
			if err := c.store.UpdateDiarization(ctx, d); err != nil {
				return err
			}
		}
	}
	for _, export := range aggregate.Exports {
		if export.Status.Terminal() {
			continue
		}
		if err := export.MarkSkipped(); err == nil {
			if err := c.store.UpdateExport(ctx, export); err != nil {
				return err
			}
		}
	}

	c.logger.Info("task cancelled", logging.String(logging.FieldTaskID, taskID))
	return nil
}
