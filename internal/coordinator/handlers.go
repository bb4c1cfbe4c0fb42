package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"scribe/internal/events"
	"scribe/internal/logging"
	"scribe/internal/merge"
	"scribe/internal/store"
	"scribe/internal/task"
)

// HandleTranscriptionCompleted absorbs a transcription stage outcome.
// Duplicate and late events are detected by the terminal-state rule and the
// attempt counter and are dropped without side effects.
func (c *Coordinator) HandleTranscriptionCompleted(ctx context.Context, ev *events.TranscriptionCompleted) error {
	unlock := c.lockTask(ev.TaskID)
	defer unlock()

	ctx = logging.WithTask(logging.WithStage(ctx, stageTranscription), ev.TaskID)
	logger := logging.WithContext(ctx, c.logger)

	transcription, err := c.store.GetTranscription(ctx, ev.TranscriptionID)
	if err != nil {
		return err
	}
	if transcription == nil {
		logger.Warn("completion for unknown transcription", logging.String("transcription_id", ev.TranscriptionID))
		return nil
	}
	if transcription.Status.Terminal() {
		logger.Debug("stale transcription completion ignored")
		return nil
	}
	if ev.Attempt != transcription.Attempt {
		logger.Debug("late transcription completion ignored",
			logging.Int(logging.FieldAttempt, ev.Attempt),
			logging.Int("current_attempt", transcription.Attempt))
		return nil
	}

	if ev.Success {
		if err := transcription.MarkCompleted(ev.Language, ev.Segments); err != nil {
			logger.Debug("transcription completion rejected", logging.Error(err))
			return nil
		}
		if err := c.store.UpdateTranscription(ctx, transcription); err != nil {
			return c.swallowConflict(logger, "transcription", err)
		}
		logger.Info("transcription completed",
			logging.String("language", ev.Language),
			logging.Int("segments", len(ev.Segments)))
		return c.evaluateSettlement(ctx, ev.TaskID)
	}

	next := ev.Attempt + 1
	if !ev.Permanent && next <= c.maxRetries() {
		transcription.Attempt = next
		if err := c.store.UpdateTranscription(ctx, transcription); err != nil {
			return c.swallowConflict(logger, "transcription", err)
		}
		logger.Warn("transcription failed, retrying",
			logging.Int(logging.FieldAttempt, next),
			logging.String("error", ev.Error))
		return c.reemitTranscription(ctx, transcription)
	}

	if err := transcription.MarkFailed(ev.Error); err != nil {
		logger.Debug("transcription failure rejected", logging.Error(err))
		return nil
	}
	if err := c.store.UpdateTranscription(ctx, transcription); err != nil {
		return c.swallowConflict(logger, "transcription", err)
	}
	logger.Error("transcription failed permanently", logging.String("error", ev.Error))

	// Transcription is the critical path: its permanent failure fails the
	// whole task and the merge never runs.
	_ = c.publish(ctx, &events.TaskFailed{TaskID: ev.TaskID, UserID: transcription.UserID, Reason: ev.Error})
	if c.notifier != nil {
		c.notifier.TaskFailed(ctx, transcription.UserID, ev.TaskID, ev.Error)
	}
	return nil
}

// HandleDiarizationCompleted absorbs a diarization stage outcome. Diarization
// failure is not fatal: the transcription-only path still settles the task.
func (c *Coordinator) HandleDiarizationCompleted(ctx context.Context, ev *events.DiarizationCompleted) error {
	unlock := c.lockTask(ev.TaskID)
	defer unlock()

	ctx = logging.WithTask(logging.WithStage(ctx, stageDiarization), ev.TaskID)
	logger := logging.WithContext(ctx, c.logger)

	diarization, err := c.store.GetDiarization(ctx, ev.DiarizationID)
	if err != nil {
		return err
	}
	if diarization == nil {
		logger.Warn("completion for unknown diarization", logging.String("diarization_id", ev.DiarizationID))
		return nil
	}
	if diarization.Status.Terminal() {
		logger.Debug("stale diarization completion ignored")
		return nil
	}
	if ev.Attempt != diarization.Attempt {
		logger.Debug("late diarization completion ignored",
			logging.Int(logging.FieldAttempt, ev.Attempt),
			logging.Int("current_attempt", diarization.Attempt))
		return nil
	}

	if ev.Success {
		if err := diarization.MarkCompleted(ev.NumSpeakers, ev.Segments); err != nil {
			logger.Debug("diarization completion rejected", logging.Error(err))
			return nil
		}
		if err := c.store.UpdateDiarization(ctx, diarization); err != nil {
			return c.swallowConflict(logger, "diarization", err)
		}
		logger.Info("diarization completed", logging.Int("speakers", ev.NumSpeakers))
		return c.evaluateSettlement(ctx, ev.TaskID)
	}

	next := ev.Attempt + 1
	if !ev.Permanent && next <= c.maxRetries() {
		diarization.Attempt = next
		if err := c.store.UpdateDiarization(ctx, diarization); err != nil {
			return c.swallowConflict(logger, "diarization", err)
		}
		logger.Warn("diarization failed, retrying",
			logging.Int(logging.FieldAttempt, next),
			logging.String("error", ev.Error))
		return c.reemitDiarization(ctx, diarization)
	}

	if err := diarization.MarkFailed(ev.Error); err != nil {
		logger.Debug("diarization failure rejected", logging.Error(err))
		return nil
	}
	if err := c.store.UpdateDiarization(ctx, diarization); err != nil {
		return c.swallowConflict(logger, "diarization", err)
	}
	logger.Warn("diarization failed permanently, continuing without speakers", logging.String("error", ev.Error))
	return c.evaluateSettlement(ctx, ev.TaskID)
}

// HandleExportCompleted absorbs an export stage outcome.
func (c *Coordinator) HandleExportCompleted(ctx context.Context, ev *events.ExportCompleted) error {
	unlock := c.lockTask(ev.TaskID)
	defer unlock()

	ctx = logging.WithTask(logging.WithStage(ctx, stageExport), ev.TaskID)
	logger := logging.WithContext(ctx, c.logger)

	export, err := c.store.GetExport(ctx, ev.ExportID)
	if err != nil {
		return err
	}
	if export == nil {
		logger.Warn("completion for unknown export", logging.String("export_id", ev.ExportID))
		return nil
	}
	if export.Status.Terminal() {
		logger.Debug("stale export completion ignored")
		return nil
	}
	if ev.Attempt != export.Attempt {
		logger.Debug("late export completion ignored",
			logging.Int(logging.FieldAttempt, ev.Attempt),
			logging.Int("current_attempt", export.Attempt))
		return nil
	}

	if ev.Success {
		if err := export.MarkCompleted(ev.FilePath, ev.FileURL); err != nil {
			logger.Debug("export completion rejected", logging.Error(err))
			return nil
		}
		if err := c.store.UpdateExport(ctx, export); err != nil {
			return c.swallowConflict(logger, "export", err)
		}
		logger.Info("export completed",
			logging.String("export_id", export.ID),
			logging.String("format", string(export.Format)))
		if c.notifier != nil {
			c.notifier.ExportReady(ctx, export.UserID, ev.TaskID, ev.FileURL)
		}
		return nil
	}

	next := ev.Attempt + 1
	if next <= c.maxRetries() {
		export.Attempt = next
		if err := c.store.UpdateExport(ctx, export); err != nil {
			return c.swallowConflict(logger, "export", err)
		}
		logger.Warn("export failed, retrying",
			logging.Int(logging.FieldAttempt, next),
			logging.String("error", ev.Error))
		if err := c.publish(ctx, &events.ExportRequested{
			TaskID:   export.TaskID,
			ExportID: export.ID,
			UserID:   export.UserID,
			Format:   export.Format,
			Options:  export.Options,
			Attempt:  next,
		}); err != nil {
			return err
		}
		return c.markExportDispatched(ctx, export)
	}

	if err := export.MarkFailed(ev.Error); err != nil {
		logger.Debug("export failure rejected", logging.Error(err))
		return nil
	}
	if err := c.store.UpdateExport(ctx, export); err != nil {
		return c.swallowConflict(logger, "export", err)
	}
	logger.Error("export failed permanently", logging.String("error", ev.Error))
	return nil
}

// evaluateSettlement runs after a stage reached a terminal state, under the
// task lock. Exactly one stage transition is the last one, so TaskReady is
// emitted exactly once per task.
func (c *Coordinator) evaluateSettlement(ctx context.Context, taskID string) error {
	aggregate, err := c.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if !aggregate.StagesSettled() || !aggregate.Mergeable() {
		return nil
	}
	// A recorded merged transcript means settlement already ran to completion;
	// running it again would emit a second TaskReady.
	if aggregate.Audio.ProcessedPath != "" {
		return nil
	}

	var speakers []task.SpeakerSegment
	numSpeakers := 0
	if d := aggregate.Diarization; d != nil && d.Status == task.StatusCompleted {
		speakers = d.Segments
		numSpeakers = d.NumSpeakers
	}
	merged := merge.Transcript{
		Language:    aggregate.Transcription.Language,
		NumSpeakers: numSpeakers,
		Segments:    merge.Merge(aggregate.Transcription.Segments, speakers),
	}

	payload, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal merged transcript: %w", err)
	}
	name := fmt.Sprintf("tasks/%s/merged.json", taskID)
	if _, err := c.storage.Upload(ctx, payload, name); err != nil {
		return fmt.Errorf("store merged transcript: %w", err)
	}

	audio := aggregate.Audio
	audio.ProcessedPath = c.storage.Path(name)
	if audio.ProcessedPath == "" {
		audio.ProcessedPath = c.storage.URL(name)
	}
	if err := c.store.UpdateAudioFile(ctx, audio); err != nil {
		return c.swallowConflict(c.logger, "audio", err)
	}

	c.logger.Info("task ready",
		logging.String(logging.FieldTaskID, taskID),
		logging.Int("segments", len(merged.Segments)))
	_ = c.publish(ctx, &events.TaskReady{TaskID: taskID, UserID: audio.UserID})
	if c.notifier != nil {
		c.notifier.TaskReady(ctx, audio.UserID, taskID)
	}

	c.maybeDeleteSource(ctx, audio)
	return nil
}

// maybeDeleteSource removes the staged upload once the merged transcript is
// durable, when the user opted in. Removal is best effort.
func (c *Coordinator) maybeDeleteSource(ctx context.Context, audio *task.AudioFile) {
	if audio.Path == "" {
		return
	}
	settings, err := c.users.GetOrCreateDefault(ctx, audio.UserID)
	if err != nil || !settings.AutoDeleteFiles {
		return
	}

	path := audio.Path
	taskID := audio.TaskID()
	remove := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("source cleanup failed",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err))
			return
		}
		c.logger.Debug("source audio removed", logging.String(logging.FieldTaskID, taskID))
	}

	if delay := c.cfg.Pipeline.AutoDeleteDelaySecond; delay > 0 {
		time.AfterFunc(time.Duration(delay)*time.Second, remove)
		return
	}
	remove()
}

func (c *Coordinator) reemitTranscription(ctx context.Context, transcription *task.Transcription) error {
	audio, err := c.store.GetAudioFile(ctx, transcription.AudioFileID)
	if err != nil || audio == nil {
		return err
	}
	if err := c.publish(ctx, &events.TranscriptionRequested{
		TaskID:             audio.TaskID(),
		AudioFileID:        audio.ID,
		TranscriptionID:    transcription.ID,
		UserID:             transcription.UserID,
		AudioPath:          audio.Path,
		Model:              transcription.Model,
		Language:           transcription.Language,
		AutoDetectLanguage: transcription.Language == "",
		Attempt:            transcription.Attempt,
	}); err != nil {
		return err
	}
	return c.markTranscriptionDispatched(ctx, transcription)
}

func (c *Coordinator) reemitDiarization(ctx context.Context, diarization *task.Diarization) error {
	audio, err := c.store.GetAudioFile(ctx, diarization.AudioFileID)
	if err != nil || audio == nil {
		return err
	}
	if err := c.publish(ctx, &events.DiarizationRequested{
		TaskID:        audio.TaskID(),
		AudioFileID:   audio.ID,
		DiarizationID: diarization.ID,
		UserID:        diarization.UserID,
		AudioPath:     audio.Path,
		Attempt:       diarization.Attempt,
	}); err != nil {
		return err
	}
	return c.markDiarizationDispatched(ctx, diarization)
}

// markTranscriptionDispatched moves the row to in_progress once its command is
// on the bus. A stage that already advanced past in_progress, or a lost
// revision race, means a worker or replica got there first; both are no-ops.
func (c *Coordinator) markTranscriptionDispatched(ctx context.Context, transcription *task.Transcription) error {
	if err := transcription.MarkInProgress(); err != nil {
		return nil
	}
	return c.swallowConflict(c.logger, "transcription", c.store.UpdateTranscription(ctx, transcription))
}

func (c *Coordinator) markDiarizationDispatched(ctx context.Context, diarization *task.Diarization) error {
	if err := diarization.MarkInProgress(); err != nil {
		return nil
	}
	return c.swallowConflict(c.logger, "diarization", c.store.UpdateDiarization(ctx, diarization))
}

func (c *Coordinator) markExportDispatched(ctx context.Context, export *task.Export) error {
	if err := export.MarkInProgress(); err != nil {
		return nil
	}
	return c.swallowConflict(c.logger, "export", c.store.UpdateExport(ctx, export))
}

// swallowConflict downgrades a lost revision race to a no-op: the competing
// writer already applied an equivalent or newer transition.
func (c *Coordinator) swallowConflict(logger *slog.Logger, entity string, err error) error {
	if errors.Is(err, store.ErrConflict) {
		logger.Warn("revision conflict, concurrent writer won", logging.String("entity", entity))
		return nil
	}
	return err
}
