package coordinator

import (
	"context"
	"time"

	"scribe/internal/events"
	"scribe/internal/logging"
	"scribe/internal/task"
)

func (c *Coordinator) sweepInterval() time.Duration {
	if c.cfg.Pipeline.SweepInterval > 0 {
		return time.Duration(c.cfg.Pipeline.SweepInterval) * time.Second
	}
	return 30 * time.Second
}

// sweepLoop periodically fails overdue stages. This is what makes the engine
// robust to completion events dropped after the bus gave up.
func (c *Coordinator) sweepLoop(ctx context.Context) {
	defer close(c.sweepDone)

	ticker := time.NewTicker(c.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SweepDeadlines(ctx)
			if err := c.recoverUnmerged(ctx); err != nil {
				c.logger.Warn("settlement sweep failed", logging.Error(err))
			}
		}
	}
}

// SweepDeadlines drives every overdue active stage through the stage-failure
// path, exactly as if a failure event had arrived.
func (c *Coordinator) SweepDeadlines(ctx context.Context) {
	now := time.Now().UTC()

	transcriptions, err := c.store.ListActiveTranscriptions(ctx)
	if err != nil {
		c.logger.Error("sweep: list transcriptions", logging.Error(err))
	}
	for _, tr := range transcriptions {
		if now.Sub(tr.UpdatedAt) < c.stageTimeout(stageTranscription) {
			continue
		}
		c.logger.Warn("transcription deadline exceeded",
			logging.String(logging.FieldTaskID, tr.AudioFileID),
			logging.Int(logging.FieldAttempt, tr.Attempt))
		_ = c.HandleTranscriptionCompleted(ctx, &events.TranscriptionCompleted{
			TaskID:          tr.AudioFileID,
			TranscriptionID: tr.ID,
			UserID:          tr.UserID,
			Attempt:         tr.Attempt,
			Success:         false,
			Error:           "transcription deadline exceeded",
		})
	}

	diarizations, err := c.store.ListActiveDiarizations(ctx)
	if err != nil {
		c.logger.Error("sweep: list diarizations", logging.Error(err))
	}
	for _, d := range diarizations {
		if now.Sub(d.UpdatedAt) < c.stageTimeout(stageDiarization) {
			continue
		}
		c.logger.Warn("diarization deadline exceeded",
			logging.String(logging.FieldTaskID, d.AudioFileID),
			logging.Int(logging.FieldAttempt, d.Attempt))
		_ = c.HandleDiarizationCompleted(ctx, &events.DiarizationCompleted{
			TaskID:        d.AudioFileID,
			DiarizationID: d.ID,
			UserID:        d.UserID,
			Attempt:       d.Attempt,
			Success:       false,
			Error:         "diarization deadline exceeded",
		})
	}

	exports, err := c.store.ListActiveExports(ctx)
	if err != nil {
		c.logger.Error("sweep: list exports", logging.Error(err))
	}
	for _, export := range exports {
		if now.Sub(export.UpdatedAt) < c.stageTimeout(stageExport) {
			continue
		}
		c.logger.Warn("export deadline exceeded",
			logging.String(logging.FieldTaskID, export.TaskID),
			logging.Int(logging.FieldAttempt, export.Attempt))
		_ = c.HandleExportCompleted(ctx, &events.ExportCompleted{
			TaskID:   export.TaskID,
			ExportID: export.ID,
			UserID:   export.UserID,
			Attempt:  export.Attempt,
			Success:  false,
			Error:    "export deadline exceeded",
		})
	}
}

// Recover re-emits commands for stages that were pending when a previous run
// stopped, then re-runs settlement for tasks whose stages all finished without
// a merged transcript being recorded. Stages stuck in_progress are left to the
// deadline sweep so a worker that survived the restart is not doubled up.
func (c *Coordinator) Recover(ctx context.Context) error {
	transcriptions, err := c.store.ListActiveTranscriptions(ctx)
	if err != nil {
		return err
	}
	for _, tr := range transcriptions {
		if tr.Status != task.StatusPending {
			continue
		}
		c.logger.Info("recovering pending transcription",
			logging.String(logging.FieldTaskID, tr.AudioFileID),
			logging.Int(logging.FieldAttempt, tr.Attempt))
		if err := c.reemitTranscription(ctx, tr); err != nil {
			return err
		}
	}

	diarizations, err := c.store.ListActiveDiarizations(ctx)
	if err != nil {
		return err
	}
	for _, d := range diarizations {
		if d.Status != task.StatusPending {
			continue
		}
		c.logger.Info("recovering pending diarization",
			logging.String(logging.FieldTaskID, d.AudioFileID),
			logging.Int(logging.FieldAttempt, d.Attempt))
		if err := c.reemitDiarization(ctx, d); err != nil {
			return err
		}
	}

	exports, err := c.store.ListActiveExports(ctx)
	if err != nil {
		return err
	}
	for _, export := range exports {
		if export.Status != task.StatusPending {
			continue
		}
		c.logger.Info("recovering pending export",
			logging.String(logging.FieldTaskID, export.TaskID),
			logging.String("export_id", export.ID))
		if err := c.publish(ctx, &events.ExportRequested{
			TaskID:   export.TaskID,
			ExportID: export.ID,
			UserID:   export.UserID,
			Format:   export.Format,
			Options:  export.Options,
			Attempt:  export.Attempt,
		}); err != nil {
			return err
		}
		if err := c.markExportDispatched(ctx, export); err != nil {
			return err
		}
	}

	return c.recoverUnmerged(ctx)
}

// recoverUnmerged finishes tasks that crashed between the last stage's
// terminal write and the merge: every stage is settled but no merged
// transcript was recorded. Settlement is re-run from the stored results; tasks
// that are still running or not mergeable fall through untouched.
func (c *Coordinator) recoverUnmerged(ctx context.Context) error {
	unprocessed, err := c.store.ListUnprocessedAudioFiles(ctx)
	if err != nil {
		return err
	}
	for _, audio := range unprocessed {
		taskID := audio.TaskID()
		unlock := c.lockTask(taskID)
		err := c.evaluateSettlement(ctx, taskID)
		unlock()
		if err != nil {
			c.logger.Warn("recovery settlement failed",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err))
		}
	}
	return nil
}
