// Package coordinator drives the transcription pipeline: it validates
// submissions, fans stage commands out on the event bus, absorbs completion
// events, retries failed stages, merges settled results, and gates exports.
//
// Handlers for different tasks run concurrently; all mutation of one task's
// state is serialized through a per-task lock, and every repository write is
// conditional on the row revision so racing replicas cannot double-apply a
// transition.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scribe/internal/bus"
	"scribe/internal/config"
	"scribe/internal/events"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/storage"
	"scribe/internal/store"
	"scribe/internal/task"
	"scribe/internal/users"
)

// Notifier pushes user-facing pipeline outcomes. All methods are best effort;
// failures are logged and never fail the pipeline.
type Notifier interface {
	TaskReady(ctx context.Context, userID int64, taskID string)
	TaskFailed(ctx context.Context, userID int64, taskID, reason string)
	ExportReady(ctx context.Context, userID int64, taskID, fileURL string)
}

// Coordinator owns pipeline state transitions. Construct with New and call
// Start before publishing work.
type Coordinator struct {
	cfg      *config.Config
	store    *store.Store
	bus      bus.Bus
	users    *users.Service
	storage  storage.ObjectStorage
	notifier Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	progressMu sync.Mutex
	progress   map[string]events.StageProgress

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// New constructs a coordinator. notifier may be nil.
func New(cfg *config.Config, st *store.Store, eventBus bus.Bus, userSvc *users.Service, objects storage.ObjectStorage, notifier Notifier, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		cfg:      cfg,
		store:    st,
		bus:      eventBus,
		users:    userSvc,
		storage:  objects,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "coordinator"),
		locks:    make(map[string]*sync.Mutex),
		progress: make(map[string]events.StageProgress),
	}
}

// Start subscribes the coordinator to completion events and launches the
// deadline sweep. It also re-emits commands for stages left active by a
// previous run.
func (c *Coordinator) Start(ctx context.Context) error {
	subscriptions := map[string]bus.Handler{
		events.NameTranscriptionCompleted: c.onEvent,
		events.NameDiarizationCompleted:   c.onEvent,
		events.NameExportCompleted:        c.onEvent,
		events.NameStageProgress:          c.onEvent,
	}
	for name, handler := range subscriptions {
		if err := c.bus.Subscribe(name, handler); err != nil {
			return err
		}
	}

	if err := c.Recover(ctx); err != nil {
		c.logger.Warn("crash recovery incomplete", logging.Error(err))
	}

	sweepCtx, cancel := context.WithCancel(context.Background())
	c.sweepCancel = cancel
	c.sweepDone = make(chan struct{})
	go c.sweepLoop(sweepCtx)
	return nil
}

// Stop halts the deadline sweep. The bus is closed by its owner.
func (c *Coordinator) Stop() {
	if c.sweepCancel != nil {
		c.sweepCancel()
		<-c.sweepDone
	}
}

func (c *Coordinator) onEvent(ctx context.Context, event events.Event) error {
	switch ev := event.(type) {
	case *events.TranscriptionCompleted:
		return c.HandleTranscriptionCompleted(ctx, ev)
	case *events.DiarizationCompleted:
		return c.HandleDiarizationCompleted(ctx, ev)
	case *events.ExportCompleted:
		return c.HandleExportCompleted(ctx, ev)
	case *events.StageProgress:
		return c.HandleStageProgress(ctx, ev)
	default:
		c.logger.Debug("ignoring event", logging.String(logging.FieldEventType, event.Name()))
		return nil
	}
}

// lockTask serializes state mutation for one task. Locks are never reclaimed;
// the map grows with the task population, which is bounded by retention.
func (c *Coordinator) lockTask(taskID string) func() {
	c.mu.Lock()
	lock, ok := c.locks[taskID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[taskID] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Task assembles the current aggregate view of one task.
func (c *Coordinator) Task(ctx context.Context, taskID string) (*task.Task, error) {
	return c.loadTask(ctx, taskID)
}

func (c *Coordinator) loadTask(ctx context.Context, taskID string) (*task.Task, error) {
	audio, err := c.store.GetAudioFile(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return nil, services.Wrap(services.ErrNotFound, "coordinator", "load task", taskID, nil)
	}

	transcription, err := c.store.GetTranscriptionByAudioFile(ctx, taskID)
	if err != nil {
		return nil, err
	}
	diarization, err := c.store.GetDiarizationByAudioFile(ctx, taskID)
	if err != nil {
		return nil, err
	}
	exports, err := c.store.ListExportsByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	aggregate := &task.Task{
		ID:            taskID,
		Audio:         audio,
		Transcription: transcription,
		Diarization:   diarization,
		Exports:       exports,
	}
	aggregate.Cancelled = transcription != nil && transcription.Status == task.StatusSkipped && audio.IsValid
	return aggregate, nil
}

// Progress returns the last-known progress report for a task, if any.
func (c *Coordinator) Progress(taskID string) (events.StageProgress, bool) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	report, ok := c.progress[taskID]
	return report, ok
}

// HandleStageProgress records the latest worker progress without blocking the
// pipeline. Lost or reordered progress events are harmless.
func (c *Coordinator) HandleStageProgress(_ context.Context, ev *events.StageProgress) error {
	c.progressMu.Lock()
	c.progress[ev.TaskID] = *ev
	c.progressMu.Unlock()
	return nil
}

func (c *Coordinator) publish(ctx context.Context, event events.Event) error {
	if err := c.bus.Publish(ctx, event); err != nil {
		c.logger.Error("publish failed",
			logging.String(logging.FieldEventType, event.Name()),
			logging.Error(err))
		return err
	}
	return nil
}

func (c *Coordinator) maxRetries() int {
	if c.cfg.Pipeline.MaxRetries > 0 {
		return c.cfg.Pipeline.MaxRetries
	}
	return 3
}

func (c *Coordinator) stageTimeout(stage string) time.Duration {
	seconds := 0
	switch stage {
	case stageTranscription:
		seconds = c.cfg.Pipeline.TranscriptionTimeout
	case stageDiarization:
		seconds = c.cfg.Pipeline.DiarizationTimeout
	case stageExport:
		seconds = c.cfg.Pipeline.ExportTimeout
	}
	if seconds <= 0 {
		seconds = 1800
	}
	return time.Duration(seconds) * time.Second
}

const (
	stageTranscription = "transcription"
	stageDiarization   = "diarization"
	stageExport        = "export"
)
