// Package daemon wires the pipeline together and enforces single-instance
// execution via a file lock.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"scribe/internal/bus"
	"scribe/internal/config"
	"scribe/internal/coordinator"
	"scribe/internal/events"
	"scribe/internal/export"
	"scribe/internal/logging"
	"scribe/internal/merge"
	"scribe/internal/notifications"
	"scribe/internal/services"
	"scribe/internal/services/diarize"
	"scribe/internal/services/whisperx"
	"scribe/internal/storage"
	"scribe/internal/store"
	"scribe/internal/task"
	"scribe/internal/users"
	"scribe/internal/worker"
)

// Daemon owns the long-running pipeline services.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store    *store.Store
	bus      bus.Bus
	objects  storage.ObjectStorage
	users    *users.Service
	notifier notifications.Service
	coord    *coordinator.Coordinator
	workers  *worker.Pool

	lockPath  string
	lock      *flock.Flock
	transport string

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	DBPath       string
	LockFilePath string
	BusTransport string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	objects, err := storage.NewLocal(cfg.Paths.StorageDir, cfg.Export.BaseURL)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	eventBus, transport, err := buildBus(cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	userSvc := users.NewService(st, task.Model(cfg.Transcription.Model), logger)
	notifier := notifications.NewService(cfg, logger)
	coord := coordinator.New(cfg, st, eventBus, userSvc, objects, notifier, logger)

	transcriber := whisperx.NewService(whisperx.Config{
		CUDAEnabled: cfg.Transcription.CUDAEnabled,
		VADMethod:   cfg.Transcription.VADMethod,
		HFToken:     cfg.Transcription.HFToken,
		WorkDir:     cfg.Paths.WorkDir,
	}, "")
	diarizer := diarize.NewService(diarize.Config{
		GapThreshold: cfg.Diarization.GapThreshold,
		MaxSpeakers:  cfg.Diarization.MaxSpeakers,
	})
	pool := worker.NewPool(cfg, eventBus, objects, transcriber, diarizer, renderMerged(objects), logger)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    st,
		bus:      eventBus,
		objects:  objects,
		users:    userSvc,
		notifier: notifier,
		coord:    coord,
		workers:  pool,
		lockPath: filepath.Join(cfg.Paths.DataDir, "scribed.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.transport = transport
	return d, nil
}

// renderMerged builds the export worker's renderer: it loads the merged
// transcript from object storage and renders it in the requested format.
func renderMerged(objects storage.ObjectStorage) worker.Renderer {
	return func(ctx context.Context, taskID string, format task.ExportFormat, options map[string]any) ([]byte, error) {
		raw, err := objects.Download(ctx, "tasks/"+taskID+"/merged.json")
		if err != nil {
			return nil, services.Wrap(services.ErrPrecondition, "export", "render", "merged transcript unavailable", err)
		}
		var transcript merge.Transcript
		if err := json.Unmarshal(raw, &transcript); err != nil {
			return nil, services.Wrap(services.ErrPermanent, "export", "render", "merged transcript corrupt", err)
		}
		return export.Render(format, transcript, export.OptionsFromMap(options))
	}
}

func buildBus(cfg *config.Config, logger *slog.Logger) (bus.Bus, string, error) {
	if cfg.NATS.Enabled {
		natsBus, err := bus.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return nil, "", fmt.Errorf("connect nats: %w", err)
		}
		return natsBus, "nats", nil
	}
	return bus.NewInproc(logger, cfg.Pipeline.InprocBusBuffer), "inproc", nil
}

// Start acquires the daemon lock and launches the workers and coordinator.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.workers.Start(); err != nil {
		d.releaseLock()
		cancel()
		return fmt.Errorf("start workers: %w", err)
	}
	if err := d.coord.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		return fmt.Errorf("start coordinator: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("scribe daemon started",
		logging.String("lock", d.lockPath),
		logging.String("bus", d.transport))
	return nil
}

// Stop halts background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.coord.Stop()
	if err := d.bus.Close(); err != nil {
		d.logger.Warn("failed to close event bus", logging.Error(err))
	}
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("scribe daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}

// Submit stages a local audio file and submits it to the pipeline. The
// speakers hint caps diarization's speaker count; zero means autodetect.
func (d *Daemon) Submit(ctx context.Context, userID int64, sourcePath, lang string, speakers int) (*task.Task, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}

	staged, err := d.stage(absPath)
	if err != nil {
		return nil, err
	}

	submitted, err := d.coord.SubmitAudio(ctx, coordinator.SubmitRequest{
		UserID:      userID,
		Filename:    filepath.Base(absPath),
		Path:        staged,
		SizeBytes:   info.Size(),
		Language:    strings.TrimSpace(lang),
		NumSpeakers: speakers,
	})
	if err != nil {
		_ = os.Remove(staged)
		return nil, err
	}
	return submitted, nil
}

// stage copies an upload into the work directory so the pipeline owns its
// input regardless of what happens to the original file.
func (d *Daemon) stage(sourcePath string) (string, error) {
	uploadsDir := filepath.Join(d.cfg.Paths.WorkDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	dest := filepath.Join(uploadsDir, uuid.NewString()+filepath.Ext(sourcePath))
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("open source file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dest)
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return dest, nil
}

// Task returns the aggregate view of one task.
func (d *Daemon) Task(ctx context.Context, taskID string) (*task.Task, error) {
	return d.coord.Task(ctx, taskID)
}

// Progress returns the last-known stage progress for a task.
func (d *Daemon) Progress(taskID string) (events.StageProgress, bool) {
	return d.coord.Progress(taskID)
}

// Cancel cancels a task that has not settled yet.
func (d *Daemon) Cancel(ctx context.Context, taskID string) error {
	return d.coord.Cancel(ctx, taskID)
}

// RequestExport renders a settled task in the given format.
func (d *Daemon) RequestExport(ctx context.Context, req coordinator.ExportRequest) (*task.Export, error) {
	return d.coord.RequestExport(ctx, req)
}

// ListTasks returns every task's audio record, newest last.
func (d *Daemon) ListTasks(ctx context.Context) ([]*task.AudioFile, error) {
	return d.store.ListAudioFiles(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Test(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		BusTransport: d.transport,
	}
}
