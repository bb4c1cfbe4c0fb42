package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"scribe/internal/bus"
	"scribe/internal/config"
	"scribe/internal/events"
	"scribe/internal/merge"
	"scribe/internal/services"
	"scribe/internal/storage"
	"scribe/internal/store"
	"scribe/internal/task"
	"scribe/internal/users"
)

// recordingBus captures published events without dispatching them, so tests
// drive the handlers directly and assert on the outbound traffic.
type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(string, bus.Handler) error { return nil }
func (b *recordingBus) Close() error                        { return nil }

func (b *recordingBus) named(name string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var matched []events.Event
	for _, event := range b.published {
		if event.Name() == name {
			matched = append(matched, event)
		}
	}
	return matched
}

type fixture struct {
	coord *Coordinator
	store *store.Store
	bus   *recordingBus
	cfg   *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths.DataDir = dir
	cfg.Paths.StorageDir = filepath.Join(dir, "objects")
	cfg.Pipeline.AutoDeleteDelaySecond = 0

	st, err := store.OpenPath(filepath.Join(dir, "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	objects, err := storage.NewLocal(cfg.Paths.StorageDir, "")
	if err != nil {
		t.Fatalf("new storage: %v", err)
	}

	recorder := &recordingBus{}
	userSvc := users.NewService(st, task.Model(cfg.Transcription.Model), nil)
	coord := New(&cfg, st, recorder, userSvc, objects, nil, nil)
	return &fixture{coord: coord, store: st, bus: recorder, cfg: &cfg}
}

func submitValid(t *testing.T, f *fixture, userID int64) *task.Task {
	t.Helper()
	submitted, err := f.coord.SubmitAudio(context.Background(), SubmitRequest{
		UserID:    userID,
		Filename:  "meeting.mp3",
		Path:      filepath.Join(t.TempDir(), "meeting.mp3"),
		SizeBytes: 4096,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return submitted
}

func TestSubmitFansOutBothStages(t *testing.T) {
	f := newFixture(t)
	submitted := submitValid(t, f, 1)

	if submitted.Transcription == nil || submitted.Transcription.Status != task.StatusInProgress {
		t.Fatalf("expected dispatched transcription: %+v", submitted.Transcription)
	}
	if submitted.Diarization == nil || submitted.Diarization.Status != task.StatusInProgress {
		t.Fatalf("expected dispatched diarization: %+v", submitted.Diarization)
	}

	if got := len(f.bus.named(events.NameTranscriptionRequested)); got != 1 {
		t.Fatalf("expected 1 transcription command, got %d", got)
	}
	if got := len(f.bus.named(events.NameDiarizationRequested)); got != 1 {
		t.Fatalf("expected 1 diarization command, got %d", got)
	}

	cmd := f.bus.named(events.NameTranscriptionRequested)[0].(*events.TranscriptionRequested)
	if cmd.Attempt != 0 {
		t.Fatalf("initial attempt must be 0, got %d", cmd.Attempt)
	}
	if cmd.Model != task.ModelWhisperLargeV3 {
		t.Fatalf("expected default model, got %s", cmd.Model)
	}
}

func TestSubmitSkipsDiarizationWhenDisabled(t *testing.T) {
	f := newFixture(t)
	disabled := false
	if _, err := f.coord.users.Update(context.Background(), 2, users.Fields{DiarizationEnabled: &disabled}); err != nil {
		t.Fatalf("disable diarization: %v", err)
	}

	submitted := submitValid(t, f, 2)
	if submitted.Diarization != nil {
		t.Fatal("expected no diarization stage")
	}
	if got := len(f.bus.named(events.NameDiarizationRequested)); got != 0 {
		t.Fatalf("expected no diarization command, got %d", got)
	}
}

func TestSubmitRejectsUnsupportedFormat(t *testing.T) {
	f := newFixture(t)
	submitted, err := f.coord.SubmitAudio(context.Background(), SubmitRequest{
		UserID:    3,
		Filename:  "slides.pdf",
		SizeBytes: 100,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if got := len(f.bus.named(events.NameAudioRejected)); got != 1 {
		t.Fatalf("expected AudioRejected, got %d", got)
	}
	if got := len(f.bus.named(events.NameTranscriptionRequested)); got != 0 {
		t.Fatalf("rejected submission must not start stages, got %d commands", got)
	}

	stored, err := f.store.GetAudioFile(context.Background(), submitted.ID)
	if err != nil {
		t.Fatalf("get audio: %v", err)
	}
	if stored.IsValid {
		t.Fatal("rejected audio persisted as valid")
	}
}

func TestSubmitRejectsOversizeFile(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.SubmitAudio(context.Background(), SubmitRequest{
		UserID:    3,
		Filename:  "big.wav",
		SizeBytes: (f.cfg.Pipeline.MaxFileSizeMB + 1) * 1024 * 1024,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := len(f.bus.named(events.NameAudioRejected)); got != 1 {
		t.Fatalf("expected AudioRejected, got %d", got)
	}
}

func completeTranscription(t *testing.T, f *fixture, submitted *task.Task, segments []task.Segment) {
	t.Helper()
	err := f.coord.HandleTranscriptionCompleted(context.Background(), &events.TranscriptionCompleted{
		TaskID:          submitted.ID,
		TranscriptionID: submitted.Transcription.ID,
		UserID:          submitted.Transcription.UserID,
		Success:         true,
		Language:        "en",
		Segments:        segments,
	})
	if err != nil {
		t.Fatalf("transcription completion: %v", err)
	}
}

func completeDiarization(t *testing.T, f *fixture, submitted *task.Task, speakers []task.SpeakerSegment) {
	t.Helper()
	err := f.coord.HandleDiarizationCompleted(context.Background(), &events.DiarizationCompleted{
		TaskID:        submitted.ID,
		DiarizationID: submitted.Diarization.ID,
		UserID:        submitted.Diarization.UserID,
		Success:       true,
		NumSpeakers:   1,
		Segments:      speakers,
	})
	if err != nil {
		t.Fatalf("diarization completion: %v", err)
	}
}

func TestBothStagesSettleMergeAndEmitTaskReadyOnce(t *testing.T) {
	f := newFixture(t)
	submitted := submitValid(t, f, 10)

	completeTranscription(t, f, submitted, []task.Segment{{StartTime: 0, EndTime: 5, Text: "hi", Confidence: 0.9}})
	if got := len(f.bus.named(events.NameTaskReady)); got != 0 {
		t.Fatalf("TaskReady before diarization settled: %d", got)
	}

	completeDiarization(t, f, submitted, []task.SpeakerSegment{{SpeakerID: 0, StartTime: 0, EndTime: 6, Confidence: 0.8}})

	ready := f.bus.named(events.NameTaskReady)
	if len(ready) != 1 {
		t.Fatalf("expected exactly one TaskReady, got %d", len(ready))
	}

	aggregate, err := f.coord.Task(context.Background(), submitted.ID)
	if err != nil {
		t.Fatalf("load task: %v", err)
	}
	if aggregate.Audio.ProcessedPath == "" {
		t.Fatal("merged transcript path not recorded")
	}

	raw, err := f.coord.storage.Download(context.Background(), "tasks/"+submitted.ID+"/merged.json")
	if err != nil {
		t.Fatalf("download merged: %v", err)
	}
	var merged merge.Transcript
	if err := json.Unmarshal(raw, &merged); err != nil {
		t.Fatalf("decode merged: %v", err)
	}
	if merged.Language != "en" {
		t.Fatalf("language not carried into merged document: %q", merged.Language)
	}
	segs := merged.Segments
	if len(segs) != 1 || segs[0].SpeakerID == nil || *segs[0].SpeakerID != 0 {
		t.Fatalf("unexpected merged output: %+v", segs)
	}
	if segs[0].StartTime != 0 || segs[0].EndTime != 5 || segs[0].Text != "hi" {
		t.Fatalf("timing not preserved: %+v", segs[0])
	}
}

func TestDuplicateCompletionIsIgnored(t *testing.T) {
	f := newFixture(t)
	submitted := submitValid(t, f, 11)

	completeTranscription(t, f, submitted, []task.Segment{{StartTime: 0, EndTime: 1, Text: "a"}})
	completeTranscription(t, f, submitted, []task.Segment{{StartTime: 0, EndTime: 1, Text: "dup"}})
	completeDiarization(t, f, submitted, nil)

	if got := len(f.bus.named(events.NameTaskReady)); got != 1 {
		t.Fatalf("duplicate completion produced %d TaskReady events", got)
	}

	tr, err := f.store.GetTranscription(context.Background(), submitted.Transcription.ID)
	if err != nil {
		t.Fatalf("get transcription: %v", err)
	}
	if len(tr.Segments) != 1 || tr.Segments[0].Text != "a" {
		t.Fatalf("duplicate overwrote first completion: %+v", tr.Segments)
	}
}

func TestTransientFailureRetriesThenFailsPermanently(t *testing.T) {
	f := newFixture(t)
	submitted := submitValid(t, f, 12)

	fail := func(attempt int) {
		err := f.coord.HandleTranscriptionCompleted(context.Background(), &events.TranscriptionCompleted{
			TaskID:          submitted.ID,
			TranscriptionID: submitted.Transcription.ID,
			UserID:          12,
			Attempt:         attempt,
			Success:         false,
			Error:           "worker crashed",
		})
		if err != nil {
			t.Fatalf("failure event attempt %d: %v", attempt, err)
		}
	}

	for attempt := 0; attempt <= f.cfg.Pipeline.MaxRetries; attempt++ {
		fail(attempt)
	}

	// Initial command plus one re-emission per allowed retry.
	commands := f.bus.named(events.NameTranscriptionRequested)
	if len(commands) != 1+f.cfg.Pipeline.MaxRetries {
		t.Fatalf("expected %d commands, got %d", 1+f.cfg.Pipeline.MaxRetries, len(commands))
	}
	last := commands[len(commands)-1].(*events.TranscriptionRequested)
	if last.Attempt != f.cfg.Pipeline.MaxRetries {
		t.Fatalf("expected final attempt %d, got %d", f.cfg.Pipeline.MaxRetries, last.Attempt)
	}

	if got := len(f.bus.named(events.NameTaskFailed)); got != 1 {
		t.Fatalf("expected one TaskFailed, got %d", got)
	}
	if got := len(f.bus.named(events.NameTaskReady)); got != 0 {
		t.Fatalf("failed task must not emit TaskReady, got %d", got)
	}

	tr, err := f.store.GetTranscription(context.Background(), submitted.Transcription.ID)
	if err != nil {
		t.Fatalf("get transcription: %v", err)
	}
	if tr.Status != task.StatusFailed {
		t.Fatalf("expected failed status, got %s", tr.Status)
	}
}

func TestPermanentWorkerFailureSkipsRetries(t *testing.T) {
	f := newFixture(t)
	submitted := submitValid(t, f, 13)

	err := f.coord.HandleTranscriptionCompleted(context.Background(), &events.TranscriptionCompleted{
		TaskID:          submitted.ID,
		TranscriptionID: submitted.Transcription.ID,
		UserID:          13,
		Success:         false,
		Permanent:       true,
		Error:           "corrupt audio",
	})
	if err != nil {
		t.Fatalf("failure event: %v", err)
	}

	if got := len(f.bus.named(events.NameTranscriptionRequested)); got != 1 {
		t.Fatalf("permanent failure must not retry, got %d commands", got)
	}
	if got := len(f.bus.named(events.NameTaskFailed)); got != 1 {
		t.Fatalf("expected one TaskFailed, got %d", got)
	}
}

func TestDiarizationFailureStillSettlesTask(t *testing.T) {
	f := newFixture(t)
	submitted := submitValid(t, f, 14)

	completeTranscription(t, f, submitted, []task.Segment{{StartTime: 0, EndTime: 2, Text: "solo"}})

	err := f.coord.HandleDiarizationCompleted(context.Background(), &events.DiarizationCompleted{
		TaskID:        submitted.ID,
		DiarizationID: submitted.Diarization.ID,
		UserID:        14,
		Success:       false,
		Permanent:     true,
		Error:         "model unavailable",
	})
	if err != nil {
		t.Fatalf("diarization failure: %v", err)
	}

	if got := len(f.bus.named(events.NameTaskReady)); got != 1 {
		t.Fatalf("expected TaskReady via transcription-only path, got %d", got)
	}
	if got := len(f.bus.named(events.NameTaskFailed)); got != 0 {
		t.Fatalf("diarization failure must not fail the task, got %d TaskFailed", got)
	}

	raw, err := f.coord.storage.Download(context.Background(), "tasks/"+submitted.ID+"/merged.json")
	if err != nil {
		t.Fatalf("download merged: %v", err)
	}
	var merged merge.Transcript
	if err := json.Unmarshal(raw, &merged); err != nil {
		t.Fatalf("decode merged: %v", err)
	}
	for _, seg := range merged.Segments {
		if seg.SpeakerID != nil {
			t.Fatalf("expected unset speakers, got %d", *seg.SpeakerID)
		}
	}
}

func TestExportRequiresSettledTask(t *testing.T) {
	f := newFixture(t)
	submitted := submitValid(t, f, 15)

	_, err := f.coord.RequestExport(context.Background(), ExportRequest{
		TaskID: submitted.ID,
		UserID: 15,
		Format: task.ExportTXT,
	})
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error before settlement, got %v", err)
	}

	completeTranscription(t, f, submitted, []task.Segment{{StartTime: 0, EndTime: 1, Text: "x"}})
	completeDiarization(t, f, submitted, nil)

	export, err := f.coord.RequestExport(context.Background(), ExportRequest{
		TaskID:  submitted.ID,
		UserID:  15,
		Format:  task.ExportSRT,
		Options: map[string]any{"include_timestamps": true},
	})
	if err != nil {
		t.Fatalf("export after settlement: %v", err)
	}
	if export.Status != task.StatusInProgress {
		t.Fatalf("expected dispatched export, got %s", export.Status)
	}
	if got := len(f.bus.named(events.NameExportRequested)); got != 1 {
		t.Fatalf("expected one export command, got %d", got)
	}

	err = f.coord.HandleExportCompleted(context.Background(), &events.ExportCompleted{
		TaskID:   submitted.ID,
		ExportID: export.ID,
		UserID:   15,
		Success:  true,
		FilePath: "/tmp/out.srt",
		FileURL:  "file:///tmp/out.srt",
	})
	if err != nil {
		t.Fatalf("export completion: %v", err)
	}

	stored, err := f.store.GetExport(context.Background(), export.ID)
	if err != nil {
		t.Fatalf("get export: %v", err)
	}
	if stored.Status != task.StatusCompleted || stored.FileURL == "" {
		t.Fatalf("unexpected export state: %+v", stored)
	}
}

func TestExportRejectedWhenTranscriptionFailed(t *testing.T) {
	f := newFixture(t)
	submitted := submitValid(t, f, 16)

	err := f.coord.HandleTranscriptionCompleted(context.Background(), &events.TranscriptionCompleted{
		TaskID:          submitted.ID,
		TranscriptionID: submitted.Transcription.ID,
		UserID:          16,
		Success:         false,
		Permanent:       true,
		Error:           "bad audio",
	})
	if err != nil {
		t.Fatalf("failure event: %v", err)
	}
	completeDiarization(t, f, submitted, nil)

	_, err = f.coord.RequestExport(context.Background(), ExportRequest{
		TaskID: submitted.ID,
		UserID: 16,
		Format: task.ExportTXT,
	})
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestCancelSkipsActiveStagesAndSuppressesLateEvents(t *testing.T) {
	f := newFixture(t)
	submitted := submitValid(t, f, 17)

	if err := f.coord.Cancel(context.Background(), submitted.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	aggregate, err := f.coord.Task(context.Background(), submitted.ID)
	if err != nil {
		t.Fatalf("load task: %v", err)
	}
	if aggregate.Transcription.Status != task.StatusSkipped {
		t.Fatalf("expected skipped transcription, got %s", aggregate.Transcription.Status)
	}
	if aggregate.Diarization.Status != task.StatusSkipped {
		t.Fatalf("expected skipped diarization, got %s", aggregate.Diarization.Status)
	}
	if !aggregate.Cancelled {
		t.Fatal("aggregate not marked cancelled")
	}

	// A late completion for the cancelled stage is dropped.
	completeTranscription(t, f, submitted, []task.Segment{{StartTime: 0, EndTime: 1, Text: "late"}})
	tr, err := f.store.GetTranscription(context.Background(), submitted.Transcription.ID)
	if err != nil {
		t.Fatalf("get transcription: %v", err)
	}
	if tr.Status != task.StatusSkipped {
		t.Fatalf("late event overrode cancellation: %s", tr.Status)
	}
	if got := len(f.bus.named(events.NameTaskReady)); got != 0 {
		t.Fatalf("cancelled task emitted TaskReady %d times", got)
	}

	if err := f.coord.Cancel(context.Background(), submitted.ID); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error cancelling settled task, got %v", err)
	}
}

func TestStageProgressIsStored(t *testing.T) {
	f := newFixture(t)
	submitted := submitValid(t, f, 18)

	report := &events.StageProgress{TaskID: submitted.ID, Stage: "transcription", Percent: 42.5, Message: "aligning"}
	if err := f.coord.HandleStageProgress(context.Background(), report); err != nil {
		t.Fatalf("progress: %v", err)
	}

	stored, ok := f.coord.Progress(submitted.ID)
	if !ok || stored.Percent != 42.5 || stored.Stage != "transcription" {
		t.Fatalf("unexpected progress: %+v ok=%v", stored, ok)
	}
}

func TestRecoverReemitsPendingCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	submitted := submitValid(t, f, 19)

	// Simulate a crash between persisting the transcription row and putting
	// its command on the bus: the row is still pending while the diarization
	// command already reached a worker.
	tr, err := f.store.GetTranscription(ctx, submitted.Transcription.ID)
	if err != nil {
		t.Fatalf("get transcription: %v", err)
	}
	tr.Status = task.StatusPending
	if err := f.store.UpdateTranscription(ctx, tr); err != nil {
		t.Fatalf("reset transcription: %v", err)
	}

	if err := f.coord.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}

	commands := f.bus.named(events.NameTranscriptionRequested)
	if len(commands) != 2 {
		t.Fatalf("expected one recovered transcription command, got %d total", len(commands))
	}
	recovered := commands[len(commands)-1].(*events.TranscriptionRequested)
	if recovered.TaskID != submitted.ID || recovered.Attempt != 0 {
		t.Fatalf("unexpected recovered command: %+v", recovered)
	}

	reloaded, err := f.store.GetTranscription(ctx, tr.ID)
	if err != nil {
		t.Fatalf("get transcription: %v", err)
	}
	if reloaded.Status != task.StatusInProgress {
		t.Fatalf("recovered stage not marked in progress: %s", reloaded.Status)
	}

	// The diarization stage was already dispatched; its worker may still be
	// alive, so recovery must not double it up.
	if got := len(f.bus.named(events.NameDiarizationRequested)); got != 1 {
		t.Fatalf("in-progress diarization re-dispatched, %d commands", got)
	}
}

func TestRecoverFinishesMergeInterruptedByCrash(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	submitted := submitValid(t, f, 21)

	// Both stage results were committed, but the previous run died before the
	// merged transcript was uploaded and TaskReady emitted.
	tr, err := f.store.GetTranscription(ctx, submitted.Transcription.ID)
	if err != nil {
		t.Fatalf("get transcription: %v", err)
	}
	if err := tr.MarkCompleted("en", []task.Segment{{StartTime: 0, EndTime: 2, Text: "hello", Confidence: 0.9}}); err != nil {
		t.Fatalf("complete transcription: %v", err)
	}
	if err := f.store.UpdateTranscription(ctx, tr); err != nil {
		t.Fatalf("update transcription: %v", err)
	}
	d, err := f.store.GetDiarization(ctx, submitted.Diarization.ID)
	if err != nil {
		t.Fatalf("get diarization: %v", err)
	}
	if err := d.MarkCompleted(1, []task.SpeakerSegment{{SpeakerID: 0, StartTime: 0, EndTime: 2, Confidence: 0.7}}); err != nil {
		t.Fatalf("complete diarization: %v", err)
	}
	if err := f.store.UpdateDiarization(ctx, d); err != nil {
		t.Fatalf("update diarization: %v", err)
	}

	if err := f.coord.Recover(ctx); err != nil {
		t.Fatalf("recover: %v", err)
	}

	if got := len(f.bus.named(events.NameTaskReady)); got != 1 {
		t.Fatalf("expected exactly one TaskReady after recovery, got %d", got)
	}
	aggregate, err := f.coord.Task(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("load task: %v", err)
	}
	if aggregate.Audio.ProcessedPath == "" {
		t.Fatal("merged transcript path not recorded")
	}

	raw, err := f.coord.storage.Download(ctx, "tasks/"+submitted.ID+"/merged.json")
	if err != nil {
		t.Fatalf("download merged: %v", err)
	}
	var merged merge.Transcript
	if err := json.Unmarshal(raw, &merged); err != nil {
		t.Fatalf("decode merged: %v", err)
	}
	if len(merged.Segments) != 1 || merged.Segments[0].SpeakerID == nil {
		t.Fatalf("unexpected merged output: %+v", merged.Segments)
	}

	// A second pass sees the recorded merged transcript and stays quiet.
	if err := f.coord.Recover(ctx); err != nil {
		t.Fatalf("second recover: %v", err)
	}
	if got := len(f.bus.named(events.NameTaskReady)); got != 1 {
		t.Fatalf("recovery re-settled a finished task, %d TaskReady events", got)
	}
}

func TestSweepRetriesThenFailsOverdueTranscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.cfg.Pipeline.TranscriptionTimeout = 1
	f.cfg.Pipeline.MaxRetries = 1

	disabled := false
	if _, err := f.coord.users.Update(ctx, 22, users.Fields{DiarizationEnabled: &disabled}); err != nil {
		t.Fatalf("disable diarization: %v", err)
	}
	submitted := submitValid(t, f, 22)

	f.coord.SweepDeadlines(ctx)
	if got := len(f.bus.named(events.NameTranscriptionRequested)); got != 1 {
		t.Fatalf("stage within its deadline was swept, %d commands", got)
	}

	time.Sleep(1200 * time.Millisecond)
	f.coord.SweepDeadlines(ctx)
	commands := f.bus.named(events.NameTranscriptionRequested)
	if len(commands) != 2 {
		t.Fatalf("expected a retry command after the deadline, got %d total", len(commands))
	}
	if retried := commands[1].(*events.TranscriptionRequested); retried.Attempt != 1 {
		t.Fatalf("expected retry attempt 1, got %d", retried.Attempt)
	}

	time.Sleep(1200 * time.Millisecond)
	f.coord.SweepDeadlines(ctx)
	if got := len(f.bus.named(events.NameTranscriptionRequested)); got != 2 {
		t.Fatalf("exhausted stage was re-dispatched, %d commands", got)
	}
	if got := len(f.bus.named(events.NameTaskFailed)); got != 1 {
		t.Fatalf("expected one TaskFailed, got %d", got)
	}

	tr, err := f.store.GetTranscription(ctx, submitted.Transcription.ID)
	if err != nil {
		t.Fatalf("get transcription: %v", err)
	}
	if tr.Status != task.StatusFailed {
		t.Fatalf("expected failed transcription, got %s", tr.Status)
	}
}
