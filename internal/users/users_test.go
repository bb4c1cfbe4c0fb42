package users

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"scribe/internal/services"
	"scribe/internal/store"
	"scribe/internal/task"
)

func newTestService(t *testing.T, defaultModel task.Model) *Service {
	t.Helper()
	st, err := store.OpenPath(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, defaultModel, nil)
}

func TestGetOrCreateDefaultCreatesOnFirstAccess(t *testing.T) {
	svc := newTestService(t, "")
	ctx := context.Background()

	settings, err := svc.GetOrCreateDefault(ctx, 100)
	if err != nil {
		t.Fatalf("first access: %v", err)
	}
	if settings.PreferredModel != task.ModelWhisperLargeV3 {
		t.Fatalf("expected default model, got %s", settings.PreferredModel)
	}
	if !settings.DiarizationEnabled || !settings.AutoDetectLanguage || !settings.AutoDeleteFiles {
		t.Fatalf("expected default toggles on: %+v", settings)
	}

	again, err := svc.GetOrCreateDefault(ctx, 100)
	if err != nil {
		t.Fatalf("second access: %v", err)
	}
	if again.Revision != settings.Revision {
		t.Fatalf("second access created a new row: rev %d vs %d", again.Revision, settings.Revision)
	}
}

func TestConfiguredModelSeedsNewSettings(t *testing.T) {
	svc := newTestService(t, task.ModelWhisperTurbo)
	ctx := context.Background()

	settings, err := svc.GetOrCreateDefault(ctx, 101)
	if err != nil {
		t.Fatalf("first access: %v", err)
	}
	if settings.PreferredModel != task.ModelWhisperTurbo {
		t.Fatalf("expected configured model, got %s", settings.PreferredModel)
	}

	// An explicit per-user choice is never overridden by the service default.
	preferred := task.ModelWhisperLargeV3
	updated, err := svc.Update(ctx, 101, Fields{PreferredModel: &preferred})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PreferredModel != task.ModelWhisperLargeV3 {
		t.Fatalf("expected user choice kept, got %s", updated.PreferredModel)
	}
}

func TestUnknownConfiguredModelFallsBackToDefault(t *testing.T) {
	svc := newTestService(t, task.Model("whisper-nano"))

	settings, err := svc.GetOrCreateDefault(context.Background(), 102)
	if err != nil {
		t.Fatalf("first access: %v", err)
	}
	if settings.PreferredModel != task.ModelWhisperLargeV3 {
		t.Fatalf("expected built-in default, got %s", settings.PreferredModel)
	}
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	svc := newTestService(t, "")
	ctx := context.Background()

	disabled := false
	format := task.ExportSRT
	updated, err := svc.Update(ctx, 200, Fields{
		DiarizationEnabled:    &disabled,
		PreferredExportFormat: &format,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DiarizationEnabled {
		t.Fatal("expected diarization disabled")
	}
	if updated.PreferredExportFormat != task.ExportSRT {
		t.Fatalf("expected srt, got %s", updated.PreferredExportFormat)
	}
	if updated.PreferredModel != task.ModelWhisperLargeV3 {
		t.Fatalf("untouched field changed: %s", updated.PreferredModel)
	}
	if !updated.AutoDetectLanguage {
		t.Fatal("untouched toggle changed")
	}
}

func TestUpdateRejectsUnknownModel(t *testing.T) {
	svc := newTestService(t, "")

	bogus := task.Model("whisper-nano")
	_, err := svc.Update(context.Background(), 300, Fields{PreferredModel: &bogus})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateRejectsUnknownExportFormat(t *testing.T) {
	svc := newTestService(t, "")

	bogus := task.ExportFormat("pdf")
	_, err := svc.Update(context.Background(), 300, Fields{PreferredExportFormat: &bogus})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
