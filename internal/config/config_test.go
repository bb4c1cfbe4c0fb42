package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[pipeline]
max_retries = 5
max_file_size_mb = 50

[transcription]
model = "whisper-turbo"

[nats]
enabled = true
url = "nats://nats.example:4222"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Pipeline.MaxRetries != 5 {
		t.Fatalf("max_retries = %d, want 5", cfg.Pipeline.MaxRetries)
	}
	if cfg.Pipeline.MaxFileSizeMB != 50 {
		t.Fatalf("max_file_size_mb = %d, want 50", cfg.Pipeline.MaxFileSizeMB)
	}
	if cfg.Transcription.Model != "whisper-turbo" {
		t.Fatalf("model = %q, want whisper-turbo", cfg.Transcription.Model)
	}
	if cfg.Pipeline.SweepInterval != 30 {
		t.Fatalf("sweep_interval default lost, got %d", cfg.Pipeline.SweepInterval)
	}
}

func TestLoadRejectsUnknownModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[transcription]\nmodel = \"wav2vec\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "transcription.model") {
		t.Fatalf("expected model validation error, got %v", err)
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.TranscriptionTimeout = 0
	cfg.Pipeline.SweepInterval = -1
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(err.Error(), "transcription_timeout") || !strings.Contains(err.Error(), "sweep_interval") {
		t.Fatalf("expected both problems reported, got %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.StorageDir = filepath.Join(dir, "storage")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.WorkDir = filepath.Join(dir, "work")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, p := range []string{cfg.Paths.DataDir, cfg.Paths.StorageDir, cfg.Paths.LogDir, cfg.Paths.WorkDir} {
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s, err=%v", p, err)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("first WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error when sample already exists")
	}
}
