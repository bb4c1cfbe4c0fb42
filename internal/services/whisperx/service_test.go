package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/services"
	"scribe/internal/task"
	"scribe/internal/worker"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.mp3")
	if err := os.WriteFile(path, []byte("fake audio"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestTranscribeParsesWhisperXOutput(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()}, "")
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name == FFmpegCommand {
			return nil
		}
		// Find the output dir and drop a WhisperX-style result in it.
		for i, arg := range args {
			if arg == "--output_dir" {
				result := `{"language":"en","segments":[
					{"text":" Hello. ","start":0,"end":2.5,"confidence":0.95},
					{"text":"","start":2.5,"end":3},
					{"text":"World.","start":3,"end":3,"confidence":0.5},
					{"text":"Again.","start":3,"end":4.5,"confidence":0.9}
				]}`
				return os.WriteFile(filepath.Join(args[i+1], "input.json"), []byte(result), 0o644)
			}
		}
		return errors.New("no output dir in args")
	})

	result, err := svc.Transcribe(context.Background(), worker.TranscribeRequest{
		AudioPath: writeAudioFixture(t),
		Model:     task.ModelWhisperLargeV3,
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if result.Language != "en" {
		t.Fatalf("expected language en, got %q", result.Language)
	}
	// Empty text and zero-length segments are dropped.
	if len(result.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(result.Segments), result.Segments)
	}
	if result.Segments[0].Text != "Hello." || result.Segments[0].EndTime != 2.5 {
		t.Fatalf("unexpected first segment: %+v", result.Segments[0])
	}
}

func TestTranscribeMissingAudioIsPermanent(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()}, "")

	_, err := svc.Transcribe(context.Background(), worker.TranscribeRequest{
		AudioPath: filepath.Join(t.TempDir(), "nope.mp3"),
	})
	if !errors.Is(err, services.ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestTranscribeRunFailureIsTransient(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()}, "")
	svc.WithCommandRunner(func(_ context.Context, name string, _ ...string) error {
		if name == FFmpegCommand {
			return nil
		}
		return errors.New("uvx: exit status 1")
	})

	_, err := svc.Transcribe(context.Background(), worker.TranscribeRequest{
		AudioPath: writeAudioFixture(t),
	})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestBuildArgsModelAndLanguage(t *testing.T) {
	svc := NewService(Config{}, "")

	args := svc.buildArgs("in.wav", "out", worker.TranscribeRequest{
		Model:    task.ModelWhisperTurbo,
		Language: "de",
	})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--model large-v3-turbo") {
		t.Fatalf("model flag missing: %s", joined)
	}
	if !strings.Contains(joined, "--language de") {
		t.Fatalf("language flag missing: %s", joined)
	}
	if !strings.Contains(joined, "--device cpu") {
		t.Fatalf("cpu device flag missing: %s", joined)
	}

	auto := svc.buildArgs("in.wav", "out", worker.TranscribeRequest{
		Model:              task.ModelWhisperLargeV3,
		Language:           "de",
		AutoDetectLanguage: true,
	})
	if strings.Contains(strings.Join(auto, " "), "--language") {
		t.Fatal("auto-detect must omit the language flag")
	}
}

func TestBuildArgsCUDA(t *testing.T) {
	svc := NewService(Config{CUDAEnabled: true, VADMethod: VADMethodPyannote, HFToken: "hf_x"}, "")

	joined := strings.Join(svc.buildArgs("in.wav", "out", worker.TranscribeRequest{}), " ")
	if !strings.Contains(joined, "--device cuda") {
		t.Fatalf("cuda device flag missing: %s", joined)
	}
	if !strings.Contains(joined, "--hf_token hf_x") {
		t.Fatalf("hf token missing for pyannote: %s", joined)
	}
}
