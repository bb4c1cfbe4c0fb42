// Package whisperx shells out to WhisperX (via uvx) for transcription. Audio
// is first converted to mono 16kHz WAV with ffmpeg.
package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"scribe/internal/services"
	"scribe/internal/task"
	"scribe/internal/worker"
)

// Service provides WhisperX transcription. It implements worker.Transcriber.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, ffmpegBinary string) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Transcribe converts the audio at req.AudioPath into timed text segments.
func (s *Service) Transcribe(ctx context.Context, req worker.TranscribeRequest) (worker.TranscribeResult, error) {
	var result worker.TranscribeResult

	if req.AudioPath == "" {
		return result, services.Wrap(services.ErrPermanent, "whisperx", "transcribe", "audio path required", nil)
	}
	if _, err := os.Stat(req.AudioPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, services.Wrap(services.ErrPermanent, "whisperx", "transcribe", "audio file missing", err)
		}
		return result, services.Wrap(services.ErrTransient, "whisperx", "transcribe", "stat audio", err)
	}

	workDir, err := os.MkdirTemp(s.cfg.WorkDir, "whisperx-*")
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "whisperx", "transcribe", "create work dir", err)
	}
	defer os.RemoveAll(workDir)

	wavPath := filepath.Join(workDir, "input.wav")
	if err := s.extract(ctx, req.AudioPath, wavPath); err != nil {
		return result, services.Wrap(services.ErrPermanent, "whisperx", "extract", "audio conversion failed", err)
	}

	args := s.buildArgs(wavPath, workDir, req)
	if err := s.run(ctx, UVXCommand, args...); err != nil {
		if ctx.Err() != nil {
			return result, services.Wrap(services.ErrTransient, "whisperx", "transcribe", "run cancelled", ctx.Err())
		}
		return result, services.Wrap(services.ErrTransient, "whisperx", "transcribe", "whisperx run failed", err)
	}

	jsonPath := filepath.Join(workDir, "input.json")
	payload, err := loadPayload(jsonPath)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "whisperx", "transcribe", "read output", err)
	}

	result.Language = payload.Language
	result.Segments = payload.segments()
	return result, nil
}

func (s *Service) extract(ctx context.Context, source, dest string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, s.ffmpegBinary, buildFFmpegExtractArgs(source, dest)...)
	}
	return ExtractAudio(ctx, s.ffmpegBinary, source, dest)
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking
	// WhisperX/pyannote checkpoint loading. Force legacy behavior.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string, req worker.TranscribeRequest) []string {
	args := make([]string, 0, 32)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", modelName(req.Model),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--best_of", BestOf,
		"--temperature", Temperature,
		"--patience", Patience,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if req.Language != "" && !req.AutoDetectLanguage {
		args = append(args, "--language", req.Language)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// payloadSegment is one transcribed segment from WhisperX JSON output.
type payloadSegment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// payload is the JSON structure WhisperX writes.
type payload struct {
	Language string           `json:"language"`
	Segments []payloadSegment `json:"segments"`
}

func (p payload) segments() []task.Segment {
	segments := make([]task.Segment, 0, len(p.Segments))
	for _, seg := range p.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.Start >= seg.End {
			continue
		}
		segments = append(segments, task.Segment{
			StartTime:  seg.Start,
			EndTime:    seg.End,
			Text:       text,
			Confidence: seg.Confidence,
		})
	}
	return segments
}

func loadPayload(jsonPath string) (payload, error) {
	var p payload
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse whisperx json: %w", err)
	}
	return p, nil
}
