// Package diarize provides a silence-gap speaker diarizer. It runs ffmpeg's
// silencedetect filter over the audio and treats every silence longer than
// the configured gap threshold as a speaker turn, cycling through anonymous
// speaker ids. It is a heuristic, not a clustering model: adjacent turns get
// different ids even when the same person keeps talking.
package diarize

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"scribe/internal/services"
	"scribe/internal/task"
	"scribe/internal/worker"
)

// Config captures runtime settings for diarization runs.
type Config struct {
	// GapThreshold is the minimum silence length, in seconds, that counts
	// as a speaker turn.
	GapThreshold float64
	// MaxSpeakers caps how many distinct speaker ids are assigned.
	MaxSpeakers int
	// FFmpegBinary overrides the ffmpeg command name.
	FFmpegBinary string
}

const (
	defaultGapThreshold = 1.5
	defaultMaxSpeakers  = 8
	silenceNoiseFloor   = "-30dB"
)

// Service runs silence-gap diarization. It implements worker.Diarizer.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) (string, error)
}

// NewService creates a diarization service.
func NewService(cfg Config) *Service {
	if cfg.GapThreshold <= 0 {
		cfg.GapThreshold = defaultGapThreshold
	}
	if cfg.MaxSpeakers <= 0 {
		cfg.MaxSpeakers = defaultMaxSpeakers
	}
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) (string, error)) {
	s.commandRunner = runner
}

// Diarize detects silence gaps in the audio and attributes the speech ranges
// between them to alternating speakers.
func (s *Service) Diarize(ctx context.Context, req worker.DiarizeRequest) (worker.DiarizeResult, error) {
	var result worker.DiarizeResult

	if req.AudioPath == "" {
		return result, services.Wrap(services.ErrPermanent, "diarize", "run", "audio path required", nil)
	}

	output, err := s.run(ctx, req.AudioPath)
	if err != nil {
		if ctx.Err() != nil {
			return result, services.Wrap(services.ErrTransient, "diarize", "run", "run cancelled", ctx.Err())
		}
		return result, services.Wrap(services.ErrTransient, "diarize", "run", "silence detection failed", err)
	}

	duration, silences := parseSilenceOutput(output)
	if duration <= 0 {
		return result, services.Wrap(services.ErrPermanent, "diarize", "run", "could not determine audio duration", nil)
	}

	maxSpeakers := s.cfg.MaxSpeakers
	if req.NumSpeakers > 0 && req.NumSpeakers < maxSpeakers {
		maxSpeakers = req.NumSpeakers
	}

	result.Segments = assignSpeakers(speechRanges(duration, silences), maxSpeakers)
	result.NumSpeakers = countSpeakers(result.Segments)
	return result, nil
}

func (s *Service) run(ctx context.Context, audioPath string) (string, error) {
	args := []string{
		"-hide_banner",
		"-i", audioPath,
		"-af", fmt.Sprintf("silencedetect=noise=%s:d=%.2f", silenceNoiseFloor, s.cfg.GapThreshold),
		"-f", "null",
		"-",
	}
	if s.commandRunner != nil {
		return s.commandRunner(ctx, s.cfg.FFmpegBinary, args...)
	}

	cmd := exec.CommandContext(ctx, s.cfg.FFmpegBinary, args...) //nolint:gosec
	// silencedetect reports on stderr.
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg silencedetect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

type interval struct {
	start float64
	end   float64
}

// parseSilenceOutput extracts the stream duration and the detected silence
// intervals from ffmpeg output.
func parseSilenceOutput(output string) (float64, []interval) {
	var (
		duration float64
		silences []interval
		current  *interval
	)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Duration:"):
			if parsed, ok := parseClock(firstField(strings.TrimPrefix(line, "Duration:"))); ok {
				duration = parsed
			}
		case strings.Contains(line, "silence_start:"):
			if value, ok := parseFloatAfter(line, "silence_start:"); ok {
				current = &interval{start: value}
			}
		case strings.Contains(line, "silence_end:"):
			if current == nil {
				continue
			}
			if value, ok := parseFloatAfter(line, "silence_end:"); ok {
				current.end = value
				silences = append(silences, *current)
			}
			current = nil
		}
	}
	// A silence still open at EOF runs to the end of the stream.
	if current != nil && duration > current.start {
		current.end = duration
		silences = append(silences, *current)
	}
	return duration, silences
}

func firstField(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ", "); idx >= 0 {
		return s[:idx]
	}
	return s
}

// parseClock parses ffmpeg's HH:MM:SS.cc duration format.
func parseClock(value string) (float64, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return hours*3600 + minutes*60 + seconds, true
}

func parseFloatAfter(line, marker string) (float64, bool) {
	idx := strings.Index(line, marker)
	if idx < 0 {
		return 0, false
	}
	value, err := strconv.ParseFloat(firstField(line[idx+len(marker):]), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// speechRanges returns the complement of the silence intervals over
// [0, duration).
func speechRanges(duration float64, silences []interval) []interval {
	var speech []interval
	cursor := 0.0
	for _, silence := range silences {
		if silence.start > cursor {
			speech = append(speech, interval{start: cursor, end: silence.start})
		}
		if silence.end > cursor {
			cursor = silence.end
		}
	}
	if cursor < duration {
		speech = append(speech, interval{start: cursor, end: duration})
	}
	return speech
}

func assignSpeakers(speech []interval, maxSpeakers int) []task.SpeakerSegment {
	segments := make([]task.SpeakerSegment, 0, len(speech))
	for i, rng := range speech {
		segments = append(segments, task.SpeakerSegment{
			SpeakerID:  i % maxSpeakers,
			StartTime:  rng.start,
			EndTime:    rng.end,
			Confidence: 0.5,
		})
	}
	return segments
}

func countSpeakers(segments []task.SpeakerSegment) int {
	seen := make(map[int]struct{}, len(segments))
	for _, seg := range segments {
		seen[seg.SpeakerID] = struct{}{}
	}
	return len(seen)
}
