package config

import (
	"errors"
	"fmt"
	"strings"
)

var supportedModels = map[string]struct{}{
	"whisper-large-v3": {},
	"whisper-turbo":    {},
}

// Validate checks configuration invariants and collects every violation.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.StorageDir) == "" {
		problems = append(problems, "paths.storage_dir must not be empty")
	}
	if c.Pipeline.MaxRetries < 0 {
		problems = append(problems, "pipeline.max_retries must not be negative")
	}
	if c.Pipeline.TranscriptionTimeout <= 0 {
		problems = append(problems, "pipeline.transcription_timeout must be positive")
	}
	if c.Pipeline.DiarizationTimeout <= 0 {
		problems = append(problems, "pipeline.diarization_timeout must be positive")
	}
	if c.Pipeline.ExportTimeout <= 0 {
		problems = append(problems, "pipeline.export_timeout must be positive")
	}
	if c.Pipeline.SweepInterval <= 0 {
		problems = append(problems, "pipeline.sweep_interval must be positive")
	}
	if c.Pipeline.MaxFileSizeMB <= 0 {
		problems = append(problems, "pipeline.max_file_size_mb must be positive")
	}
	if _, ok := supportedModels[c.Transcription.Model]; !ok {
		problems = append(problems, fmt.Sprintf("transcription.model %q is not supported", c.Transcription.Model))
	}
	if c.Diarization.GapThreshold <= 0 {
		problems = append(problems, "diarization.gap_threshold must be positive")
	}
	if c.NATS.Enabled && strings.TrimSpace(c.NATS.URL) == "" {
		problems = append(problems, "nats.url must be set when nats.enabled is true")
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration: " + strings.Join(problems, "; "))
}
