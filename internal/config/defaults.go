package config

// Default returns the built-in configuration values applied before any file
// overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    "~/.local/share/scribe",
			StorageDir: "~/.local/share/scribe/storage",
			LogDir:     "~/.local/share/scribe/logs",
			WorkDir:    "~/.local/share/scribe/work",
		},
		Pipeline: Pipeline{
			MaxRetries:           3,
			TranscriptionTimeout: 1800,
			DiarizationTimeout:   1800,
			ExportTimeout:        120,
			SweepInterval:        30,
			MaxFileSizeMB:        200,
			InprocBusBuffer:      64,
			ShutdownGraceSeconds: 10,
		},
		Transcription: Transcription{
			Model:     "whisper-large-v3",
			VADMethod: "silero",
		},
		Diarization: Diarization{
			Enabled:      true,
			GapThreshold: 1.5,
			MaxSpeakers:  8,
		},
		Export: Export{
			BaseURL: "http://localhost:8000/files",
		},
		NATS: NATS{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "events",
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
