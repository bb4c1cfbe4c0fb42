package store

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_info (
    version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS audio_files (
    id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL,
    original_filename TEXT,
    format TEXT NOT NULL,
    size_bytes INTEGER NOT NULL,
    duration_seconds REAL,
    path TEXT,
    processed_path TEXT,
    is_valid INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    revision INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_audio_files_user ON audio_files(user_id);

CREATE TABLE IF NOT EXISTS transcriptions (
    id TEXT PRIMARY KEY,
    audio_file_id TEXT NOT NULL,
    user_id INTEGER NOT NULL,
    model TEXT NOT NULL,
    status TEXT NOT NULL,
    language TEXT,
    segments_json TEXT,
    error_message TEXT,
    attempt INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    revision INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_audio ON transcriptions(audio_file_id);
CREATE INDEX IF NOT EXISTS idx_transcriptions_user ON transcriptions(user_id);
CREATE INDEX IF NOT EXISTS idx_transcriptions_status ON transcriptions(status);

CREATE TABLE IF NOT EXISTS diarizations (
    id TEXT PRIMARY KEY,
    audio_file_id TEXT NOT NULL,
    user_id INTEGER NOT NULL,
    status TEXT NOT NULL,
    num_speakers INTEGER,
    segments_json TEXT,
    error_message TEXT,
    attempt INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    revision INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_diarizations_audio ON diarizations(audio_file_id);
CREATE INDEX IF NOT EXISTS idx_diarizations_status ON diarizations(status);

CREATE TABLE IF NOT EXISTS exports (
    id TEXT PRIMARY KEY,
    user_id INTEGER NOT NULL,
    task_id TEXT NOT NULL,
    transcription_id TEXT,
    diarization_id TEXT,
    format TEXT NOT NULL,
    status TEXT NOT NULL,
    file_path TEXT,
    file_url TEXT,
    options_json TEXT,
    error_message TEXT,
    attempt INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    revision INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_exports_task ON exports(task_id);
CREATE INDEX IF NOT EXISTS idx_exports_user ON exports(user_id);
CREATE INDEX IF NOT EXISTS idx_exports_status ON exports(status);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id INTEGER PRIMARY KEY,
    preferred_model TEXT NOT NULL,
    preferred_export_format TEXT NOT NULL,
    auto_detect_language INTEGER NOT NULL DEFAULT 1,
    auto_delete_files INTEGER NOT NULL DEFAULT 1,
    diarization_enabled INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    revision INTEGER NOT NULL DEFAULT 1
);
`
