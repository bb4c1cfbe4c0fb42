package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scribe/internal/task"
)

const audioColumns = "id, user_id, original_filename, format, size_bytes, duration_seconds, path, processed_path, is_valid, error_message, created_at, updated_at, revision"

// SaveAudioFile inserts a newly ingested audio file.
func (s *Store) SaveAudioFile(ctx context.Context, audio *task.AudioFile) error {
	if audio == nil {
		return errors.New("audio file is nil")
	}
	now := time.Now().UTC()
	audio.CreatedAt = now
	audio.UpdatedAt = now
	audio.Revision = 1

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO audio_files (`+audioColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		audio.ID,
		audio.UserID,
		nullableString(audio.OriginalFilename),
		string(audio.Format),
		audio.SizeBytes,
		nullableFloat(audio.DurationSeconds),
		nullableString(audio.Path),
		nullableString(audio.ProcessedPath),
		boolToInt(audio.IsValid),
		nullableString(audio.ErrorMessage),
		timestamp(audio.CreatedAt),
		timestamp(audio.UpdatedAt),
		audio.Revision,
	)
	if err != nil {
		return fmt.Errorf("insert audio file: %w", err)
	}
	return nil
}

// GetAudioFile fetches an audio file by identifier. Returns nil when absent.
func (s *Store) GetAudioFile(ctx context.Context, id string) (*task.AudioFile, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+audioColumns+` FROM audio_files WHERE id = ?`, id)
	audio, err := scanAudioFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get audio file: %w", err)
	}
	return audio, nil
}

// UpdateAudioFile persists changes conditionally on the revision read earlier.
func (s *Store) UpdateAudioFile(ctx context.Context, audio *task.AudioFile) error {
	if audio == nil {
		return errors.New("audio file is nil")
	}
	previous := audio.Revision
	audio.UpdatedAt = time.Now().UTC()

	err := s.casUpdate(
		ctx,
		`UPDATE audio_files
         SET original_filename = ?, format = ?, size_bytes = ?, duration_seconds = ?,
             path = ?, processed_path = ?, is_valid = ?, error_message = ?,
             updated_at = ?, revision = revision + 1
         WHERE id = ? AND revision = ?`,
		nullableString(audio.OriginalFilename),
		string(audio.Format),
		audio.SizeBytes,
		nullableFloat(audio.DurationSeconds),
		nullableString(audio.Path),
		nullableString(audio.ProcessedPath),
		boolToInt(audio.IsValid),
		nullableString(audio.ErrorMessage),
		timestamp(audio.UpdatedAt),
		audio.ID,
		previous,
	)
	if err != nil {
		return err
	}
	audio.Revision = previous + 1
	return nil
}

// ListAudioFilesByUser returns a user's audio files ordered by creation time.
func (s *Store) ListAudioFilesByUser(ctx context.Context, userID int64) ([]*task.AudioFile, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+audioColumns+` FROM audio_files WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audio files: %w", err)
	}
	defer rows.Close()
	return collectAudioFiles(rows)
}

// ListAudioFiles returns every audio file ordered by creation time.
func (s *Store) ListAudioFiles(ctx context.Context) ([]*task.AudioFile, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+audioColumns+` FROM audio_files ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list audio files: %w", err)
	}
	defer rows.Close()
	return collectAudioFiles(rows)
}

// ListUnprocessedAudioFiles returns valid audio files that have no merged
// transcript recorded yet, ordered by creation time.
func (s *Store) ListUnprocessedAudioFiles(ctx context.Context) ([]*task.AudioFile, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+audioColumns+` FROM audio_files
         WHERE is_valid = 1 AND (processed_path IS NULL OR processed_path = '')
         ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list unprocessed audio files: %w", err)
	}
	defer rows.Close()
	return collectAudioFiles(rows)
}

// DeleteAudioFile removes an audio file row.
func (s *Store) DeleteAudioFile(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM audio_files WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete audio file: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func collectAudioFiles(rows *sql.Rows) ([]*task.AudioFile, error) {
	var files []*task.AudioFile
	for rows.Next() {
		audio, err := scanAudioFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, audio)
	}
	return files, rows.Err()
}

func scanAudioFile(scanner interface{ Scan(dest ...any) error }) (*task.AudioFile, error) {
	var (
		id         string
		userID     int64
		filename   sql.NullString
		format     string
		sizeBytes  int64
		duration   sql.NullFloat64
		path       sql.NullString
		processed  sql.NullString
		isValid    int
		errMessage sql.NullString
		createdRaw string
		updatedRaw string
		revision   int64
	)
	if err := scanner.Scan(
		&id, &userID, &filename, &format, &sizeBytes, &duration,
		&path, &processed, &isValid, &errMessage, &createdRaw, &updatedRaw, &revision,
	); err != nil {
		return nil, err
	}

	audio := &task.AudioFile{
		ID:               id,
		UserID:           userID,
		OriginalFilename: filename.String,
		Format:           task.AudioFormat(format),
		SizeBytes:        sizeBytes,
		DurationSeconds:  duration.Float64,
		Path:             path.String,
		ProcessedPath:    processed.String,
		IsValid:          isValid != 0,
		ErrorMessage:     errMessage.String,
		Revision:         revision,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		audio.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		audio.UpdatedAt = updated
	}
	return audio, nil
}
