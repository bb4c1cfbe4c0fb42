package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scribe/internal/task"
)

const transcriptionColumns = "id, audio_file_id, user_id, model, status, language, segments_json, error_message, attempt, created_at, updated_at, revision"

// SaveTranscription inserts a new transcription result record.
func (s *Store) SaveTranscription(ctx context.Context, tr *task.Transcription) error {
	if tr == nil {
		return errors.New("transcription is nil")
	}
	now := time.Now().UTC()
	tr.CreatedAt = now
	tr.UpdatedAt = now
	tr.Revision = 1

	segments, err := marshalJSON(tr.Segments)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO transcriptions (`+transcriptionColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID,
		tr.AudioFileID,
		tr.UserID,
		string(tr.Model),
		string(tr.Status),
		nullableString(tr.Language),
		segments,
		nullableString(tr.ErrorMessage),
		tr.Attempt,
		timestamp(tr.CreatedAt),
		timestamp(tr.UpdatedAt),
		tr.Revision,
	)
	if err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}

// GetTranscription fetches a transcription by identifier. Returns nil when absent.
func (s *Store) GetTranscription(ctx context.Context, id string) (*task.Transcription, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+transcriptionColumns+` FROM transcriptions WHERE id = ?`, id)
	tr, err := scanTranscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcription: %w", err)
	}
	return tr, nil
}

// GetTranscriptionByAudioFile fetches the transcription attached to an audio file.
func (s *Store) GetTranscriptionByAudioFile(ctx context.Context, audioFileID string) (*task.Transcription, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+transcriptionColumns+` FROM transcriptions WHERE audio_file_id = ? ORDER BY created_at LIMIT 1`,
		audioFileID,
	)
	tr, err := scanTranscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transcription by audio file: %w", err)
	}
	return tr, nil
}

// UpdateTranscription persists changes conditionally on the revision read earlier.
func (s *Store) UpdateTranscription(ctx context.Context, tr *task.Transcription) error {
	if tr == nil {
		return errors.New("transcription is nil")
	}
	previous := tr.Revision
	tr.UpdatedAt = time.Now().UTC()

	segments, err := marshalJSON(tr.Segments)
	if err != nil {
		return err
	}
	err = s.casUpdate(
		ctx,
		`UPDATE transcriptions
         SET model = ?, status = ?, language = ?, segments_json = ?, error_message = ?,
             attempt = ?, updated_at = ?, revision = revision + 1
         WHERE id = ? AND revision = ?`,
		string(tr.Model),
		string(tr.Status),
		nullableString(tr.Language),
		segments,
		nullableString(tr.ErrorMessage),
		tr.Attempt,
		timestamp(tr.UpdatedAt),
		tr.ID,
		previous,
	)
	if err != nil {
		return err
	}
	tr.Revision = previous + 1
	return nil
}

// ListTranscriptionsByUser returns a user's transcriptions ordered by creation time.
func (s *Store) ListTranscriptionsByUser(ctx context.Context, userID int64) ([]*task.Transcription, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+transcriptionColumns+` FROM transcriptions WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	defer rows.Close()
	return collectTranscriptions(rows)
}

// ListActiveTranscriptions returns transcriptions in non-terminal states,
// used by the deadline sweep and crash recovery.
func (s *Store) ListActiveTranscriptions(ctx context.Context) ([]*task.Transcription, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+transcriptionColumns+` FROM transcriptions WHERE status IN (?, ?) ORDER BY created_at`,
		string(task.StatusPending),
		string(task.StatusInProgress),
	)
	if err != nil {
		return nil, fmt.Errorf("list active transcriptions: %w", err)
	}
	defer rows.Close()
	return collectTranscriptions(rows)
}

func collectTranscriptions(rows *sql.Rows) ([]*task.Transcription, error) {
	var results []*task.Transcription
	for rows.Next() {
		tr, err := scanTranscription(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, tr)
	}
	return results, rows.Err()
}

func scanTranscription(scanner interface{ Scan(dest ...any) error }) (*task.Transcription, error) {
	var (
		id         string
		audioID    string
		userID     int64
		model      string
		status     string
		language   sql.NullString
		segments   sql.NullString
		errMessage sql.NullString
		attempt    int
		createdRaw string
		updatedRaw string
		revision   int64
	)
	if err := scanner.Scan(
		&id, &audioID, &userID, &model, &status, &language,
		&segments, &errMessage, &attempt, &createdRaw, &updatedRaw, &revision,
	); err != nil {
		return nil, err
	}

	tr := &task.Transcription{
		ID:           id,
		AudioFileID:  audioID,
		UserID:       userID,
		Model:        task.Model(model),
		Status:       task.Status(status),
		Language:     language.String,
		ErrorMessage: errMessage.String,
		Attempt:      attempt,
		Revision:     revision,
	}
	if err := unmarshalJSON(segments, &tr.Segments); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		tr.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		tr.UpdatedAt = updated
	}
	return tr, nil
}
