package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scribe/internal/task"
)

const diarizationColumns = "id, audio_file_id, user_id, status, num_speakers, segments_json, error_message, attempt, created_at, updated_at, revision"

// SaveDiarization inserts a new diarization result record.
func (s *Store) SaveDiarization(ctx context.Context, d *task.Diarization) error {
	if d == nil {
		return errors.New("diarization is nil")
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.Revision = 1

	segments, err := marshalJSON(d.Segments)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO diarizations (`+diarizationColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.AudioFileID,
		d.UserID,
		string(d.Status),
		nullableInt(d.NumSpeakers),
		segments,
		nullableString(d.ErrorMessage),
		d.Attempt,
		timestamp(d.CreatedAt),
		timestamp(d.UpdatedAt),
		d.Revision,
	)
	if err != nil {
		return fmt.Errorf("insert diarization: %w", err)
	}
	return nil
}

// GetDiarization fetches a diarization by identifier. Returns nil when absent.
func (s *Store) GetDiarization(ctx context.Context, id string) (*task.Diarization, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+diarizationColumns+` FROM diarizations WHERE id = ?`, id)
	d, err := scanDiarization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get diarization: %w", err)
	}
	return d, nil
}

// GetDiarizationByAudioFile fetches the diarization attached to an audio file.
func (s *Store) GetDiarizationByAudioFile(ctx context.Context, audioFileID string) (*task.Diarization, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+diarizationColumns+` FROM diarizations WHERE audio_file_id = ? ORDER BY created_at LIMIT 1`,
		audioFileID,
	)
	d, err := scanDiarization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get diarization by audio file: %w", err)
	}
	return d, nil
}

// UpdateDiarization persists changes conditionally on the revision read earlier.
func (s *Store) UpdateDiarization(ctx context.Context, d *task.Diarization) error {
	if d == nil {
		return errors.New("diarization is nil")
	}
	previous := d.Revision
	d.UpdatedAt = time.Now().UTC()

	segments, err := marshalJSON(d.Segments)
	if err != nil {
		return err
	}
	err = s.casUpdate(
		ctx,
		`UPDATE diarizations
         SET status = ?, num_speakers = ?, segments_json = ?, error_message = ?,
             attempt = ?, updated_at = ?, revision = revision + 1
         WHERE id = ? AND revision = ?`,
		string(d.Status),
		nullableInt(d.NumSpeakers),
		segments,
		nullableString(d.ErrorMessage),
		d.Attempt,
		timestamp(d.UpdatedAt),
		d.ID,
		previous,
	)
	if err != nil {
		return err
	}
	d.Revision = previous + 1
	return nil
}

// ListActiveDiarizations returns diarizations in non-terminal states.
func (s *Store) ListActiveDiarizations(ctx context.Context) ([]*task.Diarization, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+diarizationColumns+` FROM diarizations WHERE status IN (?, ?) ORDER BY created_at`,
		string(task.StatusPending),
		string(task.StatusInProgress),
	)
	if err != nil {
		return nil, fmt.Errorf("list active diarizations: %w", err)
	}
	defer rows.Close()

	var results []*task.Diarization
	for rows.Next() {
		d, err := scanDiarization(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

func scanDiarization(scanner interface{ Scan(dest ...any) error }) (*task.Diarization, error) {
	var (
		id         string
		audioID    string
		userID     int64
		status     string
		speakers   sql.NullInt64
		segments   sql.NullString
		errMessage sql.NullString
		attempt    int
		createdRaw string
		updatedRaw string
		revision   int64
	)
	if err := scanner.Scan(
		&id, &audioID, &userID, &status, &speakers,
		&segments, &errMessage, &attempt, &createdRaw, &updatedRaw, &revision,
	); err != nil {
		return nil, err
	}

	d := &task.Diarization{
		ID:           id,
		AudioFileID:  audioID,
		UserID:       userID,
		Status:       task.Status(status),
		NumSpeakers:  int(speakers.Int64),
		ErrorMessage: errMessage.String,
		Attempt:      attempt,
		Revision:     revision,
	}
	if err := unmarshalJSON(segments, &d.Segments); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		d.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		d.UpdatedAt = updated
	}
	return d, nil
}
