package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"scribe/internal/task"
)

const exportColumns = "id, user_id, task_id, transcription_id, diarization_id, format, status, file_path, file_url, options_json, error_message, attempt, created_at, updated_at, revision"

// SaveExport inserts a new export request record.
func (s *Store) SaveExport(ctx context.Context, e *task.Export) error {
	if e == nil {
		return errors.New("export is nil")
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now
	e.Revision = 1

	options, err := marshalJSON(e.Options)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO exports (`+exportColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.UserID,
		e.TaskID,
		nullableString(e.TranscriptionID),
		nullableString(e.DiarizationID),
		string(e.Format),
		string(e.Status),
		nullableString(e.FilePath),
		nullableString(e.FileURL),
		options,
		nullableString(e.ErrorMessage),
		e.Attempt,
		timestamp(e.CreatedAt),
		timestamp(e.UpdatedAt),
		e.Revision,
	)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	return nil
}

// GetExport fetches an export by identifier. Returns nil when absent.
func (s *Store) GetExport(ctx context.Context, id string) (*task.Export, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+exportColumns+` FROM exports WHERE id = ?`, id)
	e, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get export: %w", err)
	}
	return e, nil
}

// UpdateExport persists changes conditionally on the revision read earlier.
func (s *Store) UpdateExport(ctx context.Context, e *task.Export) error {
	if e == nil {
		return errors.New("export is nil")
	}
	previous := e.Revision
	e.UpdatedAt = time.Now().UTC()

	options, err := marshalJSON(e.Options)
	if err != nil {
		return err
	}
	err = s.casUpdate(
		ctx,
		`UPDATE exports
         SET status = ?, file_path = ?, file_url = ?, options_json = ?, error_message = ?,
             attempt = ?, updated_at = ?, revision = revision + 1
         WHERE id = ? AND revision = ?`,
		string(e.Status),
		nullableString(e.FilePath),
		nullableString(e.FileURL),
		options,
		nullableString(e.ErrorMessage),
		e.Attempt,
		timestamp(e.UpdatedAt),
		e.ID,
		previous,
	)
	if err != nil {
		return err
	}
	e.Revision = previous + 1
	return nil
}

// ListExportsByTask returns the exports requested for one task.
func (s *Store) ListExportsByTask(ctx context.Context, taskID string) ([]*task.Export, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+exportColumns+` FROM exports WHERE task_id = ? ORDER BY created_at`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports by task: %w", err)
	}
	defer rows.Close()
	return collectExports(rows)
}

// ListExportsByUser returns a user's exports ordered by creation time.
func (s *Store) ListExportsByUser(ctx context.Context, userID int64) ([]*task.Export, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+exportColumns+` FROM exports WHERE user_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports by user: %w", err)
	}
	defer rows.Close()
	return collectExports(rows)
}

// ListActiveExports returns exports in non-terminal states.
func (s *Store) ListActiveExports(ctx context.Context) ([]*task.Export, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+exportColumns+` FROM exports WHERE status IN (?, ?) ORDER BY created_at`,
		string(task.StatusPending),
		string(task.StatusInProgress),
	)
	if err != nil {
		return nil, fmt.Errorf("list active exports: %w", err)
	}
	defer rows.Close()
	return collectExports(rows)
}

func collectExports(rows *sql.Rows) ([]*task.Export, error) {
	var results []*task.Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

func scanExport(scanner interface{ Scan(dest ...any) error }) (*task.Export, error) {
	var (
		id         string
		userID     int64
		taskID     string
		trID       sql.NullString
		diarID     sql.NullString
		format     string
		status     string
		filePath   sql.NullString
		fileURL    sql.NullString
		options    sql.NullString
		errMessage sql.NullString
		attempt    int
		createdRaw string
		updatedRaw string
		revision   int64
	)
	if err := scanner.Scan(
		&id, &userID, &taskID, &trID, &diarID, &format, &status,
		&filePath, &fileURL, &options, &errMessage, &attempt,
		&createdRaw, &updatedRaw, &revision,
	); err != nil {
		return nil, err
	}

	e := &task.Export{
		ID:              id,
		UserID:          userID,
		TaskID:          taskID,
		TranscriptionID: trID.String,
		DiarizationID:   diarID.String,
		Format:          task.ExportFormat(format),
		Status:          task.Status(status),
		FilePath:        filePath.String,
		FileURL:         fileURL.String,
		ErrorMessage:    errMessage.String,
		Attempt:         attempt,
		Revision:        revision,
	}
	if err := unmarshalJSON(options, &e.Options); err != nil {
		return nil, err
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		e.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		e.UpdatedAt = updated
	}
	return e, nil
}
