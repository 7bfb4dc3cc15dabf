package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dieseltech/stacks/internal/common"
	"github.com/dieseltech/stacks/internal/model"
)

// StartRun registers a fresh processing run and returns it. Journal entries
// created during the run reference its id for later bulk undo.
func (s *SQLiteStorage) StartRun(ctx context.Context) (model.ProcessingRun, error) {
	if err := validateContext(ctx); err != nil {
		return model.ProcessingRun{}, err
	}

	run := model.ProcessingRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at) VALUES (?, ?)
	`, run.ID, run.StartedAt)
	if err != nil {
		return model.ProcessingRun{}, fmt.Errorf("failed to start run: %w", err)
	}

	return run, nil
}

// RecordPlacement appends one journal row for a successfully placed file.
// The row is committed immediately; journal writes are never batched so a
// process abort cannot lose confirmed placements.
func (s *SQLiteStorage) RecordPlacement(ctx context.Context, r *model.HistoryRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateHistoryRecord(r); err != nil {
		return err
	}

	if r.ProcessedAt.IsZero() {
		r.ProcessedAt = time.Now()
	}
	r.SpaceSaved = r.OriginalSize - r.FinalSize

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_history (run_id, source_path, dest_path, original_size, final_size, space_saved, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.RunID, r.SourcePath, r.DestPath, r.OriginalSize, r.FinalSize, r.SpaceSaved, r.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to record placement: %w", err)
	}

	r.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get record id: %w", err)
	}
	return nil
}

// GetRunHistory returns all journal rows for a run, oldest first.
func (s *SQLiteStorage) GetRunHistory(ctx context.Context, runID string) ([]model.HistoryRecord, error) {
	return s.queryHistory(ctx, `
		SELECT id, run_id, source_path, dest_path, original_size, final_size, space_saved, processed_at, undone_at
		FROM processing_history
		WHERE run_id = ?
		ORDER BY id
	`, runID)
}

// GetUndoableHistory returns the journal rows for a run that have not been
// reversed yet.
func (s *SQLiteStorage) GetUndoableHistory(ctx context.Context, runID string) ([]model.HistoryRecord, error) {
	return s.queryHistory(ctx, `
		SELECT id, run_id, source_path, dest_path, original_size, final_size, space_saved, processed_at, undone_at
		FROM processing_history
		WHERE run_id = ? AND undone_at IS NULL
		ORDER BY id
	`, runID)
}

func (s *SQLiteStorage) queryHistory(ctx context.Context, query, runID string) ([]model.HistoryRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.HistoryRecord
	for rows.Next() {
		var r model.HistoryRecord
		var undoneAt sql.NullTime
		err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.SourcePath,
			&r.DestPath,
			&r.OriginalSize,
			&r.FinalSize,
			&r.SpaceSaved,
			&r.ProcessedAt,
			&undoneAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		if undoneAt.Valid {
			t := undoneAt.Time
			r.UndoneAt = &t
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// MarkUndone stamps a journal row as reversed. The row itself is never
// deleted; the journal is an audit trail.
func (s *SQLiteStorage) MarkUndone(ctx context.Context, id int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE processing_history SET undone_at = ? WHERE id = ? AND undone_at IS NULL
	`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark record undone: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// LatestRunID returns the id of the most recently started run.
func (s *SQLiteStorage) LatestRunID(ctx context.Context) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs ORDER BY started_at DESC LIMIT 1
	`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	return id, nil
}

// RunSummary aggregates a run's journal for operator-facing listings.
type RunSummary struct {
	Run        model.ProcessingRun
	Placed     int
	Undone     int
	SpaceSaved int64
}

// ListRuns returns every recorded run, newest first, with journal aggregates.
func (s *SQLiteStorage) ListRuns(ctx context.Context) ([]RunSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.started_at,
			COUNT(h.id),
			COALESCE(SUM(CASE WHEN h.undone_at IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(h.space_saved), 0)
		FROM runs r
		LEFT JOIN processing_history h ON h.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []RunSummary
	for rows.Next() {
		var rs RunSummary
		if err := rows.Scan(&rs.Run.ID, &rs.Run.StartedAt, &rs.Placed, &rs.Undone, &rs.SpaceSaved); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		summaries = append(summaries, rs)
	}

	return summaries, rows.Err()
}
