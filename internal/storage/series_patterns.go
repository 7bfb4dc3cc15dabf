package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dieseltech/stacks/internal/common"
	"github.com/dieseltech/stacks/internal/model"
)

// SaveSeriesPattern inserts or updates the pattern memory record for a series.
func (s *SQLiteStorage) SaveSeriesPattern(ctx context.Context, p *model.SeriesPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSeriesPattern(p); err != nil {
		return err
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.LastUsedAt.IsZero() {
		p.LastUsedAt = now
	}

	extraction, err := json.Marshal(p.Extraction)
	if err != nil {
		return fmt.Errorf("failed to serialize extraction: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO series_patterns (series_name, rule_name, is_manual, extraction, created_at, last_used_at, use_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(series_name) DO UPDATE SET
			rule_name = excluded.rule_name,
			is_manual = excluded.is_manual,
			extraction = excluded.extraction,
			last_used_at = excluded.last_used_at,
			use_count = series_patterns.use_count + 1
	`, p.SeriesName, p.RuleName, p.IsManual, string(extraction), p.CreatedAt, p.LastUsedAt, p.UseCount)

	if err != nil {
		return fmt.Errorf("failed to save series pattern: %w", err)
	}

	return nil
}

// GetSeriesPattern retrieves the pattern memory record for an exact series name.
func (s *SQLiteStorage) GetSeriesPattern(ctx context.Context, seriesName string) (*model.SeriesPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(seriesName, "seriesName"); err != nil {
		return nil, err
	}

	return s.scanSeriesPattern(s.db.QueryRowContext(ctx, `
		SELECT series_name, rule_name, is_manual, extraction, created_at, last_used_at, use_count
		FROM series_patterns
		WHERE series_name = ?
	`, seriesName))
}

// FindSeriesPattern retrieves the record for a series by exact match, falling
// back to the longest remembered series name that prefixes the given one.
func (s *SQLiteStorage) FindSeriesPattern(ctx context.Context, seriesName string) (*model.SeriesPattern, error) {
	p, err := s.GetSeriesPattern(ctx, seriesName)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	return s.scanSeriesPattern(s.db.QueryRowContext(ctx, `
		SELECT series_name, rule_name, is_manual, extraction, created_at, last_used_at, use_count
		FROM series_patterns
		WHERE ? LIKE series_name || '%'
		ORDER BY LENGTH(series_name) DESC
		LIMIT 1
	`, seriesName))
}

// TouchSeriesPattern bumps the usage counter and last-used timestamp.
func (s *SQLiteStorage) TouchSeriesPattern(ctx context.Context, seriesName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(seriesName, "seriesName"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE series_patterns
		SET use_count = use_count + 1, last_used_at = ?
		WHERE series_name = ?
	`, time.Now(), seriesName)
	if err != nil {
		return fmt.Errorf("failed to touch series pattern: %w", err)
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

// ListSeriesPatterns returns all remembered series patterns ordered by name.
func (s *SQLiteStorage) ListSeriesPatterns(ctx context.Context) ([]model.SeriesPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT series_name, rule_name, is_manual, extraction, created_at, last_used_at, use_count
		FROM series_patterns
		ORDER BY series_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query series patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.SeriesPattern
	for rows.Next() {
		p, scanErr := s.scanSeriesPattern(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		patterns = append(patterns, *p)
	}

	return patterns, rows.Err()
}

// DeleteSeriesPattern removes a remembered series pattern. This is the only
// way records leave the store; nothing deletes them automatically.
func (s *SQLiteStorage) DeleteSeriesPattern(ctx context.Context, seriesName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(seriesName, "seriesName"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM series_patterns WHERE series_name = ?
	`, seriesName)
	if err != nil {
		return fmt.Errorf("failed to delete series pattern: %w", err)
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

// rowScanner abstracts *sql.Row and *sql.Rows for the shared scan path.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStorage) scanSeriesPattern(row rowScanner) (*model.SeriesPattern, error) {
	var p model.SeriesPattern
	var extraction string

	err := row.Scan(
		&p.SeriesName,
		&p.RuleName,
		&p.IsManual,
		&extraction,
		&p.CreatedAt,
		&p.LastUsedAt,
		&p.UseCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan series pattern: %w", err)
	}

	if err := json.Unmarshal([]byte(extraction), &p.Extraction); err != nil {
		return nil, fmt.Errorf("%w: bad extraction payload for %s: %v", common.ErrDatabaseCorrupted, p.SeriesName, err)
	}

	return &p, nil
}
