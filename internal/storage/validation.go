package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dieseltech/stacks/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidPattern   = errors.New("invalid series pattern")
	ErrInvalidPlacement = errors.New("invalid history record")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateSeriesPattern validates a pattern memory record before saving.
func validateSeriesPattern(p *model.SeriesPattern) error {
	if p == nil {
		return fmt.Errorf("%w: pattern", ErrNilParameter)
	}
	if strings.TrimSpace(p.SeriesName) == "" {
		return fmt.Errorf("%w: series name is required", ErrInvalidPattern)
	}
	if strings.TrimSpace(p.RuleName) == "" {
		return fmt.Errorf("%w: rule name is required", ErrInvalidPattern)
	}
	return nil
}

// validateHistoryRecord validates a journal row before insertion.
func validateHistoryRecord(r *model.HistoryRecord) error {
	if r == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if strings.TrimSpace(r.RunID) == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidPlacement)
	}
	if strings.TrimSpace(r.SourcePath) == "" {
		return fmt.Errorf("%w: source path is required", ErrInvalidPlacement)
	}
	if strings.TrimSpace(r.DestPath) == "" {
		return fmt.Errorf("%w: dest path is required", ErrInvalidPlacement)
	}
	return nil
}
