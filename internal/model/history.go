package model

import "time"

// ProcessingRun groups journal entries for later bulk undo. A fresh run is
// created per invocation of the processing pipeline.
type ProcessingRun struct {
	StartedAt time.Time
	ID        string
}

// HistoryRecord is one row of the append-only processing journal: a single
// successfully placed file. UndoneAt is set (never deleted) when the
// placement is reversed, preserving the audit trail.
type HistoryRecord struct {
	ProcessedAt  time.Time
	UndoneAt     *time.Time
	RunID        string
	SourcePath   string
	DestPath     string
	ID           int64
	OriginalSize int64
	FinalSize    int64
	SpaceSaved   int64
}
