package library

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dieseltech/stacks/internal/model"
)

// UndoStore is the journal access the undoer needs. Implemented by
// storage.SQLiteStorage.
type UndoStore interface {
	GetUndoableHistory(ctx context.Context, runID string) ([]model.HistoryRecord, error)
	MarkUndone(ctx context.Context, id int64, at time.Time) error
}

// Undoer reverses a processing run from its journal.
type Undoer struct {
	store         UndoStore
	downloadsRoot string
}

// NewUndoer creates an undoer over the given downloads root.
func NewUndoer(downloadsRoot string, store UndoStore) *Undoer {
	return &Undoer{
		downloadsRoot: downloadsRoot,
		store:         store,
	}
}

// UndoSummary reports the outcome of reversing a run.
type UndoSummary struct {
	// Restored counts placements whose source location was restored.
	Restored int
	// Recovered counts placed files diverted to the recovery folder because
	// their source could not be restored.
	Recovered int
	// AlreadyGone counts records whose destination no longer existed.
	AlreadyGone int
}

// UndoRun reverses every not-yet-undone placement of a run: the destination
// file is removed, the original source is restored from the finished holding
// area, and the journal row is stamped. Folder-level restoration runs first
// so directory trees come back in one move. Undoing an already-undone run is
// a no-op.
func (u *Undoer) UndoRun(ctx context.Context, runID string) (UndoSummary, error) {
	var summary UndoSummary

	records, err := u.store.GetUndoableHistory(ctx, runID)
	if err != nil {
		return summary, fmt.Errorf("failed to load run history: %w", err)
	}
	if len(records) == 0 {
		slog.Info("Nothing to undo", "run_id", runID)
		return summary, nil
	}

	u.restoreFolders(records)

	for i := range records {
		if err := u.undoRecord(ctx, &records[i], &summary); err != nil {
			return summary, err
		}
	}

	slog.Info("Run undone",
		"run_id", runID,
		"restored", summary.Restored,
		"recovered", summary.Recovered,
		"already_gone", summary.AlreadyGone)
	return summary, nil
}

// restoreFolders moves whole source folders back out of the finished area
// before per-file restoration, so directory structure is not re-created
// file by file.
func (u *Undoer) restoreFolders(records []model.HistoryRecord) {
	finishedDir := filepath.Join(u.downloadsRoot, FinishedDir)

	seen := make(map[string]bool)
	for _, r := range records {
		sourceDir := filepath.Dir(r.SourcePath)
		if sourceDir == u.downloadsRoot || seen[sourceDir] {
			continue
		}
		seen[sourceDir] = true

		held := filepath.Join(finishedDir, filepath.Base(sourceDir))
		if _, err := os.Stat(held); err != nil {
			continue
		}
		if _, err := os.Stat(sourceDir); err == nil {
			continue
		}
		if err := os.Rename(held, sourceDir); err != nil {
			slog.Warn("Failed to restore source folder", "folder", held, "error", err)
			continue
		}
		slog.Info("Restored source folder", "folder", sourceDir)
	}
}

func (u *Undoer) undoRecord(ctx context.Context, r *model.HistoryRecord, summary *UndoSummary) error {
	destExists := fileExists(r.DestPath)

	switch {
	case fileExists(r.SourcePath):
		// Source already back in place (folder-level restore); drop the copy.
		if destExists {
			if err := os.Remove(r.DestPath); err != nil {
				return fmt.Errorf("failed to remove %s: %w", r.DestPath, err)
			}
		}
		summary.Restored++

	case u.restoreFromFinished(r.SourcePath):
		if destExists {
			if err := os.Remove(r.DestPath); err != nil {
				return fmt.Errorf("failed to remove %s: %w", r.DestPath, err)
			}
		}
		summary.Restored++

	case destExists:
		// No source location to restore; keep the placed file rather than
		// discarding it.
		if err := u.divertToRecovery(r.DestPath); err != nil {
			return err
		}
		summary.Recovered++

	default:
		summary.AlreadyGone++
	}

	if err := u.store.MarkUndone(ctx, r.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark record %d undone: %w", r.ID, err)
	}
	return nil
}

// restoreFromFinished looks for the source file in the finished area, first
// at its exact relative location, then by filename search.
func (u *Undoer) restoreFromFinished(sourcePath string) bool {
	finishedDir := filepath.Join(u.downloadsRoot, FinishedDir)

	candidates := []string{}
	if rel, err := filepath.Rel(u.downloadsRoot, sourcePath); err == nil {
		candidates = append(candidates, filepath.Join(finishedDir, rel))
	}

	base := filepath.Base(sourcePath)
	found := ""
	for _, c := range candidates {
		if fileExists(c) {
			found = c
			break
		}
	}
	if found == "" {
		_ = filepath.WalkDir(finishedDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if filepath.Base(path) == base {
				found = path
				return fs.SkipAll
			}
			return nil
		})
	}
	if found == "" {
		return false
	}

	if err := os.MkdirAll(filepath.Dir(sourcePath), 0750); err != nil {
		slog.Warn("Failed to re-create source directory", "path", sourcePath, "error", err)
		return false
	}
	if err := os.Rename(found, sourcePath); err != nil {
		slog.Warn("Failed to restore source file", "from", found, "error", err)
		return false
	}
	return true
}

// divertToRecovery moves a placed file into the recovery folder with a
// collision-safe suffix.
func (u *Undoer) divertToRecovery(destPath string) error {
	recoveryDir := filepath.Join(u.downloadsRoot, RecoveredDir)
	if err := os.MkdirAll(recoveryDir, 0750); err != nil {
		return fmt.Errorf("failed to create recovery folder: %w", err)
	}

	name := filepath.Base(destPath)
	target := filepath.Join(recoveryDir, name)
	base := name[:len(name)-len(filepath.Ext(name))]
	ext := filepath.Ext(name)
	for counter := 1; fileExists(target); counter++ {
		target = filepath.Join(recoveryDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}

	if err := os.Rename(destPath, target); err != nil {
		return fmt.Errorf("failed to move %s to recovery: %w", destPath, err)
	}
	slog.Warn("Source location unavailable; file moved to recovery", "file", target)
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
