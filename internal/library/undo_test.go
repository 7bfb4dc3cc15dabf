package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieseltech/stacks/internal/common"
	"github.com/dieseltech/stacks/internal/model"
)

// memUndoStore serves canned journal rows and records undo stamps.
type memUndoStore struct {
	records []model.HistoryRecord
	undone  map[int64]bool
}

func newMemUndoStore(records ...model.HistoryRecord) *memUndoStore {
	return &memUndoStore{records: records, undone: make(map[int64]bool)}
}

func (s *memUndoStore) GetUndoableHistory(_ context.Context, runID string) ([]model.HistoryRecord, error) {
	var out []model.HistoryRecord
	for _, r := range s.records {
		if r.RunID == runID && !s.undone[r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memUndoStore) MarkUndone(_ context.Context, id int64, _ time.Time) error {
	if s.undone[id] {
		return common.ErrNotFound
	}
	s.undone[id] = true
	return nil
}

func TestUndoRunNothingToUndo(t *testing.T) {
	undoer := NewUndoer(t.TempDir(), newMemUndoStore())

	summary, err := undoer.UndoRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Zero(t, summary.Restored)
	assert.Zero(t, summary.Recovered)
	assert.Zero(t, summary.AlreadyGone)
}

func TestUndoRunRestoresSourceFolder(t *testing.T) {
	downloads := t.TempDir()
	library := t.TempDir()

	// The run moved the source folder into the finished area and placed the
	// converted file in the library.
	source := filepath.Join(downloads, "My Series", "My Series c10.cbz")
	held := filepath.Join(downloads, FinishedDir, "My Series", "My Series c10.cbz")
	writeFile(t, held, "original")
	dest := writeFile(t, filepath.Join(library, "My Series", "My Series - Chapter 10.cbz"), "converted")

	store := newMemUndoStore(model.HistoryRecord{
		ID:         1,
		RunID:      "run-1",
		SourcePath: source,
		DestPath:   dest,
	})

	undoer := NewUndoer(downloads, store)
	summary, err := undoer.UndoRun(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Restored)
	assert.FileExists(t, source, "source folder moved back out of the finished area")
	assert.NoFileExists(t, dest, "placed file removed")
	assert.NoDirExists(t, filepath.Join(downloads, FinishedDir, "My Series"))
	assert.True(t, store.undone[1])
}

func TestUndoRunRestoresIndividualFile(t *testing.T) {
	downloads := t.TempDir()
	library := t.TempDir()

	// Source folder still exists, so folder-level restore does not apply; the
	// file itself sits somewhere in the finished area.
	source := filepath.Join(downloads, "Mixed", "Some File c3.cbz")
	writeFile(t, filepath.Join(downloads, "Mixed", "unrelated.cbz"), "keep")
	writeFile(t, filepath.Join(downloads, FinishedDir, "elsewhere", "Some File c3.cbz"), "original")
	dest := writeFile(t, filepath.Join(library, "Some File", "Some File - Chapter 3.cbz"), "converted")

	store := newMemUndoStore(model.HistoryRecord{
		ID:         1,
		RunID:      "run-1",
		SourcePath: source,
		DestPath:   dest,
	})

	undoer := NewUndoer(downloads, store)
	summary, err := undoer.UndoRun(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Restored)
	assert.FileExists(t, source, "file found by name search and moved back")
	assert.NoFileExists(t, dest)
}

func TestUndoRunRecoversWhenSourceIsGone(t *testing.T) {
	downloads := t.TempDir()
	library := t.TempDir()

	dest := writeFile(t, filepath.Join(library, "Gone", "Gone - Chapter 1.cbz"), "converted")

	store := newMemUndoStore(model.HistoryRecord{
		ID:         1,
		RunID:      "run-1",
		SourcePath: filepath.Join(downloads, "Gone", "Gone c1.cbz"),
		DestPath:   dest,
	})

	undoer := NewUndoer(downloads, store)
	summary, err := undoer.UndoRun(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Recovered)
	assert.NoFileExists(t, dest)
	assert.FileExists(t, filepath.Join(downloads, RecoveredDir, "Gone - Chapter 1.cbz"),
		"placed data is preserved, never discarded")
}

func TestUndoRunCountsMissingDestinations(t *testing.T) {
	downloads := t.TempDir()

	store := newMemUndoStore(model.HistoryRecord{
		ID:         1,
		RunID:      "run-1",
		SourcePath: filepath.Join(downloads, "X", "x.cbz"),
		DestPath:   filepath.Join(t.TempDir(), "never-existed.cbz"),
	})

	undoer := NewUndoer(downloads, store)
	summary, err := undoer.UndoRun(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.AlreadyGone)
	assert.True(t, store.undone[1], "missing destinations are still stamped")
}

func TestUndoRunIsIdempotent(t *testing.T) {
	downloads := t.TempDir()
	library := t.TempDir()

	source := filepath.Join(downloads, "My Series", "My Series c10.cbz")
	writeFile(t, filepath.Join(downloads, FinishedDir, "My Series", "My Series c10.cbz"), "original")
	dest := writeFile(t, filepath.Join(library, "My Series", "My Series - Chapter 10.cbz"), "converted")

	store := newMemUndoStore(model.HistoryRecord{
		ID:         1,
		RunID:      "run-1",
		SourcePath: source,
		DestPath:   dest,
	})

	undoer := NewUndoer(downloads, store)
	first, err := undoer.UndoRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.Equal(t, 1, first.Restored)

	second, err := undoer.UndoRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Zero(t, second.Restored)
	assert.Zero(t, second.Recovered)
	assert.Zero(t, second.AlreadyGone)
}
