package storage

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

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testPattern(series string) *model.SeriesPattern {
	ex := model.NewExtraction("Volume")
	ex.Fields[model.FieldTitle] = series
	ex.Fields[model.FieldVolume] = "02"

	return &model.SeriesPattern{
		SeriesName: series,
		RuleName:   "Volume",
		Extraction: ex,
		UseCount:   1,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStorage(t)
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSeriesPatternRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	p := testPattern("Another Example")
	require.NoError(t, store.SaveSeriesPattern(ctx, p))

	got, err := store.GetSeriesPattern(ctx, "Another Example")
	require.NoError(t, err)
	assert.Equal(t, "Another Example", got.SeriesName)
	assert.Equal(t, "Volume", got.RuleName)
	assert.False(t, got.IsManual)
	assert.Equal(t, "02", got.Extraction.Volume())
	assert.Equal(t, 1, got.UseCount)
	assert.False(t, got.LastUsedAt.IsZero())
}

func TestGetSeriesPatternNotFound(t *testing.T) {
	store := newTestStorage(t)

	_, err := store.GetSeriesPattern(context.Background(), "Nobody")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveSeriesPatternUpserts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSeriesPattern(ctx, testPattern("Another Example")))

	updated := testPattern("Another Example")
	updated.RuleName = "Ch_bare"
	require.NoError(t, store.SaveSeriesPattern(ctx, updated))

	got, err := store.GetSeriesPattern(ctx, "Another Example")
	require.NoError(t, err)
	assert.Equal(t, "Ch_bare", got.RuleName)
	assert.Equal(t, 2, got.UseCount, "re-saving a known series accumulates its usage counter")

	// A third save keeps accumulating rather than resetting to the
	// incoming record's count.
	require.NoError(t, store.SaveSeriesPattern(ctx, testPattern("Another Example")))
	got, err = store.GetSeriesPattern(ctx, "Another Example")
	require.NoError(t, err)
	assert.Equal(t, 3, got.UseCount)

	patterns, err := store.ListSeriesPatterns(ctx)
	require.NoError(t, err)
	assert.Len(t, patterns, 1)
}

func TestFindSeriesPatternPrefixFallback(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSeriesPattern(ctx, testPattern("Another")))
	require.NoError(t, store.SaveSeriesPattern(ctx, testPattern("Another Example")))

	// Exact match wins.
	got, err := store.FindSeriesPattern(ctx, "Another Example")
	require.NoError(t, err)
	assert.Equal(t, "Another Example", got.SeriesName)

	// Longest remembered prefix wins for extended names.
	got, err = store.FindSeriesPattern(ctx, "Another Example Side Story")
	require.NoError(t, err)
	assert.Equal(t, "Another Example", got.SeriesName)

	_, err = store.FindSeriesPattern(ctx, "Unrelated Series")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTouchSeriesPattern(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSeriesPattern(ctx, testPattern("Another Example")))
	require.NoError(t, store.TouchSeriesPattern(ctx, "Another Example"))

	got, err := store.GetSeriesPattern(ctx, "Another Example")
	require.NoError(t, err)
	assert.Equal(t, 2, got.UseCount)

	assert.ErrorIs(t, store.TouchSeriesPattern(ctx, "Nobody"), common.ErrNotFound)
}

func TestDeleteSeriesPattern(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSeriesPattern(ctx, testPattern("Another Example")))
	require.NoError(t, store.DeleteSeriesPattern(ctx, "Another Example"))

	_, err := store.GetSeriesPattern(ctx, "Another Example")
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, store.DeleteSeriesPattern(ctx, "Another Example"), common.ErrNotFound)
}

func TestHistoryJournal(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	r1 := &model.HistoryRecord{
		RunID:        run.ID,
		SourcePath:   "/downloads/a.cbz",
		DestPath:     "/library/Series/Series - Chapter 1.cbz",
		OriginalSize: 1000,
		FinalSize:    600,
	}
	require.NoError(t, store.RecordPlacement(ctx, r1))
	assert.NotZero(t, r1.ID)
	assert.Equal(t, int64(400), r1.SpaceSaved)

	r2 := &model.HistoryRecord{
		RunID:      run.ID,
		SourcePath: "/downloads/b.cbz",
		DestPath:   "/library/Series/Series - Chapter 2.cbz",
	}
	require.NoError(t, store.RecordPlacement(ctx, r2))

	history, err := store.GetRunHistory(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, r1.ID, history[0].ID, "history is ordered oldest first")

	undoable, err := store.GetUndoableHistory(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, undoable, 2)
}

func TestMarkUndoneIsGuarded(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	run, err := store.StartRun(ctx)
	require.NoError(t, err)

	r := &model.HistoryRecord{
		RunID:      run.ID,
		SourcePath: "/downloads/a.cbz",
		DestPath:   "/library/a.cbz",
	}
	require.NoError(t, store.RecordPlacement(ctx, r))

	require.NoError(t, store.MarkUndone(ctx, r.ID, time.Now()))

	// The row stays as an audit record but leaves the undoable set.
	undoable, err := store.GetUndoableHistory(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, undoable)

	history, err := store.GetRunHistory(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.NotNil(t, history[0].UndoneAt)

	// Marking twice is rejected, making undo idempotent at the journal level.
	assert.ErrorIs(t, store.MarkUndone(ctx, r.ID, time.Now()), common.ErrNotFound)
}

func TestLatestRunIDAndListRuns(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	_, err := store.LatestRunID(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)

	first, err := store.StartRun(ctx)
	require.NoError(t, err)

	require.NoError(t, store.RecordPlacement(ctx, &model.HistoryRecord{
		RunID:        first.ID,
		SourcePath:   "/downloads/a.cbz",
		DestPath:     "/library/a.cbz",
		OriginalSize: 100,
		FinalSize:    40,
	}))

	// A measurably later second run.
	time.Sleep(5 * time.Millisecond)
	second, err := store.StartRun(ctx)
	require.NoError(t, err)

	latest, err := store.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest)

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].Run.ID, "newest first")
	assert.Equal(t, 1, runs[1].Placed)
	assert.Equal(t, int64(60), runs[1].SpaceSaved)
}
