package engine

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieseltech/stacks/internal/classify"
	"github.com/dieseltech/stacks/internal/convert"
	"github.com/dieseltech/stacks/internal/extract"
	"github.com/dieseltech/stacks/internal/library"
	"github.com/dieseltech/stacks/internal/pattern"
	"github.com/dieseltech/stacks/internal/score"
	"github.com/dieseltech/stacks/internal/storage"
)

// writeCBZ writes a small page archive. Its content is deliberately too small
// to survive conversion, so placement uses the original file.
func writeCBZ(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))

	out, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(out)
	w, err := zw.Create("page01.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("placeholder page"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
}

func newTestEngine(t *testing.T, downloads, libraryRoot string) (*Engine, *storage.SQLiteStorage) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	classifier := classify.New(
		pattern.DefaultRules(),
		score.NewScorer(score.DefaultConfig()),
		store,
		nil,
		classify.Config{Auto: true},
	)
	converter := convert.NewConverter(convert.Config{Workers: 1})
	placer := library.NewPlacer(libraryRoot, downloads, store)

	eng := New(Config{
		DownloadsRoot: downloads,
		LibraryRoot:   libraryRoot,
	}, store, classifier, converter, placer, extract.NewUnrarExtractor())

	return eng, store
}

func TestRunProcessesAndFinalizesFolders(t *testing.T) {
	downloads := t.TempDir()
	libraryRoot := t.TempDir()

	writeCBZ(t, filepath.Join(downloads, "My Series", "My Series c10 (2023).cbz"))
	writeCBZ(t, filepath.Join(downloads, "My Series", "My Series c11 (2023).cbz"))

	eng, _ := newTestEngine(t, downloads, libraryRoot)
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Failed)

	assert.FileExists(t, filepath.Join(libraryRoot, "My Series", "My Series - Chapter 10.cbz"))
	assert.FileExists(t, filepath.Join(libraryRoot, "My Series", "My Series - Chapter 11.cbz"))

	// The fully processed source folder moved to the finished area.
	assert.NoDirExists(t, filepath.Join(downloads, "My Series"))
	assert.FileExists(t, filepath.Join(downloads, library.FinishedDir, "My Series", "My Series c10 (2023).cbz"))
}

func TestRunSkipsUnclassifiableFiles(t *testing.T) {
	downloads := t.TempDir()
	libraryRoot := t.TempDir()

	writeCBZ(t, filepath.Join(downloads, "junk", "10.cbz"))

	eng, _ := newTestEngine(t, downloads, libraryRoot)
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.DirExists(t, filepath.Join(downloads, "junk"), "fully skipped folders are not swept aside")
}

func TestRunIgnoresReservedDirectories(t *testing.T) {
	downloads := t.TempDir()
	libraryRoot := t.TempDir()

	writeCBZ(t, filepath.Join(downloads, library.FinishedDir, "Old", "Old c1.cbz"))
	writeCBZ(t, filepath.Join(downloads, library.ConflictsDir, "Dupe c1.cbz"))

	eng, _ := newTestEngine(t, downloads, libraryRoot)
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.Skipped)
}

func TestRunThenUndoRestoresEverything(t *testing.T) {
	downloads := t.TempDir()
	libraryRoot := t.TempDir()

	source := filepath.Join(downloads, "My Series", "My Series c10 (2023).cbz")
	writeCBZ(t, source)

	eng, store := newTestEngine(t, downloads, libraryRoot)
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Processed)

	dest := filepath.Join(libraryRoot, "My Series", "My Series - Chapter 10.cbz")
	require.FileExists(t, dest)

	undoer := library.NewUndoer(downloads, store)
	undoSummary, err := undoer.UndoRun(context.Background(), summary.RunID)
	require.NoError(t, err)

	assert.Equal(t, 1, undoSummary.Restored)
	assert.FileExists(t, source, "source folder restored from the finished area")
	assert.NoFileExists(t, dest)

	// A second undo of the same run is a no-op.
	again, err := undoer.UndoRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Zero(t, again.Restored+again.Recovered+again.AlreadyGone)
}

func TestRunLeavesFailedFoldersInPlace(t *testing.T) {
	downloads := t.TempDir()
	libraryRoot := t.TempDir()

	// A classifiable name on an unreadable archive fails conversion.
	bad := filepath.Join(downloads, "Broken", "Broken Series c1 (2023).cbz")
	require.NoError(t, os.MkdirAll(filepath.Dir(bad), 0750))
	require.NoError(t, os.WriteFile(bad, []byte("not a zip at all"), 0600))

	eng, _ := newTestEngine(t, downloads, libraryRoot)
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.DirExists(t, filepath.Join(downloads, "Broken"), "failed folders stay for a retry run")
}
