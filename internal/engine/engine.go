// Package engine walks the downloads tree and drives each archive through
// classification, conversion and placement, finalizing fully processed
// source folders.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/dieseltech/stacks/internal/classify"
	"github.com/dieseltech/stacks/internal/common"
	"github.com/dieseltech/stacks/internal/convert"
	"github.com/dieseltech/stacks/internal/library"
	"github.com/dieseltech/stacks/internal/model"
)

// Store is the durable state the engine needs directly.
type Store interface {
	StartRun(ctx context.Context) (model.ProcessingRun, error)
}

// Extractor unpacks legacy compressed archives.
type Extractor interface {
	Extract(ctx context.Context, rarPath, destDir string) (int, error)
}

// Config holds the engine's filesystem roots and presentation options.
type Config struct {
	DownloadsRoot string
	LibraryRoot   string
	ShowProgress  bool
}

// Engine processes a downloads tree into the library. Processing is
// sequential across archives and folders: folder moves, pattern memory
// updates and journal writes are order-sensitive. Parallelism lives inside
// the conversion step only.
type Engine struct {
	store      Store
	classifier *classify.Classifier
	converter  *convert.Converter
	placer     *library.Placer
	extractor  Extractor
	cfg        Config
}

// New creates an engine from its collaborators.
func New(cfg Config, store Store, classifier *classify.Classifier, converter *convert.Converter, placer *library.Placer, extractor Extractor) *Engine {
	return &Engine{
		cfg:        cfg,
		store:      store,
		classifier: classifier,
		converter:  converter,
		placer:     placer,
		extractor:  extractor,
	}
}

// Summary reports the outcome of one processing run.
type Summary struct {
	RunID      string
	Processed  int
	Skipped    int
	Failed     int
	SpaceSaved int64
}

// folderWork is the archive content of one source folder.
type folderWork struct {
	path string
	cbz  []string
	rars []string
}

// Run processes every discoverable archive under the downloads root.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	run, err := e.store.StartRun(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to start run: %w", err)
	}
	summary := Summary{RunID: run.ID}
	session := classify.NewSession()

	tempDir := filepath.Join(e.cfg.DownloadsRoot, library.TempProcessingDir)
	if err := os.RemoveAll(tempDir); err != nil {
		return summary, fmt.Errorf("failed to clear working area: %w", err)
	}
	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return summary, fmt.Errorf("failed to create working area: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	folders, total, err := e.discover()
	if err != nil {
		return summary, err
	}
	slog.Info("Starting processing run",
		"run_id", run.ID,
		"folders", len(folders),
		"archives", total)

	var bar *progressbar.ProgressBar
	if e.cfg.ShowProgress && total > 0 {
		bar = progressbar.Default(int64(total), "Processing archives")
	}

	for _, folder := range folders {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		failedBefore := summary.Failed
		processedBefore := summary.Processed
		e.processFolder(ctx, session, run.ID, tempDir, folder, &summary, bar)

		// Only folders that placed something and had no failures move aside;
		// failed or fully skipped folders stay put for a retry run.
		if folder.path != e.cfg.DownloadsRoot &&
			summary.Failed == failedBefore &&
			summary.Processed > processedBefore {
			e.finalizeFolder(folder.path)
		}
	}

	slog.Info("Run complete",
		"run_id", run.ID,
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"space_saved", summary.SpaceSaved)
	return summary, nil
}

// discover walks the downloads tree and collects per-folder archive work,
// skipping reserved workspace directories. WalkDir's lexical order keeps
// runs deterministic.
func (e *Engine) discover() ([]folderWork, int, error) {
	byFolder := make(map[string]*folderWork)
	total := 0

	err := filepath.WalkDir(e.cfg.DownloadsRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if library.IsReserved(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		var isRar bool
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".cbz":
		case ".rar", ".cbr":
			isRar = true
		default:
			return nil
		}

		dir := filepath.Dir(path)
		work, ok := byFolder[dir]
		if !ok {
			work = &folderWork{path: dir}
			byFolder[dir] = work
		}
		if isRar {
			work.rars = append(work.rars, path)
		} else {
			work.cbz = append(work.cbz, path)
		}
		total++
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to walk downloads: %w", err)
	}

	folders := make([]folderWork, 0, len(byFolder))
	for _, work := range byFolder {
		folders = append(folders, *work)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].path < folders[j].path })
	return folders, total, nil
}

func (e *Engine) processFolder(ctx context.Context, session *classify.Session, runID, tempDir string, folder folderWork, summary *Summary, bar *progressbar.ProgressBar) {
	isRoot := folder.path == e.cfg.DownloadsRoot

	for _, rar := range folder.rars {
		e.processLegacyArchive(ctx, session, runID, tempDir, rar, summary)
		advance(bar)
	}

	for _, path := range folder.cbz {
		e.processFile(ctx, session, runID, tempDir, path, isRoot, summary)
		advance(bar)
	}
}

// processLegacyArchive extracts a rar bundle and processes the page archives
// inside it. A missing extractor skips the archive with a warning; the rest
// of the run proceeds.
func (e *Engine) processLegacyArchive(ctx context.Context, session *classify.Session, runID, tempDir, rarPath string, summary *Summary) {
	extractDir := filepath.Join(filepath.Dir(rarPath), library.TempExtractDir)

	count, err := e.extractor.Extract(ctx, rarPath, extractDir)
	if err != nil {
		summary.Skipped++
		slog.Warn("Skipping legacy archive", "archive", rarPath, "error", err)
		return
	}
	defer func() { _ = os.RemoveAll(extractDir) }()

	common.LogInfo("Extracted legacy archive", common.Fields{
		"archive": filepath.Base(rarPath),
		"files":   count,
	})

	err = filepath.WalkDir(extractDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".cbz") {
			e.processFile(ctx, session, runID, tempDir, path, false, summary)
		}
		return nil
	})
	if err != nil {
		summary.Failed++
		common.LogError(err, "Failed processing extracted archives", common.Fields{"archive": rarPath})
	}
}

// processFile runs one page archive through classify, convert and place.
func (e *Engine) processFile(ctx context.Context, session *classify.Session, runID, tempDir, path string, isRootFile bool, summary *Summary) {
	filename := filepath.Base(path)

	decision, err := e.classifier.Classify(ctx, session, filename)
	if err != nil {
		summary.Failed++
		common.LogError(err, "Classification failed", common.Fields{"file": filename})
		return
	}
	if !decision.Accepted() {
		summary.Skipped++
		slog.Info("Skipping file", "file", filename)
		return
	}

	series := decision.Extraction.SeriesName()
	if series == "" {
		summary.Skipped++
		slog.Warn("Could not determine series", "file", filename)
		return
	}

	result, err := e.converter.ConvertArchive(ctx, path, tempDir)
	if err != nil {
		summary.Failed++
		common.LogError(err, "Conversion failed", common.Fields{"file": filename})
		return
	}

	dest, err := e.placer.Place(ctx, library.Placement{
		File:         result.Path,
		SourcePath:   path,
		RunID:        runID,
		Series:       series,
		Volume:       decision.Extraction.Volume(),
		Chapter:      decision.Extraction.Chapter(),
		OriginalSize: result.OriginalSize,
		FinalSize:    result.FinalSize,
		// Placing the original archive directly: leave the source in place
		// for finalization and undo. Root-level originals likewise stay.
		CopyFile: result.UsedOriginal || isRootFile,
	})
	if err != nil {
		summary.Failed++
		common.LogError(err, "Placement failed", common.Fields{"file": filename})
		return
	}

	summary.Processed++
	summary.SpaceSaved += result.OriginalSize - result.FinalSize
	common.LogDebug("Processed file", common.Fields{
		"file":        filename,
		"dest":        dest,
		"rule":        decision.RuleName,
		"from_memory": decision.FromMemory,
	})
}

// finalizeFolder moves a fully processed source folder into the finished
// holding area, where undo can later find it.
func (e *Engine) finalizeFolder(folderPath string) {
	finishedDir := filepath.Join(e.cfg.DownloadsRoot, library.FinishedDir)
	if err := os.MkdirAll(finishedDir, 0750); err != nil {
		slog.Warn("Failed to create finished folder", "error", err)
		return
	}

	dest := filepath.Join(finishedDir, filepath.Base(folderPath))
	if err := os.Rename(folderPath, dest); err != nil {
		slog.Warn("Failed to move folder to finished area", "folder", folderPath, "error", err)
		return
	}
	slog.Info("Moved completed folder to finished area", "folder", filepath.Base(folderPath))
}

func advance(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Add(1)
	}
}
