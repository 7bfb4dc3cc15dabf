package library

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dieseltech/stacks/internal/model"
)

// fixedMarker in a source filename means the release fixes an earlier upload
// and may overwrite an existing destination.
const fixedMarker = "(F)"

// Journal records successful placements. Implemented by storage.SQLiteStorage.
type Journal interface {
	RecordPlacement(ctx context.Context, r *model.HistoryRecord) error
}

// Placer moves converted archives into the library layout.
type Placer struct {
	journal       Journal
	libraryRoot   string
	downloadsRoot string
}

// NewPlacer creates a placer rooted at the given library and downloads paths.
func NewPlacer(libraryRoot, downloadsRoot string, journal Journal) *Placer {
	return &Placer{
		libraryRoot:   libraryRoot,
		downloadsRoot: downloadsRoot,
		journal:       journal,
	}
}

// Placement is the input for one file placement.
type Placement struct {
	// File is the archive to place (converted output, or the original when
	// conversion was rejected).
	File string
	// SourcePath is the original archive, recorded for undo.
	SourcePath string
	RunID      string
	Series     string
	Volume     string
	Chapter    string
	// OriginalSize and FinalSize feed the journal's space accounting.
	OriginalSize int64
	FinalSize    int64
	// CopyFile leaves File in place instead of moving it; used when placing
	// the original archive so source folders stay intact for finalization
	// and undo.
	CopyFile bool
}

// DestinationName composes the canonical file name:
// {series}[ v{volume}][ - Chapter {chapter} | - One-shot]{ext}.
// Volume numbers are rendered without leading zeros.
func DestinationName(series, volume, chapter, ext string) string {
	name := series
	if volume != "" {
		name += " v" + trimLeadingZeros(volume)
	}
	switch {
	case chapter != "":
		name += " - Chapter " + chapter
	case volume == "":
		name += " - One-shot"
	}
	return name + ext
}

// Place writes the file to its destination, diverting conflicts, and appends
// a journal record before the file is considered processed.
func (p *Placer) Place(ctx context.Context, pl Placement) (string, error) {
	if pl.Series == "" {
		return "", fmt.Errorf("placement requires a series name")
	}

	seriesDir := filepath.Join(p.libraryRoot, sanitizePathComponent(pl.Series))
	if err := os.MkdirAll(seriesDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create series directory: %w", err)
	}

	fileName := DestinationName(sanitizePathComponent(pl.Series), pl.Volume, pl.Chapter, filepath.Ext(pl.SourcePath))
	dest := filepath.Join(seriesDir, fileName)

	if _, err := os.Stat(dest); err == nil {
		dest, err = p.resolveConflict(pl, fileName, dest)
		if err != nil {
			return "", err
		}
	}

	if err := p.deliver(pl.File, dest, pl.CopyFile); err != nil {
		return "", err
	}

	record := &model.HistoryRecord{
		RunID:        pl.RunID,
		SourcePath:   pl.SourcePath,
		DestPath:     dest,
		OriginalSize: pl.OriginalSize,
		FinalSize:    pl.FinalSize,
	}
	if err := p.journal.RecordPlacement(ctx, record); err != nil {
		return "", fmt.Errorf("failed to journal placement of %s: %w", fileName, err)
	}

	slog.Info("Placed file",
		"dest", dest,
		"space_saved", record.OriginalSize-record.FinalSize)
	return dest, nil
}

// resolveConflict applies the overwrite/divert policy for an existing
// destination. A fixed-version source overwrites; anything else diverts to
// the conflicts area with a collision-safe suffix, never silently replacing
// an unrelated file.
func (p *Placer) resolveConflict(pl Placement, fileName, dest string) (string, error) {
	if strings.Contains(filepath.Base(pl.SourcePath), fixedMarker) {
		slog.Warn("Overwriting with fixed version", "dest", dest, "source", pl.SourcePath)
		if err := os.Remove(dest); err != nil {
			return "", fmt.Errorf("failed to remove superseded file: %w", err)
		}
		return dest, nil
	}

	conflictsDir := filepath.Join(p.downloadsRoot, ConflictsDir)
	if err := os.MkdirAll(conflictsDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create conflicts directory: %w", err)
	}

	conflictDest := filepath.Join(conflictsDir, fileName)
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	ext := filepath.Ext(fileName)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(conflictDest); os.IsNotExist(err) {
			break
		}
		conflictDest = filepath.Join(conflictsDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}

	slog.Warn("Destination exists; diverting to conflicts area",
		"file", fileName, "diverted_to", conflictDest)
	return conflictDest, nil
}

// deliver moves or copies the file into place. Rename is attempted first and
// falls back to a copy across filesystems.
func (p *Placer) deliver(src, dest string, copyOnly bool) error {
	if copyOnly {
		return copyFile(src, dest)
	}
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	if err := copyFile(src, dest); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy to %s: %w", dest, err)
	}
	return out.Close()
}

// trimLeadingZeros renders "02" as "2" while keeping a lone zero.
func trimLeadingZeros(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" && s != "" {
		return "0"
	}
	if trimmed == "" {
		return s
	}
	return trimmed
}

// sanitizePathComponent keeps series names from escaping the library layout.
func sanitizePathComponent(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}
