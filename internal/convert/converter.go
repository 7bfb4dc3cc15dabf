package convert

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/dieseltech/stacks/internal/common"
)

// minPlausibleSize guards against a silently corrupted output archive; a
// real page archive is never this small.
const minPlausibleSize = 1024

// sizeTolerance accepts a converted archive up to 2% larger than the
// original, for practical gain on mixed-content archives.
const sizeTolerance = 1.02

// Config holds the conversion pipeline parameters.
type Config struct {
	// Workers bounds the transcoding pool; 0 means half the available CPUs.
	Workers int
	// Quality is the WebP encode quality, 0 for the default of 80.
	Quality float32
	// ShowProgress renders a per-archive progress bar.
	ShowProgress bool
}

// Converter transcodes the images inside page archives.
type Converter struct {
	codec Codec
	cfg   Config
}

// NewConverter creates a converter with the given configuration.
func NewConverter(cfg Config) *Converter {
	if cfg.Workers <= 0 {
		cfg.Workers = max(1, runtime.NumCPU()/2)
	}
	return &Converter{
		codec: WebPCodec{Quality: cfg.Quality},
		cfg:   cfg,
	}
}

// Result describes a completed conversion.
type Result struct {
	// Path of the archive to place: the converted file, or the original when
	// conversion was rejected.
	Path         string
	OriginalSize int64
	FinalSize    int64
	Converted    int
	Fallbacks    int
	UsedOriginal bool
}

// entry tracks one archive entry through the pipeline.
type entry struct {
	name      string
	extracted string
	kind      EntryKind
	converted []byte
}

// ConvertArchive transcodes archivePath into a new archive under workRoot.
// Conversion failures of individual images fall back to the original bytes;
// integrity or size failures fall back to the unmodified original archive.
// The caller owns the returned path; the working area is cleaned up.
func (c *Converter) ConvertArchive(ctx context.Context, archivePath, workRoot string) (*Result, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	result := &Result{
		Path:         archivePath,
		OriginalSize: info.Size(),
		FinalSize:    info.Size(),
		UsedOriginal: true,
	}

	// Isolated per-file working area: concurrently processed archives can
	// never collide on entry names.
	workDir := filepath.Join(workRoot, fmt.Sprintf("%s-%s", sanitizeName(filepath.Base(archivePath)), uuid.NewString()[:8]))
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create working area: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	entries, err := c.unpack(archivePath, workDir)
	if err != nil {
		return nil, err
	}

	if err := c.transcodeAll(ctx, entries, result); err != nil {
		return nil, err
	}

	outPath := strings.TrimSuffix(archivePath, filepath.Ext(archivePath)) + "_webp.cbz"
	outPath = filepath.Join(workRoot, filepath.Base(outPath))
	if err := c.repack(entries, outPath); err != nil {
		return nil, err
	}

	if err := c.verify(outPath, len(entries), result); err != nil {
		_ = os.Remove(outPath)
		slog.Warn("Conversion rejected; using original archive",
			"archive", filepath.Base(archivePath),
			"reason", err)
		return result, nil
	}

	return result, nil
}

// unpack extracts every file entry into the working area, preserving archive
// order. Entry paths are validated against traversal outside the area.
func (c *Converter) unpack(archivePath, workDir string) ([]*entry, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	extractDir := filepath.Join(workDir, "extract")
	var entries []*entry

	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}

		dest := filepath.Join(extractDir, filepath.Clean(zf.Name))
		if !strings.HasPrefix(dest, extractDir+string(os.PathSeparator)) {
			return nil, fmt.Errorf("archive entry escapes working area: %s", zf.Name)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
			return nil, fmt.Errorf("failed to create entry directory: %w", err)
		}

		if err := extractOne(zf, dest); err != nil {
			return nil, err
		}

		head, err := os.ReadFile(dest)
		if err != nil {
			return nil, fmt.Errorf("failed to read extracted entry: %w", err)
		}

		entries = append(entries, &entry{
			name:      zf.Name,
			extracted: dest,
			kind:      ClassifyEntry(zf.Name, head),
		})
	}

	return entries, nil
}

func extractOne(zf *zip.File, dest string) error {
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("failed to open entry %s: %w", zf.Name, err)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to extract %s: %w", zf.Name, err)
	}
	return nil
}

// transcodeAll fans the image entries out to a bounded worker pool. Workers
// are pure functions of the input bytes; the only shared state is the entry
// slot each worker owns.
func (c *Converter) transcodeAll(ctx context.Context, entries []*entry, result *Result) error {
	var images []*entry
	for _, e := range entries {
		if e.kind == KindImage {
			images = append(images, e)
		}
	}
	if len(images) == 0 {
		return nil
	}

	var bar *progressbar.ProgressBar
	if c.cfg.ShowProgress {
		bar = progressbar.NewOptions(len(images),
			progressbar.OptionSetDescription("Converting to WebP"),
			progressbar.OptionClearOnFinish(),
		)
	}

	sem := make(chan struct{}, c.cfg.Workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, img := range images {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		default:
		}

		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := os.ReadFile(e.extracted)
			if err == nil {
				e.converted, err = c.codec.Transcode(data)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Never fatal: the original bytes ride along unconverted.
				slog.Warn("Image conversion failed; passing through original",
					"entry", e.name, "error", err)
				e.converted = nil
				result.Fallbacks++
			} else {
				result.Converted++
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}(img)
	}

	wg.Wait()
	return nil
}

// repack writes converted images, already-in-format images and passthrough
// entries into a new archive with no additional compression; page images are
// already compressed.
func (c *Converter) repack(entries []*entry, outPath string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output archive: %w", err)
	}
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)
	for _, e := range entries {
		name := e.name
		data := e.converted
		if data == nil {
			data, err = os.ReadFile(e.extracted)
			if err != nil {
				return fmt.Errorf("failed to read entry %s: %w", e.name, err)
			}
		} else {
			name = strings.TrimSuffix(name, filepath.Ext(name)) + ".webp"
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   name,
			Method: zip.Store,
		})
		if err != nil {
			return fmt.Errorf("failed to create entry %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

// verify enforces the integrity invariant (entry counts must match), the
// corruption guard, and the size decision. On success the result points at
// the converted archive.
func (c *Converter) verify(outPath string, wantEntries int, result *Result) error {
	zr, err := zip.OpenReader(outPath)
	if err != nil {
		return fmt.Errorf("failed to reopen output: %w", err)
	}
	got := 0
	for _, zf := range zr.File {
		if !zf.FileInfo().IsDir() {
			got++
		}
	}
	_ = zr.Close()

	if got != wantEntries {
		return fmt.Errorf("%w: had %d entries, produced %d", common.ErrEntryCountMismatch, wantEntries, got)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("failed to stat output: %w", err)
	}
	if info.Size() < minPlausibleSize {
		return fmt.Errorf("%w: %d bytes", common.ErrArchiveTooSmall, info.Size())
	}
	if float64(info.Size()) > float64(result.OriginalSize)*sizeTolerance {
		return fmt.Errorf("converted archive larger than original: %d > %d", info.Size(), result.OriginalSize)
	}

	result.Path = outPath
	result.FinalSize = info.Size()
	result.UsedOriginal = false
	return nil
}

// sanitizeName strips path separators from a base name used to build the
// working area path.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, name)
}
