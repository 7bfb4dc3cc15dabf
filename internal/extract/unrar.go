// Package extract wraps the external unrar utility used for legacy
// compressed archives. The binary is optional; callers degrade by skipping
// those archives when it is absent.
package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/dieseltech/stacks/internal/common"
)

// UnrarExtractor invokes the unrar executable.
type UnrarExtractor struct {
	binary string
}

// NewUnrarExtractor creates an extractor using the unrar binary on PATH.
func NewUnrarExtractor() *UnrarExtractor {
	return &UnrarExtractor{binary: "unrar"}
}

// Available reports whether the extractor binary can be found.
func (u *UnrarExtractor) Available() bool {
	_, err := exec.LookPath(u.binary)
	return err == nil
}

// Extract unpacks rarPath into destDir, which is recreated empty first.
// Returns the number of files extracted. The external call is awaited
// synchronously.
func (u *UnrarExtractor) Extract(ctx context.Context, rarPath, destDir string) (int, error) {
	if !u.Available() {
		return 0, fmt.Errorf("%w: cannot extract %s", common.ErrExtractorMissing, filepath.Base(rarPath))
	}

	if err := os.RemoveAll(destDir); err != nil {
		return 0, fmt.Errorf("failed to clear extraction folder: %w", err)
	}
	if err := os.MkdirAll(destDir, 0750); err != nil {
		return 0, fmt.Errorf("failed to create extraction folder: %w", err)
	}

	// -y answers all queries, -o+ overwrites without asking.
	cmd := exec.CommandContext(ctx, u.binary, "x", "-y", "-o+", rarPath, destDir+string(os.PathSeparator))
	if out, err := cmd.CombinedOutput(); err != nil {
		return 0, fmt.Errorf("unrar failed for %s: %w: %s", filepath.Base(rarPath), err, string(out))
	}

	count := 0
	err := filepath.WalkDir(destDir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count extracted files: %w", err)
	}
	return count, nil
}
