// Package library resolves destination paths in the canonical library
// layout, diverts naming conflicts, journals every placement, and reverses
// placements by run.
package library

// Reserved workspace directory names inside the downloads root. The walker
// never traverses these, and placement/undo create them on demand.
const (
	// FinishedDir holds fully processed source folders and files.
	FinishedDir = "!Finished"
	// ConflictsDir receives placements whose destination already existed.
	ConflictsDir = "!Conflicts"
	// TempProcessingDir is the per-run conversion working area.
	TempProcessingDir = "!temp_processing"
	// TempExtractDir is where legacy archives are unpacked.
	TempExtractDir = "!temp_extract"
	// RecoveredDir receives undone files whose source location is gone.
	RecoveredDir = "!Recovered"
)

// IsReserved reports whether a directory name is one of the workspace
// markers.
func IsReserved(name string) bool {
	switch name {
	case FinishedDir, ConflictsDir, TempProcessingDir, TempExtractDir, RecoveredDir:
		return true
	}
	return false
}
