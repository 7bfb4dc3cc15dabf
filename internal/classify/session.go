package classify

import (
	"strings"

	"github.com/dieseltech/stacks/internal/model"
)

// Session holds per-run classifier state: operator skip decisions and series
// format fingerprints. It is passed explicitly so concurrent runs, if ever
// needed, cannot interfere through ambient state.
type Session struct {
	skippedSeries map[string]struct{}
	fingerprints  map[string]model.FormatFingerprint
	memoryDown    bool
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		skippedSeries: make(map[string]struct{}),
		fingerprints:  make(map[string]model.FormatFingerprint),
	}
}

// SkipSeries excludes a series for the remainder of the session.
func (s *Session) SkipSeries(name string) {
	s.skippedSeries[normalizeSeries(name)] = struct{}{}
}

// IsSkipped reports whether a series was excluded this session.
func (s *Session) IsSkipped(name string) bool {
	_, ok := s.skippedSeries[normalizeSeries(name)]
	return ok
}

// Fingerprint returns the recorded structural fingerprint for a series.
func (s *Session) Fingerprint(series string) (model.FormatFingerprint, bool) {
	fp, ok := s.fingerprints[normalizeSeries(series)]
	return fp, ok
}

// RecordFingerprint stores the fingerprint for a series if none exists yet.
// The first file of a series in a run defines its expected shape.
func (s *Session) RecordFingerprint(series string, fp model.FormatFingerprint) {
	key := normalizeSeries(series)
	if _, ok := s.fingerprints[key]; !ok {
		s.fingerprints[key] = fp
	}
}

// MarkMemoryDown switches the session into degraded, non-remembering mode
// after a pattern store failure.
func (s *Session) MarkMemoryDown() {
	s.memoryDown = true
}

// MemoryDown reports whether the pattern store failed earlier this session.
func (s *Session) MemoryDown() bool {
	return s.memoryDown
}

func normalizeSeries(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
