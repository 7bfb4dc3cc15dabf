package model

import "time"

// SeriesPattern remembers which rule (or manual override) previously
// classified a series, so later files in the same series are classified
// consistently without re-prompting.
type SeriesPattern struct {
	CreatedAt  time.Time
	LastUsedAt time.Time
	SeriesName string
	RuleName   string
	Extraction Extraction
	UseCount   int
	IsManual   bool
}

// RuleNameManual marks records created from an operator-supplied entry
// rather than an extraction rule.
const RuleNameManual = "Manual Entry"

// FormatFingerprint captures the structural shape of a series' filenames
// within a single run: whether they carry volume and/or chapter numbering.
// A later file whose fingerprint disagrees signals format drift and must be
// re-classified instead of blindly reusing the remembered pattern.
type FormatFingerprint struct {
	ExampleFilename string
	HasVolume       bool
	HasChapter      bool
}

// Matches reports whether two fingerprints agree on numbering structure.
func (f FormatFingerprint) Matches(other FormatFingerprint) bool {
	return f.HasVolume == other.HasVolume && f.HasChapter == other.HasChapter
}
