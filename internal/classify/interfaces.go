// Package classify orchestrates the pattern library against filenames,
// consulting the pattern memory store first and falling back to scoring all
// rules, with a decision policy for ambiguous or low-confidence results.
package classify

import (
	"context"

	"github.com/dieseltech/stacks/internal/model"
	"github.com/dieseltech/stacks/internal/score"
)

// Candidate pairs an extraction with its score.
type Candidate struct {
	Extraction model.Extraction
	Trace      score.Trace
	Score      float64
}

// ChoiceAction is the operator's answer to a classification prompt.
type ChoiceAction string

const (
	// ChoiceUse selects one of the presented candidates.
	ChoiceUse ChoiceAction = "USE"
	// ChoiceManual supplies series/chapter/volume directly.
	ChoiceManual ChoiceAction = "MANUAL"
	// ChoiceSkipFile excludes the file from this run.
	ChoiceSkipFile ChoiceAction = "SKIP_FILE"
	// ChoiceSkipSeries excludes the whole series for the session.
	ChoiceSkipSeries ChoiceAction = "SKIP_SERIES"
)

// Choice is the operator's resolution of a prompt.
type Choice struct {
	Action ChoiceAction
	Manual model.Extraction
	Index  int
}

// Prompter presents classification decisions to the operator. Implementations
// live in the cli package; the classifier only needs "present options, read
// choice".
type Prompter interface {
	// SelectAmbiguous presents functionally distinct candidate groups when
	// the top scores are too close to call.
	SelectAmbiguous(ctx context.Context, filename string, candidates []Candidate) (Choice, error)
	// ConfirmLowConfidence asks whether to accept a weak best match.
	ConfirmLowConfidence(ctx context.Context, filename string, best Candidate) (Choice, error)
	// ResolveUnmatched handles filenames no rule matched usably.
	ResolveUnmatched(ctx context.Context, filename string) (Choice, error)
	// ConfirmFormatDrift asks whether to reuse the remembered pattern when
	// the filename's structure disagrees with the series fingerprint.
	// Returning false re-classifies, which is also the default on decline.
	ConfirmFormatDrift(ctx context.Context, seriesName string, remembered, current model.FormatFingerprint) (bool, error)
}

// Memory is the persistent series pattern store consumed by the classifier.
// Implemented by storage.SQLiteStorage.
type Memory interface {
	FindSeriesPattern(ctx context.Context, seriesName string) (*model.SeriesPattern, error)
	SaveSeriesPattern(ctx context.Context, p *model.SeriesPattern) error
	TouchSeriesPattern(ctx context.Context, seriesName string) error
}
