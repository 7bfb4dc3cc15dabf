package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dieseltech/stacks/internal/common"
	"github.com/dieseltech/stacks/internal/model"
	"github.com/dieseltech/stacks/internal/pattern"
	"github.com/dieseltech/stacks/internal/score"
)

// Config holds the classifier's decision policy parameters.
type Config struct {
	// Auto accepts the best positive match without prompting.
	Auto bool
	// CloseScoreMargin is the gap within which two positive scores are
	// considered ambiguous.
	CloseScoreMargin float64
	// LowConfidence is the score below which an interactive run asks for
	// confirmation.
	LowConfidence float64
}

// DefaultConfig returns the default decision policy.
func DefaultConfig() Config {
	return Config{
		CloseScoreMargin: 4,
		LowConfidence:    5,
	}
}

// Classifier assigns series/volume/chapter to filenames.
type Classifier struct {
	scorer   *score.Scorer
	memory   Memory
	prompter Prompter
	rules    []pattern.Rule
	byName   map[string]pattern.Rule
	cfg      Config
}

// New creates a classifier. memory may be nil (no persistence) and prompter
// may be nil (automatic mode is then forced).
func New(rules []pattern.Rule, scorer *score.Scorer, memory Memory, prompter Prompter, cfg Config) *Classifier {
	if cfg.CloseScoreMargin <= 0 {
		cfg.CloseScoreMargin = DefaultConfig().CloseScoreMargin
	}
	if cfg.LowConfidence <= 0 {
		cfg.LowConfidence = DefaultConfig().LowConfidence
	}
	if prompter == nil {
		cfg.Auto = true
	}

	byName := make(map[string]pattern.Rule, len(rules))
	for _, r := range rules {
		byName[r.Name()] = r
	}

	return &Classifier{
		rules:    rules,
		byName:   byName,
		scorer:   scorer,
		memory:   memory,
		prompter: prompter,
		cfg:      cfg,
	}
}

// Classify runs the per-filename state machine: CheckSkipList, TryMemory
// (with format drift detection), TryAllRules, Resolve.
func (c *Classifier) Classify(ctx context.Context, session *Session, filename string) (model.Decision, error) {
	candidates := c.scoreAll(filename)

	derivedSeries := ""
	if len(candidates) > 0 {
		derivedSeries = candidates[0].Extraction.SeriesName()
	}

	// CheckSkipList
	if derivedSeries != "" && session.IsSkipped(derivedSeries) {
		slog.Debug("Series skipped for session", "series", derivedSeries, "file", filename)
		return model.Decision{Status: model.DecisionSkipped}, nil
	}

	// TryMemory
	if derivedSeries != "" {
		decision, ok, err := c.tryMemory(ctx, session, filename, derivedSeries)
		if err != nil {
			return model.Decision{}, err
		}
		if ok {
			return decision, nil
		}
	}

	// TryAllRules + Resolve
	return c.resolve(ctx, session, filename, candidates, derivedSeries)
}

// scoreAll applies every rule and returns positively scored candidates,
// sorted by descending score with rule order as a stable tie-break.
func (c *Classifier) scoreAll(filename string) []Candidate {
	var candidates []Candidate
	for _, rule := range c.rules {
		ex, ok := rule.Attempt(filename)
		if !ok {
			continue
		}
		s, trace := c.scorer.Score(ex, filename)
		if !score.Usable(s) {
			continue
		}
		candidates = append(candidates, Candidate{Extraction: ex, Score: s, Trace: trace})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// tryMemory attempts to reuse a remembered series pattern. The boolean result
// reports whether a terminal decision was reached.
func (c *Classifier) tryMemory(ctx context.Context, session *Session, filename, derivedSeries string) (model.Decision, bool, error) {
	if c.memory == nil || session.MemoryDown() {
		return model.Decision{}, false, nil
	}

	rec, err := c.memory.FindSeriesPattern(ctx, derivedSeries)
	if errors.Is(err, common.ErrNotFound) {
		return model.Decision{}, false, nil
	}
	if err != nil {
		// Degrade to non-remembering mode rather than aborting the run.
		common.LogError(err, "Pattern store lookup failed; continuing without memory", common.Fields{"series": derivedSeries})
		session.MarkMemoryDown()
		return model.Decision{}, false, nil
	}

	// FormatDriftCheck
	current := pattern.Fingerprint(filename)
	if remembered, ok := session.Fingerprint(rec.SeriesName); ok && !remembered.Matches(current) {
		reuse := false
		if !c.cfg.Auto {
			reuse, err = c.prompter.ConfirmFormatDrift(ctx, rec.SeriesName, remembered, current)
			if err != nil {
				return model.Decision{}, false, err
			}
		}
		if !reuse {
			slog.Info("Format drift detected; re-classifying",
				"series", rec.SeriesName,
				"file", filename,
				"example", remembered.ExampleFilename)
			return model.Decision{}, false, nil
		}
	}

	if rec.IsManual {
		return c.reuseManual(ctx, session, filename, rec, current)
	}
	return c.reuseRule(ctx, session, filename, rec, current)
}

// reuseRule re-applies the remembered rule to the current filename. The
// freshly parsed series name must match the remembered one; a mismatch means
// the naming convention moved on and we must re-classify.
func (c *Classifier) reuseRule(ctx context.Context, session *Session, filename string, rec *model.SeriesPattern, fp model.FormatFingerprint) (model.Decision, bool, error) {
	rule, ok := c.byName[rec.RuleName]
	if !ok {
		slog.Warn("Remembered rule no longer exists", "rule", rec.RuleName, "series", rec.SeriesName)
		return model.Decision{}, false, nil
	}

	fresh, ok := rule.Attempt(filename)
	if !ok || !strings.EqualFold(fresh.SeriesName(), rec.SeriesName) {
		slog.Debug("Remembered rule no longer parses this series; re-classifying",
			"series", rec.SeriesName, "file", filename)
		return model.Decision{}, false, nil
	}

	c.touch(ctx, session, rec.SeriesName)
	session.RecordFingerprint(rec.SeriesName, fp)

	return model.Decision{
		Status:     model.DecisionAccepted,
		RuleName:   rec.RuleName,
		Extraction: fresh,
		FromMemory: true,
	}, true, nil
}

// reuseManual reconstructs fields for a manually classified series by parsing
// the numbering out of the filename remainder after the stored series name.
func (c *Classifier) reuseManual(ctx context.Context, session *Session, filename string, rec *model.SeriesPattern, fp model.FormatFingerprint) (model.Decision, bool, error) {
	if len(filename) < len(rec.SeriesName) || !strings.EqualFold(filename[:len(rec.SeriesName)], rec.SeriesName) {
		return model.Decision{}, false, nil
	}

	remainder := filename[len(rec.SeriesName):]
	chapter, volume := pattern.ParseNumbering(remainder)

	ex := model.NewExtraction(model.RuleNameManual)
	ex.Fields[model.FieldSeries] = rec.SeriesName
	if chapter != "" {
		ex.Fields[model.FieldChapter] = chapter
	}
	if volume != "" {
		ex.Fields[model.FieldVolume] = volume
	}

	c.touch(ctx, session, rec.SeriesName)
	session.RecordFingerprint(rec.SeriesName, fp)

	return model.Decision{
		Status:     model.DecisionManual,
		RuleName:   model.RuleNameManual,
		Extraction: ex,
		FromMemory: true,
	}, true, nil
}

// resolve applies the decision policy to the scored candidates.
func (c *Classifier) resolve(ctx context.Context, session *Session, filename string, candidates []Candidate, derivedSeries string) (model.Decision, error) {
	if len(candidates) == 0 {
		if c.cfg.Auto {
			return model.Decision{Status: model.DecisionSkipped}, nil
		}
		choice, err := c.prompter.ResolveUnmatched(ctx, filename)
		if err != nil {
			return model.Decision{}, err
		}
		return c.applyChoice(ctx, session, filename, choice, candidates)
	}

	best := candidates[0]

	if c.cfg.Auto {
		return c.accept(ctx, session, filename, best, false)
	}

	// Close scores: present functionally distinct groups for disambiguation.
	if len(candidates) > 1 && best.Score-candidates[1].Score <= c.cfg.CloseScoreMargin {
		groups := groupCandidates(candidates)
		if len(groups) > 1 {
			choice, err := c.prompter.SelectAmbiguous(ctx, filename, groups)
			if err != nil {
				return model.Decision{}, err
			}
			if choice.Action == ChoiceSkipSeries && derivedSeries != "" {
				session.SkipSeries(derivedSeries)
				return model.Decision{Status: model.DecisionSkipped}, nil
			}
			return c.applyChoice(ctx, session, filename, choice, groups)
		}
	}

	if best.Score < c.cfg.LowConfidence {
		choice, err := c.prompter.ConfirmLowConfidence(ctx, filename, best)
		if err != nil {
			return model.Decision{}, err
		}
		return c.applyChoice(ctx, session, filename, choice, candidates)
	}

	return c.accept(ctx, session, filename, best, false)
}

// applyChoice turns an operator choice into a terminal decision.
func (c *Classifier) applyChoice(ctx context.Context, session *Session, filename string, choice Choice, candidates []Candidate) (model.Decision, error) {
	switch choice.Action {
	case ChoiceUse:
		if choice.Index < 0 || choice.Index >= len(candidates) {
			return model.Decision{}, fmt.Errorf("choice index %d out of range", choice.Index)
		}
		return c.accept(ctx, session, filename, candidates[choice.Index], true)

	case ChoiceManual:
		ex := choice.Manual
		ex.RuleName = model.RuleNameManual
		series := ex.SeriesName()
		if series == "" {
			return model.Decision{}, fmt.Errorf("manual entry missing series name")
		}
		c.persist(ctx, session, &model.SeriesPattern{
			SeriesName: series,
			RuleName:   model.RuleNameManual,
			IsManual:   true,
			Extraction: ex,
			UseCount:   1,
		})
		session.RecordFingerprint(series, pattern.Fingerprint(filename))
		return model.Decision{
			Status:     model.DecisionManual,
			RuleName:   model.RuleNameManual,
			Extraction: ex,
		}, nil

	case ChoiceSkipSeries:
		if series := seriesOf(candidates); series != "" {
			session.SkipSeries(series)
		}
		return model.Decision{Status: model.DecisionSkipped}, nil

	default:
		return model.Decision{Status: model.DecisionSkipped}, nil
	}
}

// accept finalizes a candidate, persisting it to pattern memory so later
// files in the same series classify consistently without re-prompting.
func (c *Classifier) accept(ctx context.Context, session *Session, filename string, cand Candidate, confirmed bool) (model.Decision, error) {
	series := cand.Extraction.SeriesName()
	if series != "" {
		c.persist(ctx, session, &model.SeriesPattern{
			SeriesName: series,
			RuleName:   cand.Extraction.RuleName,
			Extraction: cand.Extraction,
			UseCount:   1,
		})
		session.RecordFingerprint(series, pattern.Fingerprint(filename))
	}

	slog.Debug("Classification accepted",
		"file", filename,
		"rule", cand.Extraction.RuleName,
		"score", cand.Score,
		"confirmed", confirmed)

	return model.Decision{
		Status:     model.DecisionAccepted,
		RuleName:   cand.Extraction.RuleName,
		Extraction: cand.Extraction,
	}, nil
}

// persist saves a series pattern, degrading to non-remembering mode on store
// failure.
func (c *Classifier) persist(ctx context.Context, session *Session, p *model.SeriesPattern) {
	if c.memory == nil || session.MemoryDown() {
		return
	}
	p.LastUsedAt = time.Now()
	if err := c.memory.SaveSeriesPattern(ctx, p); err != nil {
		common.LogError(err, "Pattern store save failed; continuing without memory", common.Fields{"series": p.SeriesName})
		session.MarkMemoryDown()
	}
}

func (c *Classifier) touch(ctx context.Context, session *Session, series string) {
	if c.memory == nil || session.MemoryDown() {
		return
	}
	if err := c.memory.TouchSeriesPattern(ctx, series); err != nil && !errors.Is(err, common.ErrNotFound) {
		common.LogError(err, "Pattern store update failed; continuing without memory", common.Fields{"series": series})
		session.MarkMemoryDown()
	}
}

// groupCandidates collapses functionally equivalent extractions, keeping the
// highest-scoring representative per (series, chapter, volume) key. Order is
// by representative score, descending.
func groupCandidates(candidates []Candidate) []Candidate {
	seen := make(map[model.GroupKey]bool)
	var groups []Candidate
	for _, cand := range candidates {
		key := cand.Extraction.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		groups = append(groups, cand)
	}
	return groups
}

func seriesOf(candidates []Candidate) string {
	for _, cand := range candidates {
		if s := cand.Extraction.SeriesName(); s != "" {
			return s
		}
	}
	return ""
}
