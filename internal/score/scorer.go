// Package score turns a raw extraction into a numeric confidence score.
// Higher is better; non-positive scores mean "no usable match".
package score

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dieseltech/stacks/internal/model"
	"github.com/dieseltech/stacks/internal/pattern"
)

// Static field weights. A present field contributes its weight before any
// plausibility adjustment.
var fieldWeights = map[model.Field]float64{
	model.FieldSeries:  10,
	model.FieldTitle:   10,
	model.FieldChapter: 8,
	model.FieldVolume:  6,
	model.FieldYear:    3,
	model.FieldExtra:   2,
	model.FieldSource:  1,
	model.FieldPart:    1,
}

// Adjustment constants, tuned against real download sets.
const (
	highPrecisionBonus  = 3
	nameLengthBonusCap  = 3
	numericNamePenalty  = 15
	nameChapterSuffix   = 10
	embeddedMarker      = 10
	lowOverlapPenalty   = 8
	singleWordPenalty   = 5
	chapterRangeBonus   = 5
	chapterHyphenBonus  = 2
	chapterBadPenalty   = 10
	chapterTextPenalty  = 8
	volumeRangeBonus    = 4
	volumeBadPenalty    = 8
	volumeLetterPenalty = 6
	yearBonus           = 3
	yearPenalty         = 12
	pollutionPenalty    = 10
	completenessBonus   = 6
	noNamePenalty       = 20
	coverageBonus       = 4
	coverageThreshold   = 0.6
	overlapThreshold    = 0.3
	minVolume           = 1
	maxVolume           = 100
)

var (
	trailingSeparator  = regexp.MustCompile(`[-_~+]\s*$`)
	chapterMarkerTail  = regexp.MustCompile(`(?i)(^|[\s_])(c|ch|chp|chapter)\.?$`)
	volumeOnlyField    = regexp.MustCompile(`(?i)^(v|vol|volume)?\.?\s*\d+$`)
	embeddedVolMarker  = regexp.MustCompile(`(?i)(^|[\s_(\[])(v|vol|volume|s|season|ep|episode)\.?\s?\d+`)
	letterRun          = regexp.MustCompile(`[A-Za-z]{4,}`)
	anyLetter          = regexp.MustCompile(`[A-Za-z]`)
	volumeInsideField  = regexp.MustCompile(`(?i)v(ol(ume)?)?\.?\s?\d+`)
	wordSplit          = regexp.MustCompile(`[^\pL\pN]+`)
	purelyNumericField = regexp.MustCompile(`^[\d\s.\-]+$`)
)

// Config holds the tunable scoring parameters.
type Config struct {
	// MaxChapter is the maximum plausible chapter number.
	MaxChapter int
}

// DefaultConfig returns the default scoring parameters.
func DefaultConfig() Config {
	return Config{MaxChapter: 500}
}

// Trace records the individual scoring steps for debug logging.
type Trace struct {
	Steps []string
	Total float64
}

func (t *Trace) add(delta float64, reason string) {
	t.Total += delta
	t.Steps = append(t.Steps, fmt.Sprintf("%+.1f %s", delta, reason))
}

// Scorer scores extractions. It is a pure function of its inputs apart from
// the clock used for year plausibility.
type Scorer struct {
	now func() time.Time
	cfg Config
}

// NewScorer creates a scorer with the given configuration.
func NewScorer(cfg Config) *Scorer {
	if cfg.MaxChapter <= 0 {
		cfg.MaxChapter = DefaultConfig().MaxChapter
	}
	return &Scorer{cfg: cfg, now: time.Now}
}

// Score computes the confidence score for an extraction against the filename
// it was extracted from. Non-positive results are unusable.
func (s *Scorer) Score(ex model.Extraction, filename string) (float64, Trace) {
	var t Trace

	name := ex.SeriesName()

	// Structural validation rejects outright.
	if reason, bad := s.structurallyInvalid(ex, name); bad {
		t.Steps = append(t.Steps, "rejected: "+reason)
		t.Total = 0
		return 0, t
	}

	if pattern.HighPrecisionRules[ex.RuleName] {
		t.add(highPrecisionBonus, "high-precision rule "+ex.RuleName)
	}

	for f := range ex.Fields {
		if ex.Has(f) {
			t.add(fieldWeights[f], "field "+string(f))
		}
	}

	polluted := s.scoreName(&t, ex, name, filename)
	s.scoreChapter(&t, ex)
	s.scoreVolume(&t, ex)
	s.scoreYear(&t, ex)
	polluted = s.scorePollution(&t, ex, name) || polluted

	hasNumbering := ex.Has(model.FieldChapter) || ex.Has(model.FieldVolume)
	switch {
	case name == "":
		t.add(-noNamePenalty, "no name field")
	case hasNumbering && !polluted:
		t.add(completenessBonus, "name and numbering present")
	}

	if !polluted && s.coverage(ex, filename) > coverageThreshold {
		t.add(coverageBonus, "extraction covers most of filename")
	}

	return t.Total, t
}

// Usable reports whether a score is high enough to act on.
func Usable(score float64) bool {
	return score > 0
}

// structurallyInvalid applies the hard rejection rules: a name ending in a
// bare separator or chapter marker, or a name that is only a volume token.
func (s *Scorer) structurallyInvalid(ex model.Extraction, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	if trailingSeparator.MatchString(name) {
		return "name ends with bare separator", true
	}
	if chapterMarkerTail.MatchString(name) {
		return "name ends with chapter marker", true
	}
	if volumeOnlyField.MatchString(name) && strings.ContainsAny(name, "0123456789") {
		return "name is only a volume token", true
	}
	return "", false
}

func (s *Scorer) scoreName(t *Trace, ex model.Extraction, name, filename string) bool {
	if name == "" {
		return false
	}

	t.add(min(float64(len(name))/10, nameLengthBonusCap), "name length")

	penalized := false
	if purelyNumericField.MatchString(name) {
		t.add(-numericNamePenalty, "name is purely numeric")
		penalized = true
	}
	if embeddedVolMarker.MatchString(name) {
		t.add(-embeddedMarker, "name contains volume/season/episode marker")
		penalized = true
	}
	if overlap := wordOverlap(name, filename); overlap < overlapThreshold {
		t.add(-lowOverlapPenalty, "low word overlap with filename")
		penalized = true
	}
	nameWords := len(words(name))
	if nameWords == 1 && len(words(filename)) >= 3 {
		t.add(-singleWordPenalty, "single word name from multi-word filename")
		penalized = true
	}
	return penalized
}

func (s *Scorer) scoreChapter(t *Trace, ex model.Extraction) {
	if !ex.Has(model.FieldChapter) {
		return
	}
	ch := ex.Chapter()

	if letterRun.MatchString(ch) {
		t.add(-chapterTextPenalty, "chapter contains long letter run")
	}

	lo, hi, numeric := parseNumberOrRange(ch)
	switch {
	case numeric && lo >= 0 && hi <= float64(s.cfg.MaxChapter):
		t.add(chapterRangeBonus, "chapter in plausible range")
		if strings.Contains(ch, "-") {
			t.add(chapterHyphenBonus, "hyphenated chapter range")
		}
	default:
		t.add(-chapterBadPenalty, "chapter not a plausible number")
	}
}

func (s *Scorer) scoreVolume(t *Trace, ex model.Extraction) {
	if !ex.Has(model.FieldVolume) {
		return
	}
	vol := ex.Volume()

	if anyLetter.MatchString(vol) {
		t.add(-volumeLetterPenalty, "volume contains letters")
	}

	n, err := strconv.Atoi(strings.TrimLeft(digitsOnly(vol), "0") + zeroGuard(vol))
	if err == nil && n >= minVolume && n <= maxVolume {
		t.add(volumeRangeBonus, "volume in plausible range")
	} else {
		t.add(-volumeBadPenalty, "volume not a plausible number")
	}
}

func (s *Scorer) scoreYear(t *Trace, ex model.Extraction) {
	if !ex.Has(model.FieldYear) {
		return
	}
	y, err := strconv.Atoi(ex.Get(model.FieldYear))
	if err == nil && y >= 1900 && y <= s.now().Year()+5 {
		t.add(yearBonus, "year plausible")
	} else {
		t.add(-yearPenalty, "year implausible")
	}
}

// scorePollution runs the cross-field checks and returns true if any fired.
func (s *Scorer) scorePollution(t *Trace, ex model.Extraction, name string) bool {
	polluted := false
	ch := ex.Chapter()

	if ch != "" && anyLetter.MatchString(ch) && name != "" &&
		strings.Contains(strings.ToLower(name), strings.ToLower(strings.TrimSpace(ch))) {
		t.add(-pollutionPenalty, "chapter looks like truncated series name")
		polluted = true
	}

	if ch != "" && name != "" {
		if d := chapterDigits(ch); d != "" && strings.HasSuffix(strings.TrimSpace(name), d) {
			t.add(-pollutionPenalty, "name ends with repeated chapter number")
			polluted = true
		}
	}

	if ch != "" && volumeInsideField.MatchString(ch) {
		t.add(-pollutionPenalty, "volume token inside chapter field")
		polluted = true
	}

	return polluted
}

func (s *Scorer) coverage(ex model.Extraction, filename string) float64 {
	if len(filename) == 0 {
		return 0
	}
	total := 0
	for _, v := range ex.Fields {
		total += len(v)
	}
	return float64(total) / float64(len(filename))
}

func words(s string) []string {
	var out []string
	for _, w := range wordSplit.Split(strings.ToLower(s), -1) {
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func wordOverlap(name, filename string) float64 {
	nw := words(name)
	if len(nw) == 0 {
		return 0
	}
	fw := make(map[string]bool)
	for _, w := range words(filename) {
		fw[w] = true
	}
	hit := 0
	for _, w := range nw {
		if fw[w] {
			hit++
		}
	}
	return float64(hit) / float64(len(nw))
}

// parseNumberOrRange parses "12", "12.5" or "10-12" style chapter text.
func parseNumberOrRange(s string) (lo, hi float64, ok bool) {
	parts := strings.SplitN(s, "-", 2)
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	hi = lo
	if len(parts) == 2 {
		hi, err = strconv.ParseFloat(strings.TrimPrefix(strings.TrimSpace(parts[1]), "c"), 64)
		if err != nil {
			return 0, 0, false
		}
	}
	return lo, hi, true
}

func chapterDigits(ch string) string {
	return strings.TrimLeft(digitsOnly(ch), "0") + zeroGuard(ch)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// zeroGuard keeps "0" and "00" from collapsing to the empty string when
// leading zeros are trimmed.
func zeroGuard(s string) string {
	d := digitsOnly(s)
	if d != "" && strings.Trim(d, "0") == "" {
		return "0"
	}
	return ""
}
