package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieseltech/stacks/internal/model"
)

func rulesByName(t *testing.T) map[string]Rule {
	t.Helper()
	byName := make(map[string]Rule)
	for _, r := range DefaultRules() {
		byName[r.Name()] = r
	}
	return byName
}

func TestNewRuleRejectsBadExpression(t *testing.T) {
	_, err := NewRule("broken", `(?<Series>.+`)
	require.Error(t, err)
}

func TestRuleMatchMustStartAtBeginning(t *testing.T) {
	rules := rulesByName(t)

	// "Ch" recognizes chapter markers, but only at the start of the name.
	_, ok := rules["Ch"].Attempt("My Series ch. 10.cbz")
	assert.False(t, ok, "mid-string match must not count")

	ex, ok := rules["Ch"].Attempt("ch. 10.cbz")
	require.True(t, ok)
	assert.Equal(t, "10", ex.Chapter())
}

func TestDefaultRulesExtraction(t *testing.T) {
	rules := rulesByName(t)

	tests := []struct {
		name     string
		rule     string
		filename string
		series   string
		chapter  string
		volume   string
		year     string
	}{
		{
			name:     "volume release with year",
			rule:     "Volume",
			filename: "Another Example v02 (2022).cbz",
			series:   "Another Example",
			volume:   "02",
			year:     "2022",
		},
		{
			name:     "chapter marker with year",
			rule:     "ChapterExtras",
			filename: "My Series c10 (2023).cbz",
			series:   "My Series",
			chapter:  "10",
			year:     "2023",
		},
		{
			name:     "bare chapter number",
			rule:     "Ch_bare",
			filename: "Series Name 25 (2023).cbz",
			series:   "Series Name",
			chapter:  "25",
		},
		{
			name:     "literal chapter word",
			rule:     "Simple_Ch",
			filename: "Chapter12.cbz",
			chapter:  "12",
		},
		{
			name:     "chp abbreviation with volume",
			rule:     "Vol_Chp",
			filename: "Some Series vol2 Chp. 4.cbz",
			series:   "Some Series",
			chapter:  "4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := rules[tt.rule]
			require.True(t, ok, "rule %s not registered", tt.rule)

			ex, ok := rule.Attempt(tt.filename)
			require.True(t, ok, "rule %s should match %q", tt.rule, tt.filename)

			assert.Equal(t, tt.series, ex.SeriesName())
			assert.Equal(t, tt.chapter, ex.Chapter())
			assert.Equal(t, tt.volume, ex.Volume())
			assert.Equal(t, tt.year, ex.Get(model.FieldYear))
		})
	}
}

func TestDefaultRulesRejectBareNumberFilename(t *testing.T) {
	// A filename that is only a number carries no extractable structure.
	for _, rule := range DefaultRules() {
		_, ok := rule.Attempt("10.cbz")
		assert.False(t, ok, "rule %s should not match a bare number", rule.Name())
	}
}

func TestRuleOrderIsStable(t *testing.T) {
	first := DefaultRules()
	second := DefaultRules()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Name(), second[i].Name())
	}
}
