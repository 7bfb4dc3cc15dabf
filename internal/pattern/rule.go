// Package pattern implements the ordered library of filename extraction
// rules. Each rule is a named grammar that pulls structured fields (series,
// volume, chapter, year, ...) out of a loosely formatted archive filename.
package pattern

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/dieseltech/stacks/internal/model"
)

// Rule attempts to extract structured fields from a filename.
type Rule interface {
	Name() string
	Attempt(filename string) (model.Extraction, bool)
}

// matchTimeout bounds backtracking on hostile filenames.
const matchTimeout = time.Second

// regexRule extracts named capture groups from the start of a filename.
type regexRule struct {
	re   *regexp2.Regexp
	name string
}

// NewRule compiles a named extraction rule. The expression is matched
// anchored at the start of the filename.
func NewRule(name, expr string) (Rule, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", name, err)
	}
	re.MatchTimeout = matchTimeout

	return &regexRule{name: name, re: re}, nil
}

// MustRule compiles a rule and panics on error; used for the static default set.
func MustRule(name, expr string) Rule {
	r, err := NewRule(name, expr)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *regexRule) Name() string {
	return r.name
}

// Attempt applies the rule to the filename. The match must begin at the
// first character; a match further in is treated as no match.
func (r *regexRule) Attempt(filename string) (model.Extraction, bool) {
	m, err := r.re.FindStringMatch(filename)
	if err != nil || m == nil || m.Index != 0 {
		return model.Extraction{}, false
	}

	ex := model.NewExtraction(r.name)
	for _, g := range m.Groups() {
		if isNumericName(g.Name) || len(g.Captures) == 0 {
			continue
		}
		if v := strings.TrimSpace(g.String()); v != "" {
			ex.Fields[model.Field(g.Name)] = v
		}
	}

	if len(ex.Fields) == 0 {
		return model.Extraction{}, false
	}
	return ex, true
}

// isNumericName filters the positional groups regexp2 reports alongside
// named ones.
func isNumericName(name string) bool {
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(name) > 0
}
