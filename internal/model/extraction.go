// Package model defines the core domain types shared across the application.
package model

import "strings"

// Field names an extraction rule can produce from a filename.
type Field string

// Known extraction fields.
const (
	FieldSeries  Field = "Series"
	FieldTitle   Field = "Title"
	FieldVolume  Field = "Volume"
	FieldChapter Field = "Chapter"
	FieldYear    Field = "Year"
	FieldExtra   Field = "Extra"
	FieldSource  Field = "Source"
	FieldPart    Field = "Part"
)

// Extraction is the result of applying one extraction rule to one filename.
// Absent fields are not present in the map.
type Extraction struct {
	Fields   map[Field]string `json:"fields"`
	RuleName string           `json:"rule_name"`
}

// NewExtraction creates an extraction for the given rule with no fields yet.
func NewExtraction(ruleName string) Extraction {
	return Extraction{
		RuleName: ruleName,
		Fields:   make(map[Field]string),
	}
}

// Get returns the value of a field, or "" if absent.
func (e Extraction) Get(f Field) string {
	return e.Fields[f]
}

// Has reports whether a field was extracted with a non-empty value.
func (e Extraction) Has(f Field) bool {
	return strings.TrimSpace(e.Fields[f]) != ""
}

// SeriesName returns the name field, preferring Series over Title.
func (e Extraction) SeriesName() string {
	if s := strings.TrimSpace(e.Fields[FieldSeries]); s != "" {
		return s
	}
	return strings.TrimSpace(e.Fields[FieldTitle])
}

// Chapter returns the extracted chapter text, if any.
func (e Extraction) Chapter() string {
	return strings.TrimSpace(e.Fields[FieldChapter])
}

// Volume returns the extracted volume text, if any.
func (e Extraction) Volume() string {
	return strings.TrimSpace(e.Fields[FieldVolume])
}

// GroupKey identifies functionally equivalent extractions: two extractions
// that agree on series, chapter and volume name the same library file no
// matter which rule produced them.
type GroupKey struct {
	Series  string
	Chapter string
	Volume  string
}

// Key returns the functional-equivalence key for this extraction.
func (e Extraction) Key() GroupKey {
	return GroupKey{
		Series:  e.SeriesName(),
		Chapter: e.Chapter(),
		Volume:  e.Volume(),
	}
}
