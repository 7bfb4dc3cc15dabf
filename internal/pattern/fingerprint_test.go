package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		hasVolume  bool
		hasChapter bool
	}{
		{
			name:       "chapter marker",
			filename:   "My Series c10 (2023).cbz",
			hasChapter: true,
		},
		{
			name:      "volume only",
			filename:  "Another Example v02 (2022).cbz",
			hasVolume: true,
		},
		{
			name:       "bare number counts as chapter",
			filename:   "Another Example 03.cbz",
			hasChapter: true,
		},
		{
			name:       "volume and chapter",
			filename:   "Series v03 - Chapter 12.cbz",
			hasVolume:  true,
			hasChapter: true,
		},
		{
			name:     "no numbering",
			filename: "One Shot Special.cbz",
		},
		{
			name:     "year in parens is not a chapter",
			filename: "Special (2021).cbz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := Fingerprint(tt.filename)
			assert.Equal(t, tt.hasVolume, fp.HasVolume, "HasVolume")
			assert.Equal(t, tt.hasChapter, fp.HasChapter, "HasChapter")
			assert.Equal(t, tt.filename, fp.ExampleFilename)
		})
	}
}

func TestFingerprintMatches(t *testing.T) {
	a := Fingerprint("Series c10.cbz")
	b := Fingerprint("Series c11.cbz")
	c := Fingerprint("Series v02.cbz")

	assert.True(t, a.Matches(b))
	assert.False(t, a.Matches(c))
}

func TestParseNumbering(t *testing.T) {
	tests := []struct {
		remainder string
		chapter   string
		volume    string
	}{
		{" v03 - Chapter 12.cbz", "12", "03"},
		{" 25 (2023).cbz", "25", ""},
		{" v02 (2022).cbz", "", "02"},
		{" c7.5.cbz", "7.5", ""},
		{".cbz", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.remainder, func(t *testing.T) {
			chapter, volume := ParseNumbering(tt.remainder)
			assert.Equal(t, tt.chapter, chapter)
			assert.Equal(t, tt.volume, volume)
		})
	}
}
