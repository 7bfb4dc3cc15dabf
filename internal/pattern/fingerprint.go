package pattern

import (
	"regexp"

	"github.com/dieseltech/stacks/internal/model"
)

// Token regexes used for structural fingerprinting and for parsing the
// numbering out of a filename remainder. These run on the std regexp engine;
// no lookarounds are needed here.
var (
	volumeToken  = regexp.MustCompile(`(?i)(^|[\s_(\[])v(ol(ume)?)?\.?\s?(\d+)`)
	chapterToken = regexp.MustCompile(`(?i)(^|[\s_(\[])(c|ch|chp|chapter)\.?\s?(\d+(?:\.\d+)?(?:-\d+)?)`)
	parenGroup   = regexp.MustCompile(`\([^)]*\)`)
	bareNumber   = regexp.MustCompile(`(^|[\s_#])(\d+(?:\.\d+)?(?:-\d+)?)([\s_).\]\[]|$)`)
)

// Fingerprint derives the structural shape of a filename: whether it carries
// volume and/or chapter numbering. Used to detect format drift within a
// series across one run.
func Fingerprint(filename string) model.FormatFingerprint {
	fp := model.FormatFingerprint{ExampleFilename: filename}
	fp.HasVolume = volumeToken.MatchString(filename)

	if chapterToken.MatchString(filename) {
		fp.HasChapter = true
		return fp
	}

	// A bare number outside parentheticals and volume tokens counts as
	// chapter numbering.
	stripped := parenGroup.ReplaceAllString(filename, " ")
	stripped = volumeToken.ReplaceAllString(stripped, " ")
	fp.HasChapter = bareNumber.MatchString(stripped)
	return fp
}

// ParseNumbering extracts chapter and volume text from a filename remainder,
// e.g. the part following a remembered series name. Either result may be
// empty.
func ParseNumbering(remainder string) (chapter, volume string) {
	if m := volumeToken.FindStringSubmatch(remainder); m != nil {
		volume = m[4]
	}
	if m := chapterToken.FindStringSubmatch(remainder); m != nil {
		chapter = m[3]
		return chapter, volume
	}

	stripped := parenGroup.ReplaceAllString(remainder, " ")
	stripped = volumeToken.ReplaceAllString(stripped, " ")
	if m := bareNumber.FindStringSubmatch(stripped); m != nil {
		chapter = m[2]
	}
	return chapter, volume
}
