package pattern

// DefaultRules returns the built-in extraction rule set, in evaluation order.
// The order is significant only for stable tie-breaking; every rule is
// attempted and the scorer decides between them.
func DefaultRules() []Rule {
	return []Rule{
		MustRule("Ch", `(\b|_)(c|ch)(\.?\s?)(?<Chapter>(\d+(\.\d)?)(-c?\d+(\.\d)?)?)`),
		MustRule("Ch_bare", `^(?<Series>.+?)(?<!Vol)(?<!Vol.)(?<!Volume)\s(\d\s)?(?<Chapter>\d+(?:\.\d+|-\d+)?)(?:\s\(\d{4}\))?(\b|_|-)`),
		MustRule("Ch_bare2", `^(?!Vol)(?<Series>.*)\s?(?<!vol\. )\sChapter\s(?<Chapter>\d+(?:\.?[\d-]+)?)`),
		MustRule("Volume", `(?<Title>.+?)\s(?:v|V)(?<Volume>\d+)(?:\s-\s(?<Extra>.*?))?\s*(?:\((?<Year>\d{4})\))?\s*(?:\(Digital\))?\s*(?:\((?<Source>[^)]+)\))?`),
		MustRule("ChapterExtras", `(?<Title>.+?)(?=\s+(?:c|ch|chapter)\b|\s+c\d)(?:.*?(?:c|ch|chapter))?\s*(?<Chapter>\d+(?:\.\d+)?)?(?:\s-\s(?<Extra>.*?))?(?:\s*\((?<Year>\d{4})\))?\s*(?:\(Digital\))?\s*(?:\((?<Source>[^)]+)\))?`),
		MustRule("Chapter", `(?<Title>.+?)\s(?:(?:c|ch|chapter)?\s*(?<Chapter>\d+(?:\.\d+)?))?(?:\s-\s(?<Extra>.*?))?\s*(?:\((?<Year>\d{4})\))?\s*(?:\(Digital\))?\s*(?:\((?<Source>[^)]+)\))?`),
		MustRule("Simple_Ch", `Chapter(?<Chapter>\d+(-\d+)?)`),
		MustRule("Vol_Chp", `(?<Series>.*)(\s|_)(vol\d+)?(\s|_)Chp\.? ?(?<Chapter>\d+)`),
		MustRule("V_Ch", `v\d+\.(\s|_)(?<Chapter>\d+(?:.\d+|-\d+)?)`),
		MustRule("Bare_Ch", `^((?!v|vo|vol|Volume).)*(\s|_)(?<Chapter>\.?\d+(?:.\d+|-\d+)?)(?<Part>b)?(\s|_|\[|\()`),
		MustRule("Vol_Chapter", `(?<Volume>((vol|volume|v))?(\s|_)?\.?\d+)(\s|_)(Chp|Chapter)\.?(\s|_)?(?<Chapter>\d+)`),
		MustRule("Vol_Chapter2", `(?<Volume>((vol|volume|v))?(\s|_)?\.?\d+)(\s|_)(?<Chapter>\d+)`),
		MustRule("Vol_Chapter3", `(?<Volume>((vol|volume|v))?(\s|_)?\.?\d+)(\s|_)(?<Chapter>\d+(?:.\d+|-\d+)?)`),
		MustRule("Vol_Chapter4", `(?<Volume>((vol|volume|v))?(\s|_)?\.?\d+)(\s|_)(?<Chapter>\d+(?:.\d+|-\d+)?)(\s|_)(?<Extra>.*?)`),
		MustRule("Complex_Series", `(?<Series>.+?)\s(?<Chapter>\d{3})\s+\(\d{4}\)`),
		MustRule("Complex_Series2", `(?<Series>.+?)\s(?<Chapter>\d{3})\s+\(\d{4}\)\s(?<Extra>.+?)`),
		MustRule("Complex_SeriesDecimal", `(?<Series>.+?)\s(?<Chapter>\d{3}(?:\.\d+)?)\s+\(\d{4}\)`),
		MustRule("Vol_Chapter5", `(\b|_)(c|ch)(\.?\s?)(?<Chapter>(\d+(\.\d)?)(-c?\d+(\.\d)?)?)`),
	}
}

// HighPrecisionRules are the rule names with very low observed false-positive
// rates; the scorer grants them a small bonus.
var HighPrecisionRules = map[string]bool{
	"Ch":        true,
	"Ch_bare2":  true,
	"Simple_Ch": true,
	"Vol_Chp":   true,
}
