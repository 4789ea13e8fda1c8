package values

import (
	"regexp"
	"strings"
)

// keywordSet maps a refined tag to its trigger words.
type keywordSet struct {
	tag     Tag
	words   []string
	pattern *regexp.Regexp
}

// keywordSets are scanned in declaration order; the first hit wins.
var keywordSets = buildKeywordSets([]struct {
	tag   Tag
	words []string
}{
	{TagPrice, []string{"price", "cost", "fee", "charge", "amount", "total", "subtotal", "payment", "paid"}},
	{TagQuantity, []string{"quantity", "qty", "units", "unit", "items", "pieces", "pcs", "count"}},
	{TagPercentage, []string{"percent", "percentage", "pct", "rate", "ratio", "share"}},
	{TagDate, []string{"date", "dated", "due", "deadline", "issued", "expires", "expiry"}},
	{TagID, []string{"id", "ref", "reference", "invoice", "order", "account", "serial", "sku", "code"}},
	{TagMeasurement, []string{"weight", "mass", "length", "distance", "kg", "lb", "lbs", "km", "miles", "meters", "liters", "ml", "gallons"}},
	{TagTemperature, []string{"temperature", "temp", "degrees", "celsius", "fahrenheit"}},
	{TagDimension, []string{"dimension", "dimensions", "width", "height", "depth", "size", "area", "sq"}},
	{TagTime, []string{"time", "hour", "hours", "hrs", "minutes", "mins", "seconds", "secs", "duration"}},
	{TagAge, []string{"age", "aged", "old"}},
	{TagScore, []string{"score", "rating", "points", "grade", "rank"}},
})

func buildKeywordSets(defs []struct {
	tag   Tag
	words []string
}) []keywordSet {
	sets := make([]keywordSet, 0, len(defs))
	for _, d := range defs {
		quoted := make([]string, len(d.words))
		for i, w := range d.words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		sets = append(sets, keywordSet{
			tag:     d.tag,
			words:   d.words,
			pattern: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}
	return sets
}

// refinable lists the generic number tags that context may specialize.
// Structural tags (currency, percentage, date, phone, year) are never overridden.
var refinable = map[Tag]bool{
	TagInteger:  true,
	TagDecimal:  true,
	TagQuantity: true,
}

// Refine applies keyword context to a match's default tag and confidence.
// context is the raw context window; matching is case-insensitive and on
// whole words. A refined tag is always reported with High confidence.
func Refine(tag Tag, conf Confidence, context string) (Tag, Confidence) {
	if !refinable[tag] {
		return tag, conf
	}
	lower := strings.ToLower(context)
	for _, set := range keywordSets {
		if set.tag == tag {
			continue
		}
		if set.pattern.MatchString(lower) {
			return set.tag, High
		}
	}
	return tag, conf
}

// Keywords returns the trigger words for a refined tag, or nil.
func Keywords(tag Tag) []string {
	for _, set := range keywordSets {
		if set.tag == tag {
			out := make([]string, len(set.words))
			copy(out, set.words)
			return out
		}
	}
	return nil
}
