// Package values finds numeric values in plain text and classifies them
// with a fixed pattern catalog refined by keyword context.
package values

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// ContextRadius is the number of characters taken on each side of a match.
const ContextRadius = 50

// Value is one recognized numeric occurrence.
type Value struct {
	RawText      string     `json:"raw_text"`
	NumericValue float64    `json:"numeric_value"`
	Tag          Tag        `json:"tag"`
	Context      string     `json:"context"`
	Confidence   Confidence `json:"confidence"`
	Offset       int        `json:"offset"` // Byte offset of RawText in the source text
}

// Extractor runs a rule catalog over text.
type Extractor struct {
	rules []Rule
}

// NewExtractor returns an Extractor over the default catalog.
func NewExtractor() *Extractor {
	return &Extractor{rules: catalog}
}

// Extract uses the default catalog.
func Extract(text string) []Value {
	return NewExtractor().Extract(text)
}

type seenKey struct {
	offset int
	raw    string
}

// Extract scans text with every rule in order and returns the classified
// values in production order: rule order, then left to right. Exact
// (offset, text) duplicates are dropped, and short low-confidence integers
// are filtered out as noise.
func (e *Extractor) Extract(text string) []Value {
	seen := make(map[seenKey]bool)
	var out []Value

	for _, rule := range e.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			raw := text[start:end]
			key := seenKey{offset: start, raw: raw}
			if seen[key] {
				continue
			}
			seen[key] = true

			ctx := contextWindow(text, start, end)
			tag, conf := Refine(rule.Tag, rule.Confidence, ctx)
			out = append(out, Value{
				RawText:      raw,
				NumericValue: ParseNumber(raw),
				Tag:          tag,
				Context:      ctx,
				Confidence:   conf,
				Offset:       start,
			})
		}
	}

	filtered := out[:0]
	for _, v := range out {
		if isNoise(v) {
			continue
		}
		filtered = append(filtered, v)
	}
	return filtered
}

// isNoise reports short bare integers, which are mostly page numbers and
// list markers.
func isNoise(v Value) bool {
	return v.Tag == TagInteger && v.Confidence == Low && v.NumericValue < 10
}

// contextWindow returns up to ContextRadius characters on each side of the
// match, with newlines turned into spaces.
func contextWindow(text string, start, end int) string {
	lo := start
	for range ContextRadius {
		if lo == 0 {
			break
		}
		_, size := utf8.DecodeLastRuneInString(text[:lo])
		lo -= size
	}
	hi := end
	for range ContextRadius {
		if hi == len(text) {
			break
		}
		_, size := utf8.DecodeRuneInString(text[hi:])
		hi += size
	}
	window := text[lo:hi]
	window = strings.ReplaceAll(window, "\r\n", " ")
	window = strings.ReplaceAll(window, "\n", " ")
	window = strings.ReplaceAll(window, "\r", " ")
	return strings.TrimSpace(window)
}

// ParseNumber normalizes a matched string to a float. Everything except
// digits, '.', ',' and '-' is dropped. When both separators occur the last
// one is the decimal point; a lone ',' is a grouping separator. Unparsable
// input yields 0.
func ParseNumber(raw string) float64 {
	var sb strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			sb.WriteRune(r)
		}
	}
	cleaned := sb.String()

	lastDot := strings.LastIndexByte(cleaned, '.')
	lastComma := strings.LastIndexByte(cleaned, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return f
}
