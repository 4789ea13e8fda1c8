package values

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Tag is the semantic category assigned to a numeric match.
type Tag string

const (
	TagCurrency    Tag = "currency"
	TagPercentage  Tag = "percentage"
	TagDate        Tag = "date"
	TagYear        Tag = "year"
	TagPhone       Tag = "phone"
	TagQuantity    Tag = "quantity"
	TagDecimal     Tag = "decimal"
	TagInteger     Tag = "integer"
	TagPrice       Tag = "price"
	TagMeasurement Tag = "measurement"
	TagTemperature Tag = "temperature"
	TagDimension   Tag = "dimension"
	TagTime        Tag = "time"
	TagAge         Tag = "age"
	TagScore       Tag = "score"
	TagID          Tag = "id"
)

// Confidence is an ordinal certainty level; higher is more certain.
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	}
	return fmt.Sprintf("Confidence(%d)", int(c))
}

// MarshalJSON encodes the confidence as its name.
func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (c *Confidence) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "low":
		*c = Low
	case "medium":
		*c = Medium
	case "high":
		*c = High
	default:
		return fmt.Errorf("unknown confidence %q", s)
	}
	return nil
}

// Rule is one catalog entry: a pattern, the tag it assigns by default and
// its base confidence.
type Rule struct {
	Name       string
	Pattern    *regexp.Regexp
	Tag        Tag
	Confidence Confidence
}

const (
	amount   = `\d+(?:[,.]\d{3})*(?:[.,]\d+)?`
	isoCodes = `(?:USD|EUR|GBP|JPY|CNY)`
)

// catalog is evaluated in declaration order; earlier rules win ties.
var catalog = []Rule{
	{
		Name:       "currency_symbol",
		Pattern:    regexp.MustCompile(`(?i)[$€£¥]\s?` + amount),
		Tag:        TagCurrency,
		Confidence: High,
	},
	{
		Name:       "currency_code",
		Pattern:    regexp.MustCompile(`(?i)\b` + isoCodes + `\s?` + amount + `|` + amount + `\s?` + isoCodes + `\b`),
		Tag:        TagCurrency,
		Confidence: High,
	},
	{
		Name:       "percentage",
		Pattern:    regexp.MustCompile(`(?i)\d+(?:[.,]\d+)?\s?%`),
		Tag:        TagPercentage,
		Confidence: High,
	},
	{
		Name:       "date_ymd",
		Pattern:    regexp.MustCompile(`(?i)\b\d{4}[-/]\d{1,2}[-/]\d{1,2}\b`),
		Tag:        TagDate,
		Confidence: High,
	},
	{
		Name:       "date_dmy",
		Pattern:    regexp.MustCompile(`(?i)\b\d{1,2}[-/]\d{1,2}[-/](?:\d{4}|\d{2})\b`),
		Tag:        TagDate,
		Confidence: Medium,
	},
	{
		Name:       "year",
		Pattern:    regexp.MustCompile(`(?i)\b(?:19|20)\d{2}\b`),
		Tag:        TagYear,
		Confidence: Medium,
	},
	{
		Name:       "phone",
		Pattern:    regexp.MustCompile(`(?i)\(?\b\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		Tag:        TagPhone,
		Confidence: High,
	},
	{
		Name:       "quantity",
		Pattern:    regexp.MustCompile(`(?i)\b\d{1,3}(?:,\d{3})+(?:\.\d+)?\b`),
		Tag:        TagQuantity,
		Confidence: Medium,
	},
	{
		Name:       "decimal",
		Pattern:    regexp.MustCompile(`(?i)\b\d+\.\d+\b`),
		Tag:        TagDecimal,
		Confidence: Medium,
	},
	{
		Name:       "integer",
		Pattern:    regexp.MustCompile(`(?i)\b\d+\b`),
		Tag:        TagInteger,
		Confidence: Low,
	},
}

// Catalog returns a copy of the rule catalog in evaluation order.
func Catalog() []Rule {
	out := make([]Rule, len(catalog))
	copy(out, catalog)
	return out
}
