package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/dgallion1/docextract/internal/values"
)

// ValuesReport is the extracted-values JSON document.
type ValuesReport struct {
	Source  string              `json:"source"`
	Count   int                 `json:"count"`
	Values  []values.Value      `json:"values"`
	Summary []values.TagSummary `json:"summary"`
}

// WriteValuesJSON writes the values with their per-tag summary.
func WriteValuesJSON(path, source string, vals []values.Value) error {
	return WriteJSON(path, ValuesReport{
		Source:  source,
		Count:   len(vals),
		Values:  vals,
		Summary: values.Summarize(vals),
	})
}

var valueColumns = []string{"raw_text", "numeric_value", "tag", "context", "confidence"}

// WriteValuesCSV writes one row per value.
func WriteValuesCSV(path string, vals []values.Value) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(valueColumns)
	for _, v := range vals {
		_ = w.Write([]string{
			v.RawText,
			strconv.FormatFloat(v.NumericValue, 'f', -1, 64),
			string(v.Tag),
			v.Context,
			v.Confidence.String(),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFile(path, buf.Bytes())
}

// WriteValuesXLSX writes a "Values" sheet and a per-tag "Summary" sheet.
func WriteValuesXLSX(path string, vals []values.Value) error {
	valueRows := [][]any{{"Raw Text", "Numeric Value", "Tag", "Context", "Confidence"}}
	for _, v := range vals {
		valueRows = append(valueRows, []any{v.RawText, v.NumericValue, string(v.Tag), v.Context, v.Confidence.String()})
	}

	summaryRows := [][]any{{"Tag", "Count", "Sum", "Mean", "Min", "Max"}}
	for _, s := range values.Summarize(vals) {
		summaryRows = append(summaryRows, []any{string(s.Tag), s.Count, s.Sum, s.Mean, s.Min, s.Max})
	}

	return saveWorkbook(path, []sheet{
		{
			name:   "Values",
			rows:   valueRows,
			header: true,
			widths: []colWidth{{"A", 18}, {"B", 14}, {"C", 14}, {"D", 60}, {"E", 12}},
		},
		{
			name:   "Summary",
			rows:   summaryRows,
			header: true,
			widths: []colWidth{{"A", 14}},
		},
	})
}
