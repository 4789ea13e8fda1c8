// Package export writes the per-document artifacts: structured dumps, text
// renderings, table spreadsheets, extracted values and images.
package export

import (
	"fmt"
	"path/filepath"
)

// Names builds artifact paths for one input. Every artifact lives in Dir and
// is prefixed with Base, the input's file name without extension.
type Names struct {
	Dir  string
	Base string
}

func (n Names) path(suffix string) string {
	return filepath.Join(n.Dir, n.Base+suffix)
}

func (n Names) JSON() string       { return n.path(".json") }
func (n Names) Markdown() string   { return n.path(".md") }
func (n Names) HTML() string       { return n.path(".html") }
func (n Names) TablesXLSX() string { return n.path("_tables.xlsx") }
func (n Names) KeyValues() string  { return n.path("_key_values.json") }
func (n Names) FormData() string   { return n.path("_form_data.json") }
func (n Names) ImagesDir() string  { return n.path("_images") }

// TableCSV is the CSV path for the table at 1-based index i.
func (n Names) TableCSV(i int) string {
	return n.path(fmt.Sprintf("_table_%d.csv", i))
}

// Values is the extracted-values path with the given extension ("json", "csv", "xlsx").
func (n Names) Values(ext string) string {
	return n.path("_extracted_values." + ext)
}

// Image is the path of the i-th exported figure (1-based).
func (n Names) Image(i int) string {
	return filepath.Join(n.ImagesDir(), fmt.Sprintf("figure_%d.png", i))
}
