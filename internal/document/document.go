package document

import (
	"image"
	"strings"
)

// Document is the converted form of one input file. Optional capabilities are
// explicit fields: a nil Pages means the format has no page concept, and empty
// Tables, Pictures, KeyValues or FormItems mean the converter found none.
type Document struct {
	Name     string     // Input base name without extension
	Title    string     // Document title (from metadata or filename)
	Sections []*Section // Top-level sections

	Tables    []Table
	Pictures  []Picture
	Pages     *int
	KeyValues []KeyValue
	FormItems []FormItem

	// Markdown is the converter's native markdown rendering, if it has one.
	// When empty, RenderMarkdown builds one from Sections and Tables.
	Markdown string
}

// Section is a recursive section in the document tree.
type Section struct {
	Title    string     `json:"title,omitempty"`    // Section heading (empty for leaf text)
	Text     string     `json:"text,omitempty"`     // Text content of this node
	Page     int        `json:"page,omitempty"`     // Source page (0 if N/A)
	Children []*Section `json:"children,omitempty"` // Subsections
}

// Table is a table object that can be converted to a row/column grid.
type Table interface {
	Grid() ([][]string, error)
}

// Picture is a picture object that may be convertible to a raster image.
type Picture interface {
	Image() (image.Image, error)
}

// KeyValue is a key/value pair surfaced by the document.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FormItem is a form field surfaced by the document.
type FormItem struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

// PageCount reports the page count and whether the document supplies one.
func (d *Document) PageCount() (int, bool) {
	if d.Pages == nil {
		return 0, false
	}
	return *d.Pages, true
}

// WithPages sets the page count.
func (d *Document) WithPages(n int) *Document {
	d.Pages = &n
	return d
}

// Text returns the plain-text rendering: headings and section text in reading order.
func (d *Document) Text() string {
	var sb strings.Builder
	var walk func(nodes []*Section)
	walk = func(nodes []*Section) {
		for _, n := range nodes {
			for _, part := range []string{n.Title, n.Text} {
				if part == "" {
					continue
				}
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(part)
			}
			walk(n.Children)
		}
	}
	walk(d.Sections)
	return sb.String()
}

// RenderMarkdown returns the native markdown if present, otherwise renders
// the section tree as headings and paragraphs followed by the converted grids.
func (d *Document) RenderMarkdown(grids []TableGrid) string {
	if d.Markdown != "" {
		return d.Markdown
	}

	var blocks []string
	var walk func(nodes []*Section, depth int)
	walk = func(nodes []*Section, depth int) {
		for _, n := range nodes {
			if n.Title != "" {
				level := min(depth, 6)
				blocks = append(blocks, strings.Repeat("#", level)+" "+n.Title)
			}
			if n.Text != "" {
				blocks = append(blocks, n.Text)
			}
			walk(n.Children, depth+1)
		}
	}
	walk(d.Sections, 1)

	for _, g := range grids {
		blocks = append(blocks, PipeTable(g.Rows))
	}

	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

// PipeTable renders a grid as a GFM pipe table. The first row is the header.
func PipeTable(grid [][]string) string {
	if len(grid) == 0 {
		return ""
	}
	grid = Normalize(grid)
	cols := len(grid[0])

	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for _, cell := range row {
			sb.WriteString(" ")
			sb.WriteString(escapeCell(cell))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(grid[0])
	sb.WriteString("|")
	for range cols {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
	for _, row := range grid[1:] {
		writeRow(row)
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// Normalize returns a copy of grid with every row padded to the widest row.
func Normalize(grid [][]string) [][]string {
	width := 0
	for _, row := range grid {
		width = max(width, len(row))
	}
	out := make([][]string, len(grid))
	for i, row := range grid {
		r := make([]string, width)
		copy(r, row)
		out[i] = r
	}
	return out
}
