package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fumiama/go-docx"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		want     any
	}{
		{"a.txt", &TextParser{}},
		{"a.MD", &MarkdownParser{}},
		{"a.markdown", &MarkdownParser{}},
		{"a.csv", &CSVParser{}},
		{"a.htm", &HTMLParser{}},
		{"a.pdf", &PDFParser{}},
		{"a.docx", &DOCXParser{}},
	}
	for _, tt := range tests {
		p, err := ForFile(tt.filename)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.filename, err)
		}
		if fmt.Sprintf("%T", p) != fmt.Sprintf("%T", tt.want) {
			t.Errorf("%s: expected %T, got %T", tt.filename, tt.want, p)
		}
		if !IsSupportedExtension(tt.filename) {
			t.Errorf("%s: expected supported", tt.filename)
		}
	}

	if _, err := ForFile("slides.pptx"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if IsSupportedExtension("slides.pptx") {
		t.Error("expected pptx to be unsupported")
	}
}

func TestBaseName(t *testing.T) {
	if got := BaseName("/data/in/Q3 report.v2.pdf"); got != "Q3 report.v2" {
		t.Errorf("expected %q, got %q", "Q3 report.v2", got)
	}
}

func TestFileConverter_Convert(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memo.txt")
	if err := os.WriteFile(path, []byte("Total: 1500\n\nSigned."), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := New(Options{}).Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Name != "memo" || doc.Title != "memo" {
		t.Errorf("expected name and title memo, got %q %q", doc.Name, doc.Title)
	}
	if doc.Text() != "Total: 1500\nSigned." {
		t.Errorf("unexpected text %q", doc.Text())
	}
}

func TestFileConverter_Errors(t *testing.T) {
	dir := t.TempDir()
	c := New(Options{MaxFileSize: 4})

	if _, err := c.Convert(context.Background(), filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}

	big := filepath.Join(dir, "big.txt")
	if err := os.WriteFile(big, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Convert(context.Background(), big); err == nil {
		t.Error("expected error for oversized file")
	}

	if _, err := c.Convert(context.Background(), filepath.Join(dir, "x.pptx")); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Convert(ctx, big); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSplitPages(t *testing.T) {
	pages := splitPages("one\ftwo\f")
	if len(pages) != 2 || pages[1] != "two" {
		t.Errorf("expected trailing form feed to be ignored, got %q", pages)
	}
}

func docxPara(style, text string) *docx.Paragraph {
	p := &docx.Paragraph{
		Children: []interface{}{
			&docx.Run{Children: []interface{}{&docx.Text{Text: text}}},
		},
	}
	if style != "" {
		p.Properties = &docx.ParagraphProperties{Style: &docx.Style{Val: style}}
	}
	return p
}

func TestDocxHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"", 0},
		{"Heading1", 1},
		{"heading 3", 3},
		{"Title", 1},
		{"Heading9", 0},
		{"Normal", 0},
	}
	for _, tt := range tests {
		if got := docxHeadingLevel(docxPara(tt.style, "x")); got != tt.want {
			t.Errorf("style %q: expected %d, got %d", tt.style, tt.want, got)
		}
	}
}

func TestDocxTableGrid(t *testing.T) {
	tbl := &docx.Table{
		TableRows: []*docx.WTableRow{
			{TableCells: []*docx.WTableCell{
				{Paragraphs: []*docx.Paragraph{docxPara("", "Item")}},
				{Paragraphs: []*docx.Paragraph{docxPara("", "Qty")}},
			}},
			{TableCells: []*docx.WTableCell{
				{Paragraphs: []*docx.Paragraph{docxPara("", "Bolts")}},
				{Paragraphs: []*docx.Paragraph{docxPara("", "12"), docxPara("", "boxes")}},
			}},
		},
	}
	grid := docxTableGrid(tbl)
	if len(grid) != 2 || grid[1][1] != "12\nboxes" {
		t.Errorf("unexpected grid %q", grid)
	}
}
