package convert

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/dgallion1/docextract/internal/document"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Body tables become document tables and
// embedded media images become pictures.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	// go-docx needs a ReaderAt+size, so write to temp file.
	tmp, err := os.CreateTemp("", "docextract-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}

	d, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	doc := &document.Document{
		Title: strings.TrimSuffix(filename, ".docx"),
	}

	out := newOutline()
	for _, item := range d.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			level := docxHeadingLevel(it)
			text := docxParagraphText(it)
			if level > 0 && text != "" {
				out.heading(level, text)
			} else {
				out.paragraph(text)
			}
		case *docx.Table:
			doc.Tables = append(doc.Tables, document.GridTable(docxTableGrid(it)))
		}
	}
	doc.Sections = out.sections()

	_ = d.RangeRelationships(func(rel *docx.Relationship) error {
		if rel.Type != docx.REL_IMAGE || rel.TargetMode == "External" {
			return nil
		}
		m := d.Media(path.Base(rel.Target))
		if m == nil {
			doc.Pictures = append(doc.Pictures, &blobPicture{err: fmt.Errorf("media %q not found", rel.Target)})
			return nil
		}
		doc.Pictures = append(doc.Pictures, &blobPicture{data: m.Data})
		return nil
	})

	return doc, nil
}

func docxTableGrid(t *docx.Table) [][]string {
	var grid [][]string
	for _, row := range t.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				if s := docxParagraphText(para); s != "" {
					parts = append(parts, s)
				}
			}
			cells = append(cells, strings.Join(parts, "\n"))
		}
		grid = append(grid, cells)
	}
	return grid
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") {
		if style == "title" {
			return 1
		}
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch t := rc.(type) {
			case *docx.Text:
				buf.WriteString(t.Text)
			case *docx.Tab:
				buf.WriteByte('\t')
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
