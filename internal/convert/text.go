package convert

import (
	"bufio"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docextract/internal/document"
)

// TextParser handles plain text files. Blank lines separate sections, form
// feeds separate pages, and a line underlined with "===" or "---" becomes the
// section title.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &document.Document{
		Title: strings.TrimSuffix(filename, filepath.Ext(filename)),
	}
	var (
		block    []string
		page     = 1
		lastPage = 0
		paged    bool
	)
	flush := func() {
		if len(block) == 0 {
			return
		}
		doc.Sections = append(doc.Sections, textSection(block, page))
		lastPage = page
		block = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		for {
			before, after, found := strings.Cut(line, "\f")
			if !found {
				break
			}
			if strings.TrimSpace(before) != "" {
				block = append(block, before)
			}
			flush()
			page++
			paged = true
			line = after
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	if !paged {
		for _, s := range doc.Sections {
			s.Page = 0
		}
		return doc, nil
	}
	// A trailing form feed does not open a page.
	pages := page
	if lastPage < page {
		pages--
	}
	doc.WithPages(pages)
	return doc, nil
}

func textSection(lines []string, page int) *document.Section {
	s := &document.Section{Page: page}
	if len(lines) >= 2 && isUnderline(lines[1]) {
		s.Title = strings.TrimSpace(lines[0])
		lines = lines[2:]
	}
	s.Text = strings.Join(lines, "\n")
	return s
}

func isUnderline(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) < 3 {
		return false
	}
	return strings.Trim(line, "=") == "" || strings.Trim(line, "-") == ""
}
