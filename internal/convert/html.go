package convert

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/dgallion1/docextract/internal/document"
	"golang.org/x/net/html"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// HTMLParser handles HTML files. Tables, definition lists, form controls and
// inline data-URI images are surfaced alongside the heading outline.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	doc := &document.Document{
		Title: strings.TrimSuffix(strings.TrimSuffix(filename, ".html"), ".htm"),
	}
	if title := findTitle(root); title != "" {
		doc.Title = title
	}

	md, err := mdConverter.ConvertString(string(src))
	if err != nil {
		return nil, fmt.Errorf("convert html to markdown: %w", err)
	}
	doc.Markdown = md

	labels := collectLabels(root)
	out := newOutline()

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if level := headingLevel(n.Data); level > 0 {
				out.heading(level, textContent(n))
				return
			}

			switch n.Data {
			case "script", "style", "nav", "footer", "header", "head":
				return
			case "table":
				doc.Tables = append(doc.Tables, document.GridTable(htmlTableGrid(n)))
				return
			case "dl":
				for _, kv := range definitionPairs(n) {
					doc.KeyValues = append(doc.KeyValues, kv)
					out.paragraph(kv.Key + ": " + kv.Value)
				}
				return
			case "input", "select", "textarea":
				if item, ok := formItem(n, labels); ok {
					doc.FormItems = append(doc.FormItems, item)
				}
				return
			case "img":
				if pic, ok := dataURIPicture(attr(n, "src")); ok {
					doc.Pictures = append(doc.Pictures, pic)
				}
				return
			case "p", "li", "blockquote", "pre":
				out.paragraph(textContent(n))
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					collectImages(c, doc)
				}
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	if body := findBody(root); body != nil {
		walk(body)
	} else {
		walk(root)
	}
	doc.Sections = out.sections()

	return doc, nil
}

func collectImages(n *html.Node, doc *document.Document) {
	if n.Type == html.ElementNode && n.Data == "img" {
		if pic, ok := dataURIPicture(attr(n, "src")); ok {
			doc.Pictures = append(doc.Pictures, pic)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectImages(c, doc)
	}
}

// htmlTableGrid reads the rows of a table without descending into nested tables.
func htmlTableGrid(table *html.Node) [][]string {
	var grid [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody", "tfoot":
				walk(c)
			case "tr":
				var row []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						row = append(row, textContent(cell))
					}
				}
				grid = append(grid, row)
			}
		}
	}
	walk(table)
	return grid
}

func definitionPairs(dl *html.Node) []document.KeyValue {
	var out []document.KeyValue
	var term string
	for c := dl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "dt":
			term = textContent(c)
		case "dd":
			if term != "" {
				out = append(out, document.KeyValue{Key: term, Value: textContent(c)})
			}
		}
	}
	return out
}

// collectLabels maps control ids to their <label for> text.
func collectLabels(root *html.Node) map[string]string {
	labels := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "label" {
			if id := attr(n, "for"); id != "" {
				labels[id] = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return labels
}

func formItem(n *html.Node, labels map[string]string) (document.FormItem, bool) {
	item := document.FormItem{
		Name: attr(n, "name"),
		Type: n.Data,
	}
	if item.Name == "" {
		item.Name = attr(n, "id")
	}

	switch n.Data {
	case "input":
		item.Type = strings.ToLower(attr(n, "type"))
		if item.Type == "" {
			item.Type = "text"
		}
		switch item.Type {
		case "submit", "button", "reset", "image":
			return item, false
		case "checkbox", "radio":
			item.Value = "false"
			if hasAttr(n, "checked") {
				item.Value = "true"
			}
		default:
			item.Value = attr(n, "value")
		}
	case "textarea":
		item.Value = textContent(n)
	case "select":
		item.Value = selectedOption(n)
	}

	if id := attr(n, "id"); id != "" {
		item.Label = labels[id]
	}
	if item.Label == "" {
		for p := n.Parent; p != nil; p = p.Parent {
			if p.Type == html.ElementNode && p.Data == "label" {
				item.Label = textContent(p)
				break
			}
		}
	}
	return item, true
}

func selectedOption(sel *html.Node) string {
	var first, chosen string
	var found bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "option" {
				v := attr(c, "value")
				if !hasAttr(c, "value") {
					v = textContent(c)
				}
				if first == "" {
					first = v
				}
				if hasAttr(c, "selected") && !found {
					chosen, found = v, true
				}
				continue
			}
			walk(c)
		}
	}
	walk(sel)
	if found {
		return chosen
	}
	return first
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
