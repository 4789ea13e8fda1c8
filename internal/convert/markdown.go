package convert

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docextract/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// MarkdownParser handles Markdown files using goldmark. GFM tables become
// document tables; front matter and definition lists become key/value items.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	front, src := splitFrontMatter(raw)

	doc := &document.Document{
		Title:    strings.TrimSuffix(strings.TrimSuffix(filename, ".md"), ".markdown"),
		Markdown: string(src),
	}

	if len(front) > 0 {
		kvs, err := frontMatterItems(front)
		if err != nil {
			return nil, fmt.Errorf("parse front matter: %w", err)
		}
		doc.KeyValues = append(doc.KeyValues, kvs...)
		for _, kv := range kvs {
			if strings.EqualFold(kv.Key, "title") && kv.Value != "" {
				doc.Title = kv.Value
			}
		}
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.DefinitionList))
	root := md.Parser().Parse(text.NewReader(src))

	out := newOutline()
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			out.heading(node.Level, inlineText(node, src))

		case *extast.Table:
			doc.Tables = append(doc.Tables, document.GridTable(markdownTableGrid(node, src)))

		case *extast.DefinitionList:
			for _, kv := range definitionItems(node, src) {
				doc.KeyValues = append(doc.KeyValues, kv)
				out.paragraph(kv.Key + ": " + kv.Value)
			}

		default:
			out.paragraph(blockText(n, src))
		}
	}
	doc.Sections = out.sections()

	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if img, ok := n.(*ast.Image); ok && entering {
			if pic, ok := dataURIPicture(string(img.Destination)); ok {
				doc.Pictures = append(doc.Pictures, pic)
			}
		}
		return ast.WalkContinue, nil
	})

	return doc, nil
}

// splitFrontMatter separates a leading "---" YAML block from the body.
func splitFrontMatter(src []byte) (front, body []byte) {
	normalized := bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, src
	}
	rest := normalized[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, src
	}
	front = rest[:end]
	body = rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}
	return front, body
}

// frontMatterItems flattens a YAML mapping into key/value items in source order.
func frontMatterItems(front []byte) ([]document.KeyValue, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(front, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}
	m := node.Content[0]
	var out []document.KeyValue
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i], m.Content[i+1]
		out = append(out, document.KeyValue{Key: key.Value, Value: yamlValue(val)})
	}
	return out, nil
}

func yamlValue(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Value
	case yaml.SequenceNode:
		parts := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			parts = append(parts, yamlValue(c))
		}
		return strings.Join(parts, ", ")
	default:
		b, err := yaml.Marshal(n)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
}

func markdownTableGrid(t *extast.Table, src []byte) [][]string {
	var grid [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, inlineText(cell, src))
		}
		grid = append(grid, cells)
	}
	return grid
}

func definitionItems(dl *extast.DefinitionList, src []byte) []document.KeyValue {
	var out []document.KeyValue
	var term string
	for n := dl.FirstChild(); n != nil; n = n.NextSibling() {
		switch n.(type) {
		case *extast.DefinitionTerm:
			term = inlineText(n, src)
		case *extast.DefinitionDescription:
			if term != "" {
				out = append(out, document.KeyValue{Key: term, Value: blockText(n, src)})
			}
		}
	}
	return out
}

// blockText returns the readable text of a block: inline content for leaf
// blocks, raw lines for code, and recursion for containers.
func blockText(n ast.Node, src []byte) string {
	switch n.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		var buf bytes.Buffer
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		return strings.TrimSpace(buf.String())
	case *ast.ThematicBreak:
		return ""
	}

	if n.FirstChild() != nil && n.FirstChild().Type() == ast.TypeInline {
		return inlineText(n, src)
	}

	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t := blockText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// inlineText concatenates the visible text of inline children.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				buf.Write(t.Segment.Value(src))
				if t.HardLineBreak() || t.SoftLineBreak() {
					buf.WriteByte('\n')
				}
			case *ast.String:
				buf.Write(t.Value)
			case *ast.AutoLink:
				buf.Write(t.Label(src))
			case *ast.RawHTML:
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(buf.String())
}
