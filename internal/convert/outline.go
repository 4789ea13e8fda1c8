package convert

import (
	"strings"

	"github.com/dgallion1/docextract/internal/document"
)

// outline builds a section tree from a flat stream of headings and text
// blocks. Headings nest under the nearest heading of a lower level.
type outline struct {
	root  *document.Section
	stack []outlineEntry
	text  strings.Builder
}

type outlineEntry struct {
	node  *document.Section
	level int
}

func newOutline() *outline {
	root := &document.Section{}
	return &outline{root: root, stack: []outlineEntry{{node: root, level: 0}}}
}

func (o *outline) heading(level int, title string) {
	o.flush()
	n := &document.Section{Title: title}
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	parent := o.stack[len(o.stack)-1].node
	parent.Children = append(parent.Children, n)
	o.stack = append(o.stack, outlineEntry{node: n, level: level})
}

func (o *outline) paragraph(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if o.text.Len() > 0 {
		o.text.WriteString("\n\n")
	}
	o.text.WriteString(t)
}

func (o *outline) flush() {
	t := strings.TrimSpace(o.text.String())
	if t != "" {
		top := o.stack[len(o.stack)-1].node
		if top.Text != "" {
			top.Text += "\n\n" + t
		} else {
			top.Text = t
		}
	}
	o.text.Reset()
}

// sections returns the finished tree. Text that precedes the first heading
// becomes a leading leaf section.
func (o *outline) sections() []*document.Section {
	o.flush()
	var out []*document.Section
	if o.root.Text != "" {
		out = append(out, &document.Section{Text: o.root.Text})
	}
	return append(out, o.root.Children...)
}
