package document

import (
	"errors"
	"strings"
	"testing"
)

type brokenTable struct{}

func (brokenTable) Grid() ([][]string, error) { return nil, errors.New("merged cells") }

func sampleDoc() *Document {
	return &Document{
		Name:  "report",
		Title: "report",
		Sections: []*Section{
			{
				Title: "Summary",
				Text:  "Revenue grew.",
				Children: []*Section{
					{Title: "Q4", Text: "Total: 1500"},
				},
			},
		},
		Tables: []Table{
			GridTable{{"a", "b"}, {"1"}},
			brokenTable{},
		},
	}
}

func TestDocument_Text(t *testing.T) {
	got := sampleDoc().Text()
	want := "Summary\nRevenue grew.\nQ4\nTotal: 1500"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestDocument_RenderMarkdownFromSections(t *testing.T) {
	d := sampleDoc()
	md := d.RenderMarkdown(d.Grids(nil))
	for _, want := range []string{"# Summary", "## Q4", "Total: 1500", "| a | b |", "| 1 |  |"} {
		if !strings.Contains(md, want) {
			t.Errorf("expected markdown to contain %q, got %q", want, md)
		}
	}
}

func TestDocument_RenderMarkdownPrefersNative(t *testing.T) {
	d := &Document{Markdown: "native", Sections: []*Section{{Text: "ignored"}}}
	if got := d.RenderMarkdown(nil); got != "native" {
		t.Errorf("expected native markdown, got %q", got)
	}
}

func TestDocument_PageCount(t *testing.T) {
	d := &Document{}
	if _, ok := d.PageCount(); ok {
		t.Error("expected no page count on a fresh document")
	}
	d.WithPages(3)
	n, ok := d.PageCount()
	if !ok || n != 3 {
		t.Errorf("expected 3 pages, got %d (ok=%v)", n, ok)
	}
}

func TestPipeTable_EscapesPipes(t *testing.T) {
	got := PipeTable([][]string{{"k", "v"}, {"a|b", "c"}})
	want := "| k | v |\n| --- | --- |\n| a\\|b | c |"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestGridTable_Empty(t *testing.T) {
	if _, err := (GridTable{}).Grid(); !errors.Is(err, ErrEmptyTable) {
		t.Errorf("expected ErrEmptyTable, got %v", err)
	}
}

func TestDump_SkipsBrokenTables(t *testing.T) {
	d := sampleDoc()
	dump := d.Dump(d.Grids(nil))
	if len(dump.Tables) != 1 {
		t.Fatalf("expected 1 table in dump, got %d", len(dump.Tables))
	}
	if dump.Tables[0].Index != 1 {
		t.Errorf("expected table index 1, got %d", dump.Tables[0].Index)
	}
	if dump.PageCount != nil {
		t.Errorf("expected nil page count, got %v", *dump.PageCount)
	}
}

type panicTable struct{}

func (panicTable) Grid() ([][]string, error) { panic("index out of range") }

func TestGrids_RecoversAndReportsFailures(t *testing.T) {
	d := &Document{Tables: []Table{panicTable{}, GridTable{}, GridTable{{"x"}}}}
	var skipped []int
	grids := d.Grids(func(index int, err error) {
		if err == nil {
			t.Errorf("table %d: expected an error", index)
		}
		skipped = append(skipped, index)
	})
	if len(grids) != 1 || grids[0].Index != 3 {
		t.Fatalf("expected only table 3, got %+v", grids)
	}
	if len(skipped) != 2 || skipped[0] != 1 || skipped[1] != 2 {
		t.Errorf("expected tables 1 and 2 skipped, got %v", skipped)
	}

	md := d.RenderMarkdown(grids)
	if !strings.Contains(md, "| x |") {
		t.Errorf("expected surviving table in markdown, got %q", md)
	}
	if dump := d.Dump(grids); len(dump.Tables) != 1 {
		t.Errorf("expected 1 table in dump, got %d", len(dump.Tables))
	}
}
