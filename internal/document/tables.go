package document

import (
	"errors"
	"fmt"
)

// ErrEmptyTable is returned by GridTable.Grid for a table without rows.
var ErrEmptyTable = errors.New("table has no rows")

// GridTable is a table whose cells are already known.
type GridTable [][]string

// Grid returns the padded cell grid.
func (t GridTable) Grid() ([][]string, error) {
	if len(t) == 0 {
		return nil, ErrEmptyTable
	}
	return Normalize(t), nil
}

// TableGrid is a converted table. Index is its 1-based position in the
// document, so failed tables leave gaps.
type TableGrid struct {
	Index int        `json:"index"`
	Rows  [][]string `json:"rows"`
}

// ConvertTable calls t.Grid and turns a panic or an empty grid into an error.
func ConvertTable(t Table) (grid [][]string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			grid, err = nil, fmt.Errorf("table conversion panicked: %v", rec)
		}
	}()
	grid, err = t.Grid()
	if err == nil && len(grid) == 0 {
		err = ErrEmptyTable
	}
	return grid, err
}

// Grids converts every table once. Tables that fail are passed to skip, if
// non-nil, and left out of the result.
func (d *Document) Grids(skip func(index int, err error)) []TableGrid {
	var out []TableGrid
	for i, t := range d.Tables {
		grid, err := ConvertTable(t)
		if err != nil {
			if skip != nil {
				skip(i+1, err)
			}
			continue
		}
		out = append(out, TableGrid{Index: i + 1, Rows: grid})
	}
	return out
}
