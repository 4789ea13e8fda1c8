package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// TableSheet is one table grid destined for a workbook sheet. Index is the
// table's 1-based position in the source document.
type TableSheet struct {
	Index int
	Grid  [][]string
}

// SheetName is the workbook sheet name for a table.
func (t TableSheet) SheetName() string {
	return fmt.Sprintf("Table %d", t.Index)
}

// WriteTablesXLSX writes one sheet per table.
func WriteTablesXLSX(path string, tables []TableSheet) error {
	if len(tables) == 0 {
		return fmt.Errorf("write %s: no tables", path)
	}

	sheets := make([]sheet, len(tables))
	for i, t := range tables {
		rows := make([][]any, len(t.Grid))
		for r, row := range t.Grid {
			rows[r] = make([]any, len(row))
			for c, cell := range row {
				rows[r][c] = cell
			}
		}
		sheets[i] = sheet{name: t.SheetName(), rows: rows, header: true}
	}
	return saveWorkbook(path, sheets)
}

type sheet struct {
	name   string
	rows   [][]any
	header bool // Bold the first row
	widths []colWidth
}

type colWidth struct {
	col   string
	width float64
}

// saveWorkbook writes sheets in order. The default sheet of a new workbook is
// renamed to the first sheet so no empty "Sheet1" is left behind.
func saveWorkbook(path string, sheets []sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("xlsx sheet %s: %w", s.name, err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("xlsx sheet %s: %w", s.name, err)
		}

		for r, row := range s.rows {
			cell, _ := excelize.CoordinatesToCellName(1, r+1)
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				return fmt.Errorf("xlsx row %d of %s: %w", r+1, s.name, err)
			}
		}
		if s.header && len(s.rows) > 0 {
			_ = f.SetRowStyle(s.name, 1, 1, bold)
		}
		for _, w := range s.widths {
			_ = f.SetColWidth(s.name, w.col, w.col, w.width)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write %s: %w", path, err)
	}
	return nil
}
