// Package spreadsheet renders tables as xlsx workbooks.
package spreadsheet

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSX writes a single-sheet workbook with a header row.
type XLSX struct {
	// SheetName renames the default sheet when set.
	SheetName string
}

func (x XLSX) WriteTable(rows [][]string, columns []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if x.SheetName != "" && x.SheetName != sheet {
		if err := f.SetSheetName(sheet, x.SheetName); err != nil {
			return nil, fmt.Errorf("spreadsheet: rename sheet: %w", err)
		}
		sheet = x.SheetName
	}

	for i, h := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("spreadsheet: set header: %w", err)
		}
	}
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("spreadsheet: row %d has %d cells, want %d", r+1, len(row), len(columns))
		}
		for c, val := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			// Ids stay text so long numeric ids keep every digit.
			if err := f.SetCellStr(sheet, cell, val); err != nil {
				return nil, fmt.Errorf("spreadsheet: set cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("spreadsheet: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
