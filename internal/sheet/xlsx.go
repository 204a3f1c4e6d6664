package sheet

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// XLSX reads Office Open XML workbooks with excelize.
type XLSX struct{}

// ReadSheet returns the first worksheet with every row padded to the widest
// one. Cells stored as numbers, including dates, come back as float64 serial
// values.
func (XLSX) ReadSheet(ctx context.Context, _ string, data []byte) ([][]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return [][]any{}, nil
	}
	name := sheets[0]

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}

	out := make([][]any, len(rows))
	for r, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cells := make([]any, len(row))
		for c, v := range row {
			cells[c] = v
			if v == "" {
				continue
			}
			if n, ok := numericCell(f, name, c, r, v); ok {
				cells[c] = n
			}
		}
		out[r] = cells
	}
	return padRows(out), nil
}

func numericCell(f *excelize.File, sheet string, col, row int, raw string) (float64, bool) {
	ref, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return 0, false
	}
	typ, err := f.GetCellType(sheet, ref)
	if err != nil {
		return 0, false
	}
	switch typ {
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
	default:
		return 0, false
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
