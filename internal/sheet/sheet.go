// Package sheet turns uploaded report bytes into a matrix of cells. Numeric
// spreadsheet cells are kept as float64 so serial dates can be decoded later;
// everything else is a string.
package sheet

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Format is a recognized upload encoding.
type Format int

const (
	FormatCSV Format = iota
	FormatXLSX
)

func (f Format) String() string {
	if f == FormatXLSX {
		return "xlsx"
	}
	return "csv"
}

// ErrUnsupported rejects legacy binary workbooks.
var ErrUnsupported = errors.New("sheet: unsupported workbook format")

var (
	zipMagic = []byte("PK\x03\x04")
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// Detect picks a format from content, falling back to the file name.
func Detect(name string, data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, cfbMagic):
		return 0, ErrUnsupported
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext == ".xlsx" && len(data) > 0 {
		// Not a zip, so not a real workbook; let the XLSX reader say why.
		return FormatXLSX, nil
	}
	return FormatCSV, nil
}

// Reader returns the cells of the first sheet in an upload.
type Reader interface {
	ReadSheet(ctx context.Context, name string, data []byte) ([][]any, error)
}

// Auto dispatches to the XLSX or CSV reader by Detect.
type Auto struct {
	XLSX XLSX
	CSV  CSV
}

// ReadSheet implements Reader.
func (a Auto) ReadSheet(ctx context.Context, name string, data []byte) ([][]any, error) {
	format, err := Detect(name, data)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return a.XLSX.ReadSheet(ctx, name, data)
	}
	return a.CSV.ReadSheet(ctx, name, data)
}

// padRows extends every row with empty strings to the width of the widest
// one. excelize and ragged CSV lines both omit trailing blank cells.
func padRows(rows [][]any) [][]any {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		rows[i] = row
	}
	return rows
}
