package sheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// CSV reads comma-separated exports. All cells are strings.
type CSV struct {
	// Comma overrides the field delimiter; zero means ','.
	Comma rune
}

// ReadSheet implements Reader. Short lines are padded to the widest one.
func (c CSV) ReadSheet(ctx context.Context, _ string, data []byte) ([][]any, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	if c.Comma != 0 {
		r.Comma = c.Comma
	}

	out := [][]any{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		cells := make([]any, len(record))
		for i, v := range record {
			cells[i] = v
		}
		out = append(out, cells)
	}
	return padRows(out), nil
}
