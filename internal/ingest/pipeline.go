package ingest

import (
	"context"
	"log/slog"
	"runtime"

	"webinar/internal/attendance"
)

// ErrorTypeInvalidData labels report entries for rows that failed validation.
const ErrorTypeInvalidData = "بيانات غير صحيحة"

// minRowCells is the shortest row that can carry the required columns.
const minRowCells = 6

// ErrorEntry points a reviewer at a rejected sheet row.
type ErrorEntry struct {
	RowIndex int               `json:"rowIndex"`
	Type     string            `json:"type"`
	Messages []string          `json:"messages"`
	Data     attendance.Fields `json:"data"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	HeaderRow int
	Language  string
	Rows      []attendance.Record
	Errors    []ErrorEntry
	Groups    int
	Stats     attendance.Statistics
}

// Pipeline turns a sheet matrix into validated, grouped attendee rows.
type Pipeline struct {
	validator  *attendance.Validator
	batchSize  int
	errorLimit int
	log        *slog.Logger
}

// NewPipeline builds a pipeline. Non-positive sizes fall back to 100 rows per
// batch and 50 report entries.
func NewPipeline(v *attendance.Validator, batchSize, errorLimit int, log *slog.Logger) *Pipeline {
	if v == nil {
		v = attendance.NewValidator()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if errorLimit <= 0 {
		errorLimit = 50
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{validator: v, batchSize: batchSize, errorLimit: errorLimit, log: log}
}

type sheetRow struct {
	index int
	cells []any
}

// Run locates the attendee section and decodes every data row below it.
// Invalid rows are kept with their messages; only a missing section or a
// cancelled context fails the run.
func (p *Pipeline) Run(ctx context.Context, matrix [][]any) (Result, error) {
	header, err := Locate(matrix)
	if err != nil {
		return Result{}, err
	}
	res := Result{HeaderRow: header, Language: HeaderLanguage(matrix[header])}

	var data []sheetRow
	for off, cells := range matrix[header+1:] {
		if len(cells) < minRowCells || blank(cells) {
			continue
		}
		// rowIndex is the 1-based sheet row the reviewer sees.
		data = append(data, sheetRow{index: header + 2 + off, cells: cells})
	}

	res.Rows = make([]attendance.Record, 0, len(data))
	for start, batch := 0, 0; start < len(data); start, batch = start+p.batchSize, batch+1 {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		end := min(start+p.batchSize, len(data))
		for _, row := range data[start:end] {
			rec := attendance.Record{Fields: DecodeRow(row.cells)}
			if msgs := p.validator.Validate(rec.Fields); len(msgs) > 0 {
				rec.SetErrors(msgs)
				if len(res.Errors) < p.errorLimit {
					res.Errors = append(res.Errors, ErrorEntry{
						RowIndex: row.index,
						Type:     ErrorTypeInvalidData,
						Messages: msgs,
						Data:     rec.Fields,
					})
				}
			}
			res.Rows = append(res.Rows, rec)
		}
		p.log.Debug("rows decoded", "processed", end, "total", len(data))
		if batch%2 == 1 {
			runtime.Gosched()
		}
	}

	res.Groups = GroupDuplicates(res.Rows)
	res.Stats = attendance.Summarize(res.Rows)
	return res, nil
}

// DecodeRow maps report columns to attendee fields by position. Required text
// columns are only trimmed, so a literal "--" still reaches the validator.
func DecodeRow(cells []any) attendance.Fields {
	at := func(i int) any {
		if i < len(cells) {
			return cells[i]
		}
		return nil
	}
	return attendance.Fields{
		Attended:         text(at(0)),
		UserName:         text(at(1)),
		FirstName:        text(at(2)),
		LastName:         text(at(3)),
		Email:            NormalizeEmail(at(4)),
		RegistrationTime: DecodeTimestamp(at(5)),
		ApprovalStatus:   CleanText(at(6)),
		JoinTime:         DecodeTimestamp(at(7)),
		LeaveTime:        DecodeTimestamp(at(8)),
		SessionDuration:  ParseDuration(at(9)),
		IsGuest:          CleanText(at(10)),
		PhoneNumber:      CleanText(at(11)),
		Country:          CleanText(at(12)),
	}
}

func blank(cells []any) bool {
	for _, c := range cells {
		if text(c) != "" {
			return false
		}
	}
	return true
}
