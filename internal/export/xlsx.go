// Package export writes the cleaned attendee set as an XLSX workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"webinar/internal/attendance"
)

const (
	// SheetName is the single sheet of an export.
	SheetName = "بيانات الحضور"
	// FileName is suggested to browsers downloading an export.
	FileName = "webinar_attendees_cleaned.xlsx"
	// ContentType is the XLSX MIME type.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Headers are the export column titles, in column order.
var Headers = []string{
	"حضر",
	"اسم المستخدم",
	"الاسم الأول",
	"اسم العائلة",
	"البريد الإلكتروني",
	"وقت التسجيل",
	"حالة الموافقة",
	"وقت الانضمام",
	"وقت المغادرة",
	"المدة (دقيقة)",
	"هل ضيف",
	"البلد",
	"رقم الهاتف",
}

func row(r attendance.Record) []any {
	var duration any
	if r.SessionDuration != nil {
		duration = *r.SessionDuration
	}
	return []any{
		r.Attended, r.UserName, r.FirstName, r.LastName, r.Email,
		r.RegistrationTime, r.ApprovalStatus, r.JoinTime, r.LeaveTime,
		duration, r.IsGuest, r.Country, r.PhoneNumber,
	}
}

// Write renders records to w as a right-to-left workbook with one header row.
func Write(w io.Writer, records []attendance.Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	rtl := true
	if err := f.SetSheetView(SheetName, 0, &excelize.ViewOptions{RightToLeft: &rtl}); err != nil {
		return fmt.Errorf("sheet view: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(ref, row(r)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
