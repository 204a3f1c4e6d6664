package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"webinar/internal/attendance"
)

func TestWrite(t *testing.T) {
	duration := 45
	records := []attendance.Record{
		{Fields: attendance.Fields{Attended: "نعم", UserName: "alice42", FirstName: "Alice", LastName: "Hill",
			Email: "alice@x.io", RegistrationTime: "01/01/2022 00:00", SessionDuration: &duration,
			Country: "Egypt", PhoneNumber: "+20100"}},
		{Fields: attendance.Fields{Attended: "Yes", UserName: "bob", FirstName: "Bob", LastName: "Ng",
			Email: "bob@y.io", RegistrationTime: "01/02/2022 00:00"}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, records); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != SheetName {
		t.Fatalf("sheets = %v", sheets)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}
	for i, h := range Headers {
		if rows[0][i] != h {
			t.Fatalf("header %d = %q, want %q", i, rows[0][i], h)
		}
	}
	if rows[1][4] != "alice@x.io" || rows[1][9] != "45" || rows[1][11] != "Egypt" || rows[1][12] != "+20100" {
		t.Fatalf("first data row = %v", rows[1])
	}
	if rows[2][1] != "bob" {
		t.Fatalf("second data row = %v", rows[2])
	}

	view, err := f.GetSheetView(SheetName, 0)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.RightToLeft == nil || !*view.RightToLeft {
		t.Fatal("sheet is not right-to-left")
	}
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}
