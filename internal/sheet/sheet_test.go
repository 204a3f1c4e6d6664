package sheet

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", ref, &row); err != nil {
			t.Fatalf("set row %d: %v", r, err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		file string
		data []byte
		want Format
		err  error
	}{
		{"zip content", "report.csv", []byte("PK\x03\x04rest"), FormatXLSX, nil},
		{"plain text", "report.csv", []byte("a,b,c"), FormatCSV, nil},
		{"xlsx name without zip", "report.xlsx", []byte("a,b"), FormatXLSX, nil},
		{"legacy xls", "report.xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0x00}, 0, ErrUnsupported},
		{"empty", "", nil, FormatCSV, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Detect(tc.file, tc.data)
			if !errors.Is(err, tc.err) {
				t.Fatalf("err = %v, want %v", err, tc.err)
			}
			if err == nil && got != tc.want {
				t.Fatalf("format = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestXLSXKeepsNumbersAsFloats(t *testing.T) {
	data := workbook(t, [][]any{
		{"Attendee Details"},
		{"حضر", "اسم المستخدم"},
		{"نعم", "alice42", 44562.5, 30},
	})

	rows, err := Auto{}.ReadSheet(context.Background(), "report.xlsx", data)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if got, ok := rows[0][0].(string); !ok || got != "Attendee Details" {
		t.Fatalf("marker cell = %#v", rows[0][0])
	}
	if got, ok := rows[2][2].(float64); !ok || got != 44562.5 {
		t.Fatalf("serial cell = %#v, want float64 44562.5", rows[2][2])
	}
	if got, ok := rows[2][3].(float64); !ok || got != 30 {
		t.Fatalf("duration cell = %#v, want float64 30", rows[2][3])
	}
	if got, ok := rows[2][1].(string); !ok || got != "alice42" {
		t.Fatalf("text cell = %#v", rows[2][1])
	}
}

func TestXLSXPadsShortRows(t *testing.T) {
	data := workbook(t, [][]any{
		{"Attendee Details"},
		{"حضر", "اسم المستخدم", "الاسم الأول", "اسم العائلة", "البريد الإلكتروني", "وقت التسجيل", "حالة الموافقة"},
		{"نعم", "u2", "C", "D", "c@x.io"},
	})

	rows, err := XLSX{}.ReadSheet(context.Background(), "report.xlsx", data)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	for i, row := range rows {
		if len(row) != 7 {
			t.Fatalf("row %d has %d cells, want 7", i, len(row))
		}
	}
	if rows[2][5] != "" || rows[0][6] != "" {
		t.Fatalf("padding cells = %#v, %#v", rows[2][5], rows[0][6])
	}
}

func TestXLSXNumericLookingTextStaysText(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellStr("Sheet1", "A1", "0044562"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	rows, err := XLSX{}.ReadSheet(context.Background(), "", buf.Bytes())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got, ok := rows[0][0].(string); !ok || got != "0044562" {
		t.Fatalf("cell = %#v, want string", rows[0][0])
	}
}

func TestXLSXRejectsGarbage(t *testing.T) {
	if _, err := (XLSX{}).ReadSheet(context.Background(), "x.xlsx", []byte("not a workbook")); err == nil {
		t.Fatal("expected error")
	}
}

func TestCSVStripsBOMAndPadsRaggedRows(t *testing.T) {
	data := []byte("\xef\xbb\xbfAttendee Details\nحضر,اسم المستخدم,الاسم الأول\n\"نعم\",bob,\"Bob, Jr\",x,y,44562\n")

	rows, err := CSV{}.ReadSheet(context.Background(), "report.csv", data)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "Attendee Details" {
		t.Fatalf("BOM not stripped: %q", rows[0][0])
	}
	for i, row := range rows {
		if len(row) != 6 {
			t.Fatalf("row %d has %d cells, want 6", i, len(row))
		}
	}
	if rows[1][5] != "" {
		t.Fatalf("padding cell = %#v", rows[1][5])
	}
	if rows[2][2] != "Bob, Jr" {
		t.Fatalf("quoted cell = %q", rows[2][2])
	}
	if _, ok := rows[2][5].(string); !ok {
		t.Fatalf("csv cells must be strings, got %T", rows[2][5])
	}
}

func TestCSVHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (CSV{}).ReadSheet(ctx, "", []byte("a,b\n")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
