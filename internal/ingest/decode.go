package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// excelEpoch absorbs the 1900 leap-year bug of spreadsheet serial dates.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const timestampLayout = "01/02/2006 15:04"

// placeholders are cell values exporters write for "no value".
var placeholders = map[string]struct{}{
	"":          {},
	"--":        {},
	"N/A":       {},
	"null":      {},
	"undefined": {},
}

// text coerces a cell to a trimmed, NFC-normalized string. Arabic reports mix
// precomposed and combining forms, which would otherwise defeat email and
// search matching.
func text(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case bool:
		s = strconv.FormatBool(x)
	default:
		s = fmt.Sprint(x)
	}
	return strings.TrimSpace(norm.NFC.String(s))
}

// CleanText trims a cell and maps placeholder values to "".
func CleanText(v any) string {
	s := text(v)
	if _, ok := placeholders[s]; ok {
		return ""
	}
	return s
}

// NormalizeEmail is CleanText lowercased.
func NormalizeEmail(v any) string {
	return strings.ToLower(CleanText(v))
}

// DecodeTimestamp turns a spreadsheet serial date into "MM/DD/YYYY HH:MM".
// Text that already looks like a date passes through unchanged.
func DecodeTimestamp(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return serial(x)
	case int:
		return serial(float64(x))
	case int64:
		return serial(float64(x))
	}

	s := text(v)
	if s == "" || s == "--" {
		return ""
	}
	if strings.ContainsAny(s, "/-") {
		return s
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return serial(n)
	}
	return s
}

func serial(n float64) string {
	if n == 0 {
		return ""
	}
	if n <= 1 || n >= maxSerial+1 || math.IsNaN(n) {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	ms := int64(math.Round(n * msPerDay))
	days, rem := ms/msPerDay, ms%msPerDay
	return excelEpoch.AddDate(0, 0, int(days)).
		Add(time.Duration(rem) * time.Millisecond).
		Format(timestampLayout)
}

const (
	msPerDay = 24 * 60 * 60 * 1000
	// maxSerial is 9999-12-31, the last date spreadsheets represent.
	maxSerial = 2958465
)

// ParseDuration returns the integer part of a numeric cell, or nil when the
// cell is empty or not a number.
func ParseDuration(v any) *int {
	var n float64
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		n = x
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	default:
		s := CleanText(v)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		n = f
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	d := int(math.Trunc(n))
	return &d
}
