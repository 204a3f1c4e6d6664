package ingest

import "strings"

// SectionMarker titles the attendee block of a webinar report.
const SectionMarker = "Attendee Details"

// HeaderVocabulary lists the leading column titles reports use in each
// supported language. Columns are mapped by position; the vocabulary is used
// to recognize a header row, not to reorder columns.
var HeaderVocabulary = map[string][]string{
	"ar": {"حضر", "اسم المستخدم", "الاسم الأول", "اسم العائلة", "البريد الإلكتروني"},
	"en": {"Attended", "User Name", "First Name", "Last Name", "Email"},
}

// Locate returns the index of the column-header row, the row right below the
// first column-A cell containing SectionMarker. Data rows follow it.
func Locate(rows [][]any) (int, error) {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if strings.Contains(text(row[0]), SectionMarker) {
			header := i + 1
			if header >= len(rows) {
				return 0, ErrMissingSection
			}
			return header, nil
		}
	}
	return 0, ErrMissingSection
}

// HeaderLanguage reports which vocabulary a header row uses, or "" when it
// matches neither.
func HeaderLanguage(row []any) string {
	for lang, titles := range HeaderVocabulary {
		if len(row) < len(titles) {
			continue
		}
		ok := true
		for i, title := range titles {
			if !strings.EqualFold(text(row[i]), title) {
				ok = false
				break
			}
		}
		if ok {
			return lang
		}
	}
	return ""
}
