package attendance

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestBeforeOrdersGroupsFirst(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(name, group string, off int) Record {
		return Record{ID: name, DuplicateGroup: group, IsDuplicate: group != "", CreatedAt: t0.Add(time.Duration(off) * time.Second)}
	}
	records := []Record{
		mk("A", "", 0),
		mk("D", "g2", 1),
		mk("C", "g1", 3),
		mk("B", "g1", 2),
		mk("E", "", -1),
	}
	SortForReview(records)
	var got []string
	for _, r := range records {
		got = append(got, r.ID)
	}
	if want := []string{"B", "C", "D", "E", "A"}; !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestSummarizeOverlaps(t *testing.T) {
	st := Summarize([]Record{
		{},
		{IsDuplicate: true, DuplicateGroup: "g"},
		{IsDuplicate: true, DuplicateGroup: "g", HasErrors: true, ErrorMessages: []string{"x"}},
		{HasErrors: true, ErrorMessages: []string{"x"}},
	})
	want := Statistics{Total: 4, Valid: 1, Duplicate: 2, Error: 2}
	if st != want {
		t.Fatalf("stats = %+v, want %+v", st, want)
	}
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{"": StatusAll, "all": StatusAll, "Valid": StatusValid, " error ": StatusError, "duplicate": StatusDuplicate} {
		got, ok := ParseStatus(in)
		if !ok || got != want {
			t.Errorf("ParseStatus(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseStatus("pending"); ok {
		t.Error("unknown status accepted")
	}
}

func TestMatchesQuery(t *testing.T) {
	r := Record{Fields: Fields{FirstName: "Alice", LastName: "Hill", UserName: "al42", Email: "alice@x.io", Country: "مصر", PhoneNumber: "555"}}
	for q, want := range map[string]bool{"ALI": true, "hill": true, "42": true, "x.io": true, "مصر": true, "555": false, "": false} {
		if got := MatchesQuery(r, q); got != want {
			t.Errorf("MatchesQuery(%q) = %v, want %v", q, got, want)
		}
	}
}

func TestPatchApply(t *testing.T) {
	r := Record{Fields: Fields{UserName: "u", Email: "old@x.io"}, IsDuplicate: true, DuplicateGroup: "g"}
	email, first := "  New@X.io ", " Sam "
	d := 9
	Patch{Email: &email, FirstName: &first, SessionDuration: &d}.Apply(&r)
	if r.Email != "new@x.io" || r.FirstName != "Sam" || r.UserName != "u" || *r.SessionDuration != 9 {
		t.Fatalf("applied = %+v", r)
	}
	if !r.IsDuplicate || r.DuplicateGroup != "g" {
		t.Fatal("patch touched duplicate flags")
	}
}

func TestPatchIgnoresInternalJSONFields(t *testing.T) {
	var p Patch
	if err := json.Unmarshal([]byte(`{"phoneNumber":"1","hasErrors":false,"errorMessages":[]}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.PhoneNumber == nil || *p.PhoneNumber != "1" || p.HasErrors != nil || p.ErrorMessages != nil {
		t.Fatalf("patch = %+v", p)
	}
}

func TestRecordJSON(t *testing.T) {
	b, err := json.Marshal(Record{ID: "1", Fields: Fields{Email: "a@x.io"}})
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, want := range []string{`"errorMessages":[]`, `"email":"a@x.io"`, `"sessionDuration":null`, `"duplicateGroup":null`} {
		if !strings.Contains(s, want) {
			t.Errorf("json %s missing %s", s, want)
		}
	}
	if strings.Count(s, "duplicateGroup") != 1 {
		t.Errorf("json %s repeats duplicateGroup", s)
	}

	b, err = json.Marshal(Record{IsDuplicate: true, DuplicateGroup: "duplicate-group-1"})
	if err != nil {
		t.Fatal(err)
	}
	var back Record
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"duplicateGroup":"duplicate-group-1"`) || back.DuplicateGroup != "duplicate-group-1" {
		t.Errorf("grouped json = %s", b)
	}
}

func TestPresent(t *testing.T) {
	for in, want := range map[string]bool{"نعم": true, "Yes": true, " yes ": true, "لا": false, "No": false} {
		if got := (Record{Fields: Fields{Attended: in}}).Present(); got != want {
			t.Errorf("Present(%q) = %v", in, got)
		}
	}
}
