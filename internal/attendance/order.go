package attendance

import (
	"sort"
	"strings"
)

// Before reports whether a sorts ahead of b in review order: grouped records
// first, groups by id, members of a group and ungrouped records by CreatedAt.
func Before(a, b Record) bool {
	ag, bg := a.DuplicateGroup != "", b.DuplicateGroup != ""
	switch {
	case ag && bg && a.DuplicateGroup != b.DuplicateGroup:
		return a.DuplicateGroup < b.DuplicateGroup
	case ag != bg:
		return ag
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// SortForReview orders records in place. Ties keep their input order, so
// callers pass records in insertion order.
func SortForReview(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return Before(records[i], records[j])
	})
}

// MatchesQuery reports a case-insensitive substring hit on the searchable
// columns. An empty query matches nothing.
func MatchesQuery(r Record, query string) bool {
	q := strings.ToLower(query)
	if q == "" {
		return false
	}
	for _, v := range []string{r.FirstName, r.LastName, r.UserName, r.Email, r.Country} {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// Filter keeps the records for which keep returns true, preserving order.
func Filter(records []Record, keep func(Record) bool) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
