package ingest

import (
	"strconv"

	"webinar/internal/attendance"
)

const groupPrefix = "duplicate-group-"

// GroupDuplicates marks every row whose email occurs more than once and
// returns the number of groups. Groups are numbered from 1 in order of each
// email's first appearance; rows without an email are never grouped.
func GroupDuplicates(rows []attendance.Record) int {
	var keys []string
	byEmail := make(map[string][]int)
	for i, r := range rows {
		if r.Email == "" {
			continue
		}
		if _, seen := byEmail[r.Email]; !seen {
			keys = append(keys, r.Email)
		}
		byEmail[r.Email] = append(byEmail[r.Email], i)
	}

	n := 0
	for _, key := range keys {
		idx := byEmail[key]
		if len(idx) < 2 {
			continue
		}
		n++
		group := groupPrefix + strconv.Itoa(n)
		for _, i := range idx {
			rows[i].IsDuplicate = true
			rows[i].DuplicateGroup = group
		}
	}
	return n
}
