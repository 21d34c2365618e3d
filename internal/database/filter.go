package database

import (
	"strings"

	"github.com/kozaktomas/attendance/internal/facematch"
)

// MatchesSearch reports whether a row matches a report search term.
// The term is compared against the registration number and the name after
// normalization (lowercase, no diacritics, dashes to spaces).
func MatchesSearch(row AttendanceRow, search string) bool {
	if search == "" {
		return true
	}
	q := facematch.NormalizePersonName(strings.TrimSpace(search))
	if q == "" {
		return true
	}
	return strings.Contains(facematch.NormalizePersonName(row.RegistrationNumber), q) ||
		strings.Contains(facematch.NormalizePersonName(row.Name), q)
}

// FilterRows applies the search part of a filter in memory.
// Backends use it after narrowing by date in the query.
func FilterRows(rows []AttendanceRow, search string) []AttendanceRow {
	if search == "" {
		return rows
	}
	out := rows[:0]
	for _, row := range rows {
		if MatchesSearch(row, search) {
			out = append(out, row)
		}
	}
	return out
}
