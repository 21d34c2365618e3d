package database

import "testing"

func TestMatchesSearch(t *testing.T) {
	row := AttendanceRow{RegistrationNumber: "CS-2024-017", Name: "Jiří Novák"}

	tests := []struct {
		name   string
		search string
		want   bool
	}{
		{"empty search", "", true},
		{"whitespace only", "   ", true},
		{"registration prefix", "cs", true},
		{"registration dashes as spaces", "2024 017", true},
		{"name without diacritics", "jiri", true},
		{"name with diacritics", "Novák", true},
		{"name mixed case", "NOVAK", true},
		{"no match", "smith", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := MatchesSearch(row, tc.search); got != tc.want {
				t.Errorf("MatchesSearch(%q) = %v, want %v", tc.search, got, tc.want)
			}
		})
	}
}

func TestFilterRows(t *testing.T) {
	rows := []AttendanceRow{
		{RegistrationNumber: "CS101", Name: "Alice"},
		{RegistrationNumber: "EE202", Name: "Bob"},
		{RegistrationNumber: "CS303", Name: "Carol"},
	}

	got := FilterRows(rows, "cs")
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Name != "Alice" || got[1].Name != "Carol" {
		t.Errorf("unexpected rows: %+v", got)
	}

	all := FilterRows([]AttendanceRow{{Name: "x"}}, "")
	if len(all) != 1 {
		t.Errorf("empty search should keep all rows, got %d", len(all))
	}
}
