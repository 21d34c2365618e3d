package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	steps, err := loadMigrations(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(steps) == 0 || steps[0].version != 1 || steps[0].name != "001_initial.sql" {
		t.Fatalf("unexpected first migration: %+v", steps)
	}
	for _, table := range []string{"students", "attendance"} {
		if !strings.Contains(steps[0].sql, table) {
			t.Errorf("initial migration does not mention %s", table)
		}
	}
}

func TestLoadMigrations(t *testing.T) {
	tests := []struct {
		name      string
		files     fstest.MapFS
		wantNames []string
		wantErr   string
	}{
		{
			name: "ordered by numeric version",
			files: fstest.MapFS{
				"m/010_indexes.sql": {Data: []byte("SELECT 10")},
				"m/002_photos.sql":  {Data: []byte("SELECT 2")},
				"m/README.md":       {Data: []byte("notes")},
			},
			wantNames: []string{"002_photos.sql", "010_indexes.sql"},
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"m/001_a.sql":  {Data: []byte("SELECT 1")},
				"m/0001_b.sql": {Data: []byte("SELECT 1")},
			},
			wantErr: "share version 1",
		},
		{
			name:    "missing version prefix",
			files:   fstest.MapFS{"m/initial.sql": {Data: []byte("SELECT 1")}},
			wantErr: "positive version",
		},
		{
			name:    "zero version",
			files:   fstest.MapFS{"m/000_a.sql": {Data: []byte("SELECT 1")}},
			wantErr: "positive version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := loadMigrations(tt.files, "m")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("loadMigrations() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadMigrations() error = %v", err)
			}
			var names []string
			for _, s := range steps {
				names = append(names, s.name)
			}
			if strings.Join(names, ",") != strings.Join(tt.wantNames, ",") {
				t.Errorf("names = %v, want %v", names, tt.wantNames)
			}
		})
	}
}
