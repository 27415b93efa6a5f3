package database

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		name    string
		version int
		ok      bool
		wantErr bool
	}{
		{"001_adaptive_schema.sql", 1, true, false},
		{"012_add_index.sql", 12, true, false},
		{"1000_big.sql", 1000, true, false},
		{"README.md", 0, false, false},
		{"schema.sql", 0, true, true},
		{"01_short.sql", 0, true, true},
		{"000_zero.sql", 0, true, true},
		{"abc_letters.sql", 0, true, true},
		{"002-dash.sql", 0, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			version, ok, err := parseMigrationName(tc.name)
			if (err != nil) != tc.wantErr {
				t.Fatalf("expected error=%v, got %v", tc.wantErr, err)
			}
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if !tc.wantErr && version != tc.version {
				t.Fatalf("expected version %d, got %d", tc.version, version)
			}
		})
	}
}

func TestListMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_catalog.sql": {Data: []byte("SELECT 2;")},
		"001_schema.sql":  {Data: []byte("SELECT 1;")},
		"notes.txt":       {Data: []byte("ignored")},
		"archive/old.sql": {Data: []byte("ignored")},
		"1000_later.sql":  {Data: []byte("SELECT 1000;")},
	}

	got, err := listMigrations(fsys)
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if len(got) != 3 || got[0].version != 1 || got[1].version != 2 || got[2].version != 1000 {
		t.Fatalf("unexpected migrations %+v", got)
	}
}

func TestListMigrations_RejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"001_schema.sql": {Data: []byte("SELECT 1;")},
		"0001_again.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := listMigrations(fsys); err == nil || !strings.Contains(err.Error(), "share version") {
		t.Fatalf("expected duplicate version error, got %v", err)
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	got, err := listMigrations(EmbeddedMigrations())
	if err != nil {
		t.Fatalf("list embedded migrations: %v", err)
	}
	if len(got) == 0 || got[0].version != 1 {
		t.Fatalf("expected embedded schema starting at version 1, got %+v", got)
	}

	schema, err := fs.ReadFile(EmbeddedMigrations(), got[0].name)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	for _, table := range []string{"difficulty_states", "topic_masteries", "quiz_attempts", "course_topics"} {
		if !strings.Contains(string(schema), table) {
			t.Fatalf("expected schema to create %s", table)
		}
	}
}
