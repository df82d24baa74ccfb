package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

func TestCreateSQLMigrationRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, "add plan notes", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260301090000_add_plan_notes.sql" {
		t.Fatalf("unexpected filename %q", path)
	}
	if _, err := createSQLMigration(dir, "add plan notes", now); err == nil {
		t.Fatalf("expected duplicate to fail")
	}
	if _, err := createSQLMigration(dir, "!!!", now); err == nil {
		t.Fatalf("expected empty sanitized name to fail")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestValidateFS(t *testing.T) {
	valid := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	cases := []struct {
		name    string
		files   fstest.MapFS
		wantErr bool
	}{
		{name: "valid", files: fstest.MapFS{"20260301090000_a.sql": {Data: []byte(valid)}}},
		{name: "bad filename", files: fstest.MapFS{"1_a.sql": {Data: []byte(valid)}}, wantErr: true},
		{name: "duplicate version", files: fstest.MapFS{
			"20260301090000_a.sql": {Data: []byte(valid)},
			"20260301090000_b.sql": {Data: []byte(valid)},
		}, wantErr: true},
		{name: "missing down", files: fstest.MapFS{"20260301090000_a.sql": {Data: []byte("-- +goose Up\n")}}, wantErr: true},
		{name: "down first", files: fstest.MapFS{"20260301090000_a.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")}}, wantErr: true},
		{name: "ignores other files", files: fstest.MapFS{"README.md": {Data: []byte("x")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFS(tc.files)
			if (err != nil) != tc.wantErr {
				t.Fatalf("wantErr=%v got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateEmbedded(t *testing.T) {
	if err := ValidateEmbedded(); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}
