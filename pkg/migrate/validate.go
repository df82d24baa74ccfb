package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	upMarker   = "-- +goose Up"
	downMarker = "-- +goose Down"
)

// ValidateDir checks migration filenames and goose markers on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	sub, err := fs.Sub(embedded, embeddedDir)
	if err != nil {
		return err
	}
	return ValidateFS(sub)
}

// ValidateFS requires unique 14-digit versions and an Up section that comes
// before its Down section in every .sql file at the root of fsys.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, ok := seen[m[1]]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		seen[m[1]] = name

		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}
		txt := string(b)
		up := strings.Index(txt, upMarker)
		down := strings.Index(txt, downMarker)
		switch {
		case up < 0:
			return fmt.Errorf("migration %q missing %q", name, upMarker)
		case down < 0:
			return fmt.Errorf("migration %q missing %q", name, downMarker)
		case down < up:
			return fmt.Errorf("migration %q has Down before Up", name)
		}
	}
	return nil
}
