package migrate

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
)

const versionLen = 14

// Validate checks every .sql file in source: a YYYYMMDDHHMMSS_name.sql
// filename with a unique version, both goose sections and balanced
// StatementBegin/StatementEnd markers.
func Validate(source fs.FS) error {
	files, err := fs.Glob(source, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	versions := make(map[string]string, len(files))
	for _, name := range files {
		version, ok := parseFilename(name)
		if !ok {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[version]; dup {
			return fmt.Errorf("version %s used by both %q and %q", version, prev, name)
		}
		versions[version] = name

		body, err := fs.ReadFile(source, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := checkSections(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func parseFilename(name string) (string, bool) {
	base := strings.TrimSuffix(path.Base(name), ".sql")
	version, label, found := strings.Cut(base, "_")
	if !found || len(version) != versionLen || label == "" {
		return "", false
	}
	for _, r := range version {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return version, sanitizeName(label) == label
}

func checkSections(body string) error {
	up := strings.Index(body, "-- +goose Up")
	down := strings.Index(body, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", "-- +goose Up")
	case down < 0:
		return fmt.Errorf("missing %q", "-- +goose Down")
	case down < up:
		return fmt.Errorf("down section precedes up section")
	}
	if begins, ends := strings.Count(body, "-- +goose StatementBegin"), strings.Count(body, "-- +goose StatementEnd"); begins != ends {
		return fmt.Errorf("%d StatementBegin markers but %d StatementEnd", begins, ends)
	}
	return nil
}
