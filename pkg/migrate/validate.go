package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir validates migration filenames and basic goose headers.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	seen := map[string]string{} // version -> filename

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sql") {
			continue
		}

		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		version := m[1]
		if prior, dup := seen[version]; dup {
			return fmt.Errorf("duplicate migration version %s (%s, %s)", version, prior, name)
		}
		seen[version] = name

		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}
		text := string(content)
		if !strings.Contains(text, "-- +goose Up") {
			return fmt.Errorf("migration %q missing '-- +goose Up' header", name)
		}
		if !strings.Contains(text, "-- +goose Down") {
			return fmt.Errorf("migration %q missing '-- +goose Down' header", name)
		}
	}

	return nil
}
