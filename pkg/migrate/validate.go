package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	markerUp         = "-- +goose Up"
	markerDown       = "-- +goose Down"
	markerBlockStart = "-- +goose StatementBegin"
	markerBlockEnd   = "-- +goose StatementEnd"
)

var migrationNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks every .sql file in dir for a goose-compatible name, a
// unique version, and Up/Down sections in that order.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %q: %w", dir, err)
	}

	versions := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}

		match := migrationNameRe.FindStringSubmatch(name)
		if match == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[match[1]]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", match[1], prev, name)
		}
		versions[match[1]] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}
		if err := checkSections(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func checkSections(body string) error {
	up := strings.Index(body, markerUp)
	if up < 0 {
		return fmt.Errorf("missing %q", markerUp)
	}
	down := strings.Index(body, markerDown)
	if down < 0 {
		return fmt.Errorf("missing %q", markerDown)
	}
	if down < up {
		return fmt.Errorf("%q must come before %q", markerUp, markerDown)
	}
	if strings.Count(body, markerBlockStart) != strings.Count(body, markerBlockEnd) {
		return fmt.Errorf("unbalanced %q/%q", markerBlockStart, markerBlockEnd)
	}
	return nil
}
