package schemamigrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// CreateOptions configures CreateMigration.
type CreateOptions struct {
	Dir  string
	Name string
}

const migrationTemplate = `-- +migrate Up

-- +migrate Down
`

// CreateMigration writes a new migration skeleton into Dir using the next
// free version number and returns the created file path. The name is
// lowercased with spaces collapsed to underscores.
func CreateMigration(opts CreateOptions) (string, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		return "", fmt.Errorf("migration directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create migration directory: %w", err)
	}

	// Number from filenames, not parsed content, so a skeleton that has
	// not been filled in yet still reserves its version.
	next, err := nextVersion(dir)
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "migration"
	}
	name = strings.ToLower(strings.Join(strings.Fields(name), "_"))

	path := filepath.Join(dir, fmt.Sprintf("%03d_%s.sql", next, name))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("migration file already exists: %s", path)
	}
	if err := os.WriteFile(path, []byte(migrationTemplate), 0o600); err != nil {
		return "", fmt.Errorf("failed to write migration file: %w", err)
	}
	return path, nil
}

var versionedFileRegex = regexp.MustCompile(`^(\d+)_.+\.sql$`)

func nextVersion(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}
	max := 0
	for _, e := range entries {
		m := versionedFileRegex.FindStringSubmatch(e.Name())
		if len(m) == 0 {
			continue
		}
		if v, err := strconv.Atoi(m[1]); err == nil && v > max {
			max = v
		}
	}
	return max + 1, nil
}
