package source

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/grantwise/schemamigrate/internal/common"
)

// Migration is a versioned pair of forward and reverse schema-change
// scripts, immutable once loaded.
type Migration struct {
	Version  int
	Name     string
	Up       string
	Down     string
	NoDown   bool // explicit "-- +migrate NoDown" declaration
	Checksum string
	Path     string
}

// Reversible reports whether the migration carries a down script.
func (m Migration) Reversible() bool {
	return strings.TrimSpace(m.Down) != ""
}

var migrationFileRegex = regexp.MustCompile(`^(\d+)_(.+)\.sql$`)

// Load reads all migration definitions from dir and returns them sorted
// ascending by version. Files that do not match the naming convention are
// skipped with a warning; two files claiming the same version abort the
// whole load because ordering is no longer well-defined.
func Load(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", dir, err)
	}

	logger := common.GetLogger().WithComponent("source")

	migs := make([]Migration, 0, len(entries))
	seen := map[int]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		m := migrationFileRegex.FindStringSubmatch(name)
		if len(m) == 0 {
			if strings.HasSuffix(name, ".sql") {
				logger.Warn("skipping malformed migration file", "file", name,
					"error", &MalformedMigrationError{File: name, Reason: "filename does not match <version>_<name>.sql"})
			}
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil || version <= 0 {
			logger.Warn("skipping malformed migration file", "file", name,
				"error", &MalformedMigrationError{File: name, Reason: "version must be a positive integer"})
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, &DuplicateVersionError{Version: version, First: prev, Second: name}
		}

		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path) // #nosec G304 -- path comes from a controlled directory listing
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		up, down, noDown, perr := parseScripts(string(raw))
		if perr != nil {
			logger.Warn("skipping malformed migration file", "file", name, "error", perr)
			continue
		}

		seen[version] = name
		migs = append(migs, Migration{
			Version:  version,
			Name:     m[2],
			Up:       up,
			Down:     down,
			NoDown:   noDown,
			Checksum: Checksum(raw),
			Path:     path,
		})
	}

	sort.Slice(migs, func(i, j int) bool { return migs[i].Version < migs[j].Version })
	return migs, nil
}

// ByVersion indexes a loaded migration list by version number.
func ByVersion(migs []Migration) map[int]Migration {
	out := make(map[int]Migration, len(migs))
	for _, m := range migs {
		out[m.Version] = m
	}
	return out
}

// Checksum returns the SHA-256 hex digest of a migration definition's raw
// text. It covers the whole file, so an edit to an applied migration's
// down section is detectable as drift too.
func Checksum(raw []byte) string {
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}
