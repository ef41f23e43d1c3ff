package source

import "fmt"

// MalformedMigrationError marks a single definition that could not be
// parsed. It is recoverable: the loader skips the file and keeps going.
type MalformedMigrationError struct {
	File   string
	Reason string
}

func (e *MalformedMigrationError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("malformed migration: %s", e.Reason)
	}
	return fmt.Sprintf("malformed migration %s: %s", e.File, e.Reason)
}

// DuplicateVersionError aborts the whole load: two definitions claim the
// same version, so application order is undefined.
type DuplicateVersionError struct {
	Version int
	First   string
	Second  string
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("duplicate migration version %d: %s and %s", e.Version, e.First, e.Second)
}
