package engine

import "fmt"

// ChecksumDriftError reports that an already-applied migration's source no
// longer matches what was executed. Fatal for the whole run: re-applying
// or ignoring an edited migration would desynchronize environments that
// applied the original from ones that would apply the edit.
type ChecksumDriftError struct {
	Version  int
	Name     string
	Recorded string
	Current  string // empty when the migration is missing from the source
}

func (e *ChecksumDriftError) Error() string {
	if e.Current == "" {
		return fmt.Sprintf("checksum drift: migration %d (%s) is recorded in the ledger but missing from the source", e.Version, e.Name)
	}
	return fmt.Sprintf("checksum drift: migration %d (%s) was edited after application (recorded %s, current %s)",
		e.Version, e.Name, e.Recorded, e.Current)
}

// ExecutionError reports a migration script or ledger write that failed.
// Its transaction was rolled back; the run aborts with earlier commits of
// the same run preserved.
type ExecutionError struct {
	Version   int
	Name      string
	Direction string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("migration %d (%s) %s failed: %v", e.Version, e.Name, e.Direction, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IrreversibleMigrationError reports a rollback request against a
// migration with no down script. Remaining rollback steps abort;
// already-committed rollbacks stay committed.
type IrreversibleMigrationError struct {
	Version  int
	Name     string
	Declared bool // true when the author marked it NoDown, false when the down script is simply absent
}

func (e *IrreversibleMigrationError) Error() string {
	if e.Declared {
		return fmt.Sprintf("migration %d (%s) is declared irreversible", e.Version, e.Name)
	}
	return fmt.Sprintf("migration %d (%s) has no down script; rollback is unsupported", e.Version, e.Name)
}
