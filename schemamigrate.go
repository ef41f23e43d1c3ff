// Package schemamigrate is a schema migration engine: it discovers
// versioned up/down SQL migrations, tracks what has been applied in a
// ledger table, executes each pending migration atomically with its
// ledger record, detects post-application edits via checksums, and
// supports ordered rollback.
package schemamigrate

import (
	"context"

	"github.com/grantwise/schemamigrate/internal/engine"
	"github.com/grantwise/schemamigrate/internal/ledger"
	"github.com/grantwise/schemamigrate/internal/source"
)

// Re-export commonly used types for public API

// Migration is a versioned pair of up/down scripts loaded from a source directory.
type Migration = source.Migration

// Migrator applies and rolls back migrations against one database.
type Migrator = engine.Migrator

// Applied describes one migration executed by Apply.
type Applied = engine.Applied

// RolledBack describes one migration undone by Rollback.
type RolledBack = engine.RolledBack

// Ledger is the persistent record of applied migrations.
type Ledger = ledger.Ledger

// LedgerRecord is one row of the ledger table.
type LedgerRecord = ledger.Record

// LedgerConfig selects the ledger backend and its connection settings.
type LedgerConfig = ledger.Config

// SqliteConfig configures the sqlite ledger backend.
type SqliteConfig = ledger.SqliteConfig

// PostgresConfig configures the postgres ledger backend.
type PostgresConfig = ledger.PostgresConfig

// Error taxonomy

type MalformedMigrationError = source.MalformedMigrationError
type DuplicateVersionError = source.DuplicateVersionError
type ChecksumDriftError = engine.ChecksumDriftError
type ExecutionError = engine.ExecutionError
type IrreversibleMigrationError = engine.IrreversibleMigrationError

// Ledger drivers and defaults.
const (
	DriverSqlite   = ledger.DriverSqlite
	DriverPostgres = ledger.DriverPostgres

	DefaultTableName  = ledger.DefaultTableName
	DefaultDBFileName = ledger.DefaultDBFileName
)

// OpenLedger connects to the configured database and ensures the ledger
// schema exists (idempotent).
func OpenLedger(cfg LedgerConfig) (*Ledger, error) {
	return ledger.Open(cfg)
}

// ConnectLedger connects without creating the ledger schema, for
// read-only inspection of a database that may not have one yet.
func ConnectLedger(cfg LedgerConfig) (*Ledger, error) {
	return ledger.Connect(cfg)
}

// LoadMigrations reads a migration directory sorted ascending by version.
func LoadMigrations(dir string) ([]Migration, error) {
	return source.Load(dir)
}

// Apply runs all pending migrations from dir, oldest first.
func Apply(ctx context.Context, dir string, l *Ledger) ([]Applied, error) {
	m := &Migrator{Dir: dir, Ledger: l}
	return m.Apply(ctx)
}

// Rollback undoes the steps most recently applied migrations, newest first.
func Rollback(ctx context.Context, dir string, l *Ledger, steps int) ([]RolledBack, error) {
	m := &Migrator{Dir: dir, Ledger: l}
	return m.Rollback(ctx, steps)
}
