package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const busyTimeoutMS = 5000

// timeStorageFormat is fixed-width (nine fractional digits, always
// present) so the TEXT column's lexicographic order matches
// chronological order. RFC3339Nano trims trailing zeros and would make
// "…00.5Z" sort after "…00.51Z".
const timeStorageFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Dialect implements the ledger SQL dialect for SQLite.
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// DSN builds a file DSN with the busy timeout and foreign keys enabled.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, busyTimeoutMS)
}

// Name returns the driver name for logging
func (s *Dialect) Name() string {
	return "sqlite"
}

// Placeholder returns SQLite-style placeholders (?)
func (s *Dialect) Placeholder(_ int) string {
	return "?"
}

// Connect opens an SQLite database and restricts the pool to one writer.
func (s *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	// SQLite allows only one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// EnsureStatements returns SQLite-specific ledger DDL. The executed_at
// index serves the "most recent N" query used by rollback.
func (s *Dialect) EnsureStatements(table string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (version INTEGER PRIMARY KEY, name TEXT NOT NULL, executed_at TEXT NOT NULL, checksum TEXT NOT NULL)", table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_executed_at_idx ON %s (executed_at DESC)", table, table),
	}
}

// TableExistsQuery returns a query yielding a row iff the named table exists.
func (s *Dialect) TableExistsQuery() string {
	return "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?"
}

// TimeToStorage converts time to SQLite storage format (fixed-width UTC string)
func (s *Dialect) TimeToStorage(t time.Time) interface{} {
	return t.UTC().Format(timeStorageFormat)
}

// TimeFromStorage converts SQLite string storage back to time.Time
func (s *Dialect) TimeFromStorage(v interface{}) time.Time {
	str, ok := v.(string)
	if !ok {
		if b, ok := v.([]byte); ok {
			str = string(b)
		} else {
			return time.Time{}
		}
	}
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return time.Time{}
	}
	return t
}
