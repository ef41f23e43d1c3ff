package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect implements the ledger SQL dialect for PostgreSQL and
// Postgres-wire databases such as CockroachDB.
type Dialect struct{}

// NewDialect creates a new PostgreSQL dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// Name returns the driver name for logging
func (p *Dialect) Name() string {
	return "postgres"
}

// Placeholder returns PostgreSQL-style placeholders ($1, $2, ...)
func (p *Dialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

// Connect establishes a connection via the pgx stdlib driver.
func (p *Dialect) Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	return db, nil
}

// EnsureStatements returns PostgreSQL-specific ledger DDL. The executed_at
// index serves the "most recent N" query used by rollback.
func (p *Dialect) EnsureStatements(table string) []string {
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (version BIGINT PRIMARY KEY, name TEXT NOT NULL, executed_at TIMESTAMPTZ NOT NULL DEFAULT now(), checksum TEXT NOT NULL)", table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_executed_at_idx ON %s (executed_at DESC)", table, table),
	}
}

// TableExistsQuery returns a query yielding a row iff the named table exists.
func (p *Dialect) TableExistsQuery() string {
	return "SELECT 1 FROM information_schema.tables WHERE table_name = $1"
}

// TimeToStorage converts time to PostgreSQL storage format (native time.Time)
func (p *Dialect) TimeToStorage(t time.Time) interface{} {
	return t.UTC()
}

// TimeFromStorage converts PostgreSQL time storage back to time.Time
func (p *Dialect) TimeFromStorage(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t != nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
