package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/grantwise/schemamigrate/internal/common"
)

// Record is one row of the ledger table: proof that a migration's up
// script committed against this database. The checksum is the digest
// recorded at execution time and is never recomputed.
type Record struct {
	Version    int
	Name       string
	ExecutedAt time.Time
	Checksum   string
}

// Dialect abstracts the driver-specific pieces of ledger persistence.
type Dialect interface {
	Name() string
	Connect(dsn string) (*sql.DB, error)
	Placeholder(index int) string
	EnsureStatements(table string) []string
	TableExistsQuery() string
	TimeToStorage(t time.Time) interface{}
	TimeFromStorage(v interface{}) time.Time
}

// Ledger owns the persistent record of applied migrations. All writes go
// through tx-scoped methods so the executor can commit a script and its
// ledger row atomically.
type Ledger struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

// New wraps an already-open database handle. The handle stays owned by
// the caller; Close is still safe to call and closes it.
func New(db *sql.DB, dialect Dialect, table string) *Ledger {
	if table == "" {
		table = DefaultTableName
	}
	return &Ledger{db: db, dialect: dialect, table: table}
}

// Open connects to the configured database and ensures the ledger schema
// exists. Schema creation is idempotent and is the engine's own bootstrap
// migration, exempt from the version/checksum apparatus.
func Open(cfg Config) (*Ledger, error) {
	dialect, dsn, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	db, err := dialect.Connect(dsn)
	if err != nil {
		return nil, err
	}
	l := New(db, dialect, cfg.Table)
	if err := l.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	common.GetLogger().WithStore(dialect.Name()).Debug("ledger opened", "table", l.table)
	return l, nil
}

// Connect connects without touching the schema. Read-only callers
// (status) use it so inspecting a fresh database cannot bootstrap the
// ledger table.
func Connect(cfg Config) (*Ledger, error) {
	dialect, dsn, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	db, err := dialect.Connect(dsn)
	if err != nil {
		return nil, err
	}
	l := New(db, dialect, cfg.Table)

	common.GetLogger().WithStore(dialect.Name()).Debug("ledger connected", "table", l.table)
	return l, nil
}

// SchemaExists reports whether the ledger table is present.
func (l *Ledger) SchemaExists(ctx context.Context) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx, l.dialect.TableExistsQuery(), l.table).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ledger table %s: %w", l.table, err)
	}
	return true, nil
}

// DB exposes the underlying handle; the executor uses it to begin the
// per-migration transactions that the tx-scoped writes participate in.
func (l *Ledger) DB() *sql.DB {
	return l.db
}

// Table returns the ledger table name.
func (l *Ledger) Table() string {
	return l.table
}

// Dialect returns the active SQL dialect.
func (l *Ledger) Dialect() Dialect {
	return l.dialect
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// EnsureSchema creates the ledger table and its executed_at index if they
// do not exist. Safe to call repeatedly.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	logger := common.GetLogger().WithStore(l.dialect.Name())
	for i, q := range l.dialect.EnsureStatements(l.table) {
		if _, err := l.db.ExecContext(ctx, q); err != nil {
			logger.Error("failed to ensure ledger schema", "error", err, "statement_index", i+1)
			return fmt.Errorf("failed to ensure ledger schema (statement %d): %w", i+1, err)
		}
	}
	return nil
}

// RecordApplied inserts a ledger row inside the caller's transaction.
func (l *Ledger) RecordApplied(ctx context.Context, tx *sql.Tx, version int, name, checksum string) error {
	q := fmt.Sprintf("INSERT INTO %s(version, name, executed_at, checksum) VALUES(%s, %s, %s, %s)",
		l.table, l.dialect.Placeholder(1), l.dialect.Placeholder(2), l.dialect.Placeholder(3), l.dialect.Placeholder(4))

	_, err := tx.ExecContext(ctx, q, version, name, l.dialect.TimeToStorage(time.Now().UTC()), checksum)
	if err != nil {
		return fmt.Errorf("failed to record applied migration %d: %w", version, err)
	}
	return nil
}

// RecordRolledBack deletes a ledger row inside the caller's transaction.
func (l *Ledger) RecordRolledBack(ctx context.Context, tx *sql.Tx, version int) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE version = %s", l.table, l.dialect.Placeholder(1))

	res, err := tx.ExecContext(ctx, q, version)
	if err != nil {
		return fmt.Errorf("failed to record rollback of migration %d: %w", version, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no ledger record for version %d", version)
	}
	return nil
}

// ListApplied returns every ledger record ordered by version ascending.
func (l *Ledger) ListApplied(ctx context.Context) ([]Record, error) {
	q := fmt.Sprintf("SELECT version, name, executed_at, checksum FROM %s ORDER BY version ASC", l.table)
	return l.queryRecords(ctx, q)
}

// RecentFirst returns up to limit records ordered by application recency,
// newest first. Ledger order, not source order, is authoritative for
// rollback; version breaks ties between same-instant commits.
func (l *Ledger) RecentFirst(ctx context.Context, limit int) ([]Record, error) {
	q := fmt.Sprintf("SELECT version, name, executed_at, checksum FROM %s ORDER BY executed_at DESC, version DESC", l.table)
	if limit > 0 {
		return l.queryRecords(ctx, q+" LIMIT "+l.dialect.Placeholder(1), limit)
	}
	return l.queryRecords(ctx, q)
}

// CurrentVersion returns the highest applied version, or 0 if none.
func (l *Ledger) CurrentVersion(ctx context.Context) (int, error) {
	q := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", l.table)

	var v int
	if err := l.db.QueryRowContext(ctx, q).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return v, nil
}

// IsApplied reports whether a version exists in the ledger.
func (l *Ledger) IsApplied(ctx context.Context, version int) (bool, error) {
	q := fmt.Sprintf("SELECT 1 FROM %s WHERE version = %s", l.table, l.dialect.Placeholder(1))

	var one int
	err := l.db.QueryRowContext(ctx, q, version).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check if migration %d is applied: %w", version, err)
	}
	return true, nil
}

func (l *Ledger) queryRecords(ctx context.Context, q string, args ...interface{}) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []Record
	for rows.Next() {
		var r Record
		var executedAt interface{}
		if err := rows.Scan(&r.Version, &r.Name, &executedAt, &r.Checksum); err != nil {
			return nil, fmt.Errorf("failed to scan ledger record: %w", err)
		}
		r.ExecutedAt = l.dialect.TimeFromStorage(executedAt)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger records: %w", err)
	}
	return recs, nil
}
