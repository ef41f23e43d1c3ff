package engine

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/grantwise/schemamigrate/internal/ledger"
)

func newTestMigrator(t *testing.T) (*Migrator, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := ledger.Open(ledger.Config{
		Driver: ledger.DriverSqlite,
		SQLite: ledger.SqliteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")},
	})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return &Migrator{Dir: dir, Ledger: l}, dir
}

func writeMigration(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func tableExists(t *testing.T, m *Migrator, table string) bool {
	t.Helper()
	var name string
	err := m.Ledger.DB().QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return true
}

func appliedVersions(t *testing.T, m *Migrator) []int {
	t.Helper()
	recs, err := m.Ledger.ListApplied(context.Background())
	if err != nil {
		t.Fatalf("list applied: %v", err)
	}
	out := make([]int, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Version)
	}
	return out
}

func TestApply_RunsPendingInOrder(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "002_second.sql", "CREATE TABLE t2 (id INTEGER);\n-- +migrate Down\nDROP TABLE t2;\n")
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n-- +migrate Down\nDROP TABLE t1;\n")
	writeMigration(t, dir, "003_third.sql", "CREATE TABLE t3 (id INTEGER);\n-- +migrate Down\nDROP TABLE t3;\n")

	results, err := m.Apply(context.Background())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 applied, got %d", len(results))
	}
	for i, want := range []int{1, 2, 3} {
		if results[i].Version != want {
			t.Fatalf("expected version %d at index %d, got %d", want, i, results[i].Version)
		}
	}
	for _, tbl := range []string{"t1", "t2", "t3"} {
		if !tableExists(t, m, tbl) {
			t.Fatalf("expected table %s to exist", tbl)
		}
	}
}

func TestApply_Idempotent(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n")

	if _, err := m.Apply(context.Background()); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	results, err := m.Apply(context.Background())
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("second apply must be a no-op, got %d results", len(results))
	}
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n")
	writeMigration(t, dir, "002_broken.sql", "CREATE TALBE t2 (id INTEGER);\n")
	writeMigration(t, dir, "003_third.sql", "CREATE TABLE t3 (id INTEGER);\n")

	results, err := m.Apply(context.Background())
	var exErr *ExecutionError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if exErr.Version != 2 || exErr.Direction != "up" {
		t.Fatalf("unexpected failure detail: %+v", exErr)
	}
	if len(results) != 1 || results[0].Version != 1 {
		t.Fatalf("expected migration 1 committed before the failure, got %+v", results)
	}
	if got := appliedVersions(t, m); len(got) != 1 || got[0] != 1 {
		t.Fatalf("ledger must record only migration 1, got %v", got)
	}
	if tableExists(t, m, "t3") {
		t.Fatal("migration 3 must not run after a failure")
	}
}

func TestApply_ResumesAfterFix(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n")
	writeMigration(t, dir, "002_broken.sql", "CREATE TALBE t2 (id INTEGER);\n")

	if _, err := m.Apply(context.Background()); err == nil {
		t.Fatal("expected first apply to fail")
	}

	// Editing a pending (never applied) migration is legitimate.
	writeMigration(t, dir, "002_broken.sql", "CREATE TABLE t2 (id INTEGER);\n")
	writeMigration(t, dir, "003_third.sql", "CREATE TABLE t3 (id INTEGER);\n")

	results, err := m.Apply(context.Background())
	if err != nil {
		t.Fatalf("apply after fix: %v", err)
	}
	if len(results) != 2 || results[0].Version != 2 || results[1].Version != 3 {
		t.Fatalf("expected versions 2 and 3 applied, got %+v", results)
	}
	if got := appliedVersions(t, m); len(got) != 3 {
		t.Fatalf("expected 3 ledger records, got %v", got)
	}
}

func TestApply_DetectsDrift(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n")
	if _, err := m.Apply(context.Background()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER, edited INTEGER);\n")
	writeMigration(t, dir, "002_second.sql", "CREATE TABLE t2 (id INTEGER);\n")

	_, err := m.Apply(context.Background())
	var drift *ChecksumDriftError
	if !errors.As(err, &drift) {
		t.Fatalf("expected ChecksumDriftError, got %v", err)
	}
	if drift.Version != 1 || drift.Current == "" || drift.Recorded == drift.Current {
		t.Fatalf("unexpected drift detail: %+v", drift)
	}
	if tableExists(t, m, "t2") {
		t.Fatal("nothing may execute once drift is detected")
	}
}

func TestApply_DetectsMissingSource(t *testing.T) {
	m, dir := newTestMigrator(t)
	path := filepath.Join(dir, "001_first.sql")
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n")
	if _, err := m.Apply(context.Background()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_, err := m.Apply(context.Background())
	var drift *ChecksumDriftError
	if !errors.As(err, &drift) {
		t.Fatalf("expected ChecksumDriftError for missing source, got %v", err)
	}
	if drift.Current != "" {
		t.Fatalf("missing source must carry no current checksum, got %q", drift.Current)
	}
}

func TestRollback_UndoesByRecency(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n-- +migrate Down\nDROP TABLE t1;\n")
	writeMigration(t, dir, "002_second.sql", "CREATE TABLE t2 (id INTEGER);\n-- +migrate Down\nDROP TABLE t2;\n")
	if _, err := m.Apply(context.Background()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	results, err := m.Rollback(context.Background(), 1)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if len(results) != 1 || results[0].Version != 2 {
		t.Fatalf("expected only version 2 rolled back, got %+v", results)
	}
	if tableExists(t, m, "t2") {
		t.Fatal("t2 should be dropped")
	}
	if !tableExists(t, m, "t1") {
		t.Fatal("t1 must survive a single-step rollback")
	}
	if got := appliedVersions(t, m); len(got) != 1 || got[0] != 1 {
		t.Fatalf("ledger should retain only version 1, got %v", got)
	}
}

func TestRollback_MoreStepsThanApplied(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n-- +migrate Down\nDROP TABLE t1;\n")
	writeMigration(t, dir, "002_second.sql", "CREATE TABLE t2 (id INTEGER);\n-- +migrate Down\nDROP TABLE t2;\n")
	if _, err := m.Apply(context.Background()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	results, err := m.Rollback(context.Background(), 10)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected everything rolled back, got %+v", results)
	}
	if got := appliedVersions(t, m); len(got) != 0 {
		t.Fatalf("expected empty ledger, got %v", got)
	}
}

func TestRollback_ZeroStepsIsNoop(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n-- +migrate Down\nDROP TABLE t1;\n")
	if _, err := m.Apply(context.Background()); err != nil {
		t.Fatalf("apply: %v", err)
	}
	results, err := m.Rollback(context.Background(), 0)
	if err != nil || results != nil {
		t.Fatalf("expected nil, nil for zero steps, got %v, %v", results, err)
	}
}

func TestRollback_IrreversibleAborts(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "001_keep.sql", "CREATE TABLE t1 (id INTEGER);\n-- +migrate NoDown\n")
	writeMigration(t, dir, "002_drop_me.sql", "CREATE TABLE t2 (id INTEGER);\n-- +migrate Down\nDROP TABLE t2;\n")
	if _, err := m.Apply(context.Background()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	results, err := m.Rollback(context.Background(), 2)
	var irr *IrreversibleMigrationError
	if !errors.As(err, &irr) {
		t.Fatalf("expected IrreversibleMigrationError, got %v", err)
	}
	if irr.Version != 1 || !irr.Declared {
		t.Fatalf("unexpected error detail: %+v", irr)
	}
	// Version 2 rolled back before the abort; version 1 stays applied.
	if len(results) != 1 || results[0].Version != 2 {
		t.Fatalf("expected version 2 rolled back first, got %+v", results)
	}
	if got := appliedVersions(t, m); len(got) != 1 || got[0] != 1 {
		t.Fatalf("irreversible migration must keep its ledger record, got %v", got)
	}
	if !tableExists(t, m, "t1") {
		t.Fatal("irreversible migration's schema must be untouched")
	}
}

func TestRollback_MissingDownWithoutDeclaration(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n")
	if _, err := m.Apply(context.Background()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	_, err := m.Rollback(context.Background(), 1)
	var irr *IrreversibleMigrationError
	if !errors.As(err, &irr) {
		t.Fatalf("expected IrreversibleMigrationError, got %v", err)
	}
	if irr.Declared {
		t.Fatal("absent down section is not a declared NoDown")
	}
}

func TestRollback_DetectsDrift(t *testing.T) {
	m, dir := newTestMigrator(t)
	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n-- +migrate Down\nDROP TABLE t1;\n")
	if _, err := m.Apply(context.Background()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	writeMigration(t, dir, "001_first.sql", "CREATE TABLE t1 (id INTEGER);\n-- +migrate Down\nDROP TABLE t1 CASCADE;\n")
	_, err := m.Rollback(context.Background(), 1)
	var drift *ChecksumDriftError
	if !errors.As(err, &drift) {
		t.Fatalf("expected ChecksumDriftError, got %v", err)
	}
	if !tableExists(t, m, "t1") {
		t.Fatal("no down script may run against a drifted definition")
	}
}
