package schemamigrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateMigration_FirstFile(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateMigration(CreateOptions{Dir: dir, Name: "Create Users"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "001_create_users.sql" {
		t.Fatalf("unexpected file name: %s", filepath.Base(path))
	}

	raw, err := os.ReadFile(path) // #nosec G304 -- temp path created by this test
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "-- +migrate Up") || !strings.Contains(content, "-- +migrate Down") {
		t.Fatalf("skeleton missing markers:\n%s", content)
	}
}

func TestCreateMigration_NumbersSequentially(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "007_existing.sql"),
		[]byte("CREATE TABLE t (id INTEGER);\n"), 0o600); err != nil {
		t.Fatalf("seed: %v", err)
	}

	path, err := CreateMigration(CreateOptions{Dir: dir, Name: "next"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "008_next.sql" {
		t.Fatalf("expected 008_next.sql, got %s", filepath.Base(path))
	}

	// An unfilled skeleton still reserves its version number.
	path2, err := CreateMigration(CreateOptions{Dir: dir, Name: "after"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if filepath.Base(path2) != "009_after.sql" {
		t.Fatalf("expected 009_after.sql, got %s", filepath.Base(path2))
	}
}

func TestCreateMigration_DefaultsName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateMigration(CreateOptions{Dir: dir})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "001_migration.sql" {
		t.Fatalf("unexpected file name: %s", filepath.Base(path))
	}
}

func TestCreateMigration_RequiresDir(t *testing.T) {
	if _, err := CreateMigration(CreateOptions{Name: "x"}); err == nil {
		t.Fatal("expected error for empty directory")
	}
}
