// Package testutil opens migrated SQLite databases for package tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"leadhook/internal/platform/database"
	"leadhook/migrations"
)

func open(t *testing.T, name, dir string) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	// One connection keeps concurrent test writers serialized at the driver.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := database.ApplyMigrations(db, migrations.FS, dir); err != nil {
		t.Fatalf("Failed to migrate %s: %v", dir, err)
	}
	return db
}

// GlobalDB returns a fresh database with the global schema applied.
func GlobalDB(t *testing.T) *sql.DB {
	return open(t, "global.db", migrations.GlobalDir)
}

// TenantDB returns a fresh database with the tenant schema applied.
func TenantDB(t *testing.T) *sql.DB {
	return open(t, "tenant.db", migrations.TenantDir)
}
