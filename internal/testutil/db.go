// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"bigpartner/internal/config"
	"bigpartner/internal/database"
)

// NewDB opens a migrated SQLite database in a per-test temp directory.
// The connection is closed when the test finishes.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	conn, err := database.Open(&config.DatabaseConfig{URL: "sqlite:///" + path})
	if err != nil {
		t.Fatalf("database.Open() failed: %v", err)
	}
	if err := database.Migrate(conn); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(conn) })
	return conn
}
