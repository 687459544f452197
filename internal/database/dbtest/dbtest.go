// Package dbtest opens throwaway SQLite databases migrated with the application schema.
package dbtest

import (
	"path/filepath"
	"testing"

	"printhub/internal/database"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated database living in the test's temp dir.
// The pool is capped at one connection so SQLite never reports SQLITE_BUSY
// between a transaction and a stray read.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "printhub.db")
	db, err := database.Open(sqlite.Open(path), logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
