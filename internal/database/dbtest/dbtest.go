// Package dbtest opens throwaway in-memory databases for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	"sessionauth/internal/database"
)

// Open returns a migrated in-memory SQLite database private to t.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:sessionauth_%s?mode=memory&cache=shared", name)

	db, err := database.Connect(dsn, database.Options{Silent: true})
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
