package testkit

import (
	"io"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	_ "github.com/shashiranjanraj/offersync/database/migrations"
	"github.com/shashiranjanraj/offersync/pkg/database"
	"github.com/shashiranjanraj/offersync/pkg/migration"
)

// NewDB opens a fresh sqlite database in t.TempDir() and runs every
// registered migration against it. The connection is closed on cleanup.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "offersync_test.db")
	db, err := database.Open("sqlite", path)
	if err != nil {
		t.Fatalf("testkit: open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := migration.New(db).WithOutput(io.Discard).Run(); err != nil {
		t.Fatalf("testkit: migrate: %v", err)
	}
	return db
}
