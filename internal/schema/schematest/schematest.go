// Package schematest opens migrated SQLite databases for tests.
package schematest

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/JaimeStill/lectern/internal/schema"
	"github.com/JaimeStill/lectern/pkg/database"
)

// Logger discards all output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Open returns a fresh SQLite database in a temporary directory with every
// migration applied. The database is closed when the test ends.
func Open(t testing.TB) database.System {
	t.Helper()

	cfg := &database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "lectern.db"),
	}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize database config: %v", err)
	}

	db, err := database.New(cfg, Logger())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Connection().Close() })

	if err := schema.Apply(context.Background(), db.Connection()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// DB is Open returning the raw handle.
func DB(t testing.TB) *sql.DB {
	t.Helper()
	return Open(t).Connection()
}
