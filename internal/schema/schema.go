// Package schema embeds the Lectern SQL migrations.
// The same files drive golang-migrate for PostgreSQL and Apply for SQLite.
package schema

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Migrations holds the versioned up and down scripts.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Dir is the directory of the scripts inside Migrations.
const Dir = "migrations"

// Apply executes every up script in version order. It is intended for fresh
// SQLite databases, which do not track migration versions.
func Apply(ctx context.Context, db *sql.DB) error {
	entries, err := fs.ReadDir(Migrations, Dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := fs.ReadFile(Migrations, Dir+"/"+name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		for _, stmt := range statements(string(data)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
		}
	}

	return nil
}

func statements(script string) []string {
	parts := strings.Split(script, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
