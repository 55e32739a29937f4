// Package migrations embeds and applies the SQL registry backend's schema,
// in the shape golang-migrate/migrate/v4 expects (ordered, idempotent
// up-migrations), but run directly against *sql.DB rather than through the
// migrate driver so that the SQL backend has no additional runtime
// dependency for its one-time schema bootstrap.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
)

//go:embed *.sql
var files embed.FS

// Apply executes every embedded migration file against db in filename
// order. Each file is expected to be idempotent (CREATE TABLE IF NOT
// EXISTS, CREATE INDEX IF NOT EXISTS) so Apply is safe to call on every
// Foundation.Install.
func Apply(ctx context.Context, db *sql.DB) error {
	entries, err := files.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		contents, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}
