package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/rs/zerolog/log"
)

// ApplyMigrations executes every .sql file under dir in lexical order.
// Statements are written with IF NOT EXISTS so re-running is harmless.
func ApplyMigrations(db *sql.DB, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("failed to read migration directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".sql" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		log.Debug().Str("migration", name).Msg("applying migration")
		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}
	return nil
}
