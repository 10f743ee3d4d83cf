// Package migrations applique le schéma SQL embarqué (idempotent, CREATE ... IF NOT EXISTS).
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

//go:embed sql
var files embed.FS

// Statements renvoie les instructions du dialecte, dans l'ordre des fichiers.
func Statements(dialect Dialect) ([]string, error) {
	dir := path.Join("sql", string(dialect))
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return nil, fmt.Errorf("unknown dialect %q: %w", dialect, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var stmts []string
	for _, name := range names {
		raw, err := files.ReadFile(path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		for _, stmt := range strings.Split(string(raw), ";") {
			if s := strings.TrimSpace(stmt); s != "" {
				stmts = append(stmts, s)
			}
		}
	}
	return stmts, nil
}

// Apply exécute chaque instruction sur db.
func Apply(ctx context.Context, db *sql.DB, dialect Dialect) error {
	stmts, err := Statements(dialect)
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s #%d: %w", dialect, i+1, err)
		}
	}
	return nil
}
