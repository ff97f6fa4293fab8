package migrations

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed postgres/*.sql
var postgresFS embed.FS

// RunPostgres executes all Postgres migrations in lexical order. Every
// statement is idempotent (IF NOT EXISTS), so reruns are safe.
func RunPostgres(ctx context.Context, db *sqlx.DB) error {
	entries, err := postgresFS.ReadDir("postgres")
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, file := range upFiles {
		migration, err := postgresFS.ReadFile("postgres/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		if _, err := db.ExecContext(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}

	return nil
}
