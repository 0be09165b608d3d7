package userstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

var migrationDirs = map[goose.Dialect]string{
	goose.DialectPostgres: "migrations/postgres",
	goose.DialectSQLite3:  "migrations/sqlite",
}

// Migrate applies every pending embedded migration for dialect. It uses a
// goose Provider rather than the package-level goose state so two stores
// with different dialects can migrate in one process.
func Migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect) error {
	dir, ok := migrationDirs[dialect]
	if !ok {
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("migration fs: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}
