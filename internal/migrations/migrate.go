package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// Dialect selects the migration set and goose dialect.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

//go:embed sqlite/*.sql postgres/*.sql
var embedded embed.FS

func (d Dialect) goose() (goose.Dialect, string, error) {
	switch d {
	case SQLite:
		return goose.DialectSQLite3, "sqlite", nil
	case Postgres:
		return goose.DialectPostgres, "postgres", nil
	}
	return "", "", fmt.Errorf("unsupported migration dialect %q", d)
}

// Up runs all pending SQL migrations embedded for the dialect. It keeps no
// global goose state, so separate databases can be migrated concurrently.
func Up(db *sql.DB, d Dialect) error {
	dialect, dir, err := d.goose()
	if err != nil {
		return err
	}

	migrations, err := fs.Sub(embedded, dir)
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, migrations)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}

	if _, err := provider.Up(context.Background()); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}

	return nil
}
