package migrations

import (
	"path/filepath"
	"testing"

	"github.com/Simplici0/budgets/internal/db"
)

func TestUpSQLiteIsRepeatable(t *testing.T) {
	t.Parallel()

	database, err := db.Open(filepath.Join(t.TempDir(), "migrate-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	defer database.Close()

	for i := 0; i < 2; i++ {
		if err := Up(database, SQLite); err != nil {
			t.Fatalf("run migrations (iteration=%d): %v", i, err)
		}
	}

	for _, table := range []string{"budgets", "budget_items", "catalog"} {
		var name string
		err := database.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("expected table %s: %v", table, err)
		}
	}
}

func TestUpRejectsUnknownDialect(t *testing.T) {
	t.Parallel()

	if err := Up(nil, Dialect("mysql")); err == nil {
		t.Fatalf("expected error for unknown dialect")
	}
}
