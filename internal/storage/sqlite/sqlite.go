// Package sqlite provides a SQLite-backed implementation of the budget and
// catalog stores.
package sqlite

import (
	"database/sql"
	"strings"

	"github.com/Simplici0/budgets/internal/catalog"
	"github.com/Simplici0/budgets/internal/storage"
)

var (
	_ storage.BudgetStore = (*Store)(nil)
	_ catalog.Store       = (*Store)(nil)
)

// Store implements storage.BudgetStore and catalog.Store on a migrated
// SQLite database.
type Store struct {
	db *sql.DB
}

// New wraps an open, migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
