// Package postgres provides a PostgreSQL implementation of the budget and
// catalog stores on a pgx connection pool.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Simplici0/budgets/internal/catalog"
	"github.com/Simplici0/budgets/internal/storage"
)

var (
	_ storage.BudgetStore = (*Store)(nil)
	_ catalog.Store       = (*Store)(nil)
)

// Store implements storage.BudgetStore and catalog.Store on a migrated
// PostgreSQL database.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
