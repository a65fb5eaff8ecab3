package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/budgets/internal/budget"
	"github.com/Simplici0/budgets/internal/catalog"
)

// FindEntry returns the catalog entry with exactly this name.
func (s *Store) FindEntry(ctx context.Context, name string) (*catalog.Entry, error) {
	var (
		e        catalog.Entry
		category string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT name, last_price, category, usage_count
		FROM catalog
		WHERE name = ?
	`, name).Scan(&e.Name, &e.LastPrice, &category, &e.UsageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query catalog entry: %w", err)
	}
	e.Category = budget.Category(category)
	return &e, nil
}

// UpsertEntry writes e, replacing every field of an existing entry.
func (s *Store) UpsertEntry(ctx context.Context, e catalog.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog (name, last_price, category, usage_count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			last_price = excluded.last_price,
			category = excluded.category,
			usage_count = excluded.usage_count,
			updated_at = CURRENT_TIMESTAMP
	`, e.Name, e.LastPrice, string(e.Category), e.UsageCount)
	if err != nil {
		return fmt.Errorf("upsert catalog entry: %w", err)
	}
	return nil
}

// RecordUsage inserts or bumps an entry in a single statement.
func (s *Store) RecordUsage(ctx context.Context, name string, price float64, category budget.Category) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog (name, last_price, category, usage_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			last_price = excluded.last_price,
			category = excluded.category,
			usage_count = catalog.usage_count + 1,
			updated_at = CURRENT_TIMESTAMP
	`, name, price, string(category))
	if err != nil {
		return fmt.Errorf("record catalog usage: %w", err)
	}
	return nil
}

// Query returns the entries suggested for partial, most used first.
func (s *Store) Query(ctx context.Context, partial string, category budget.Category) ([]catalog.Entry, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Suggest(entries, partial, category), nil
}

// List returns every catalog entry, most used first. Ordering happens in
// Go so ties break by byte order on every backend.
func (s *Store) List(ctx context.Context) ([]catalog.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, last_price, category, usage_count
		FROM catalog
	`)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	entries := make([]catalog.Entry, 0)
	for rows.Next() {
		var (
			e        catalog.Entry
			category string
		)
		if err := rows.Scan(&e.Name, &e.LastPrice, &category, &e.UsageCount); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		e.Category = budget.Category(category)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	catalog.SortByUsage(entries)
	return entries, nil
}
