// Package storage provides abstractions for persistent quote storage.
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/Simplici0/budgets/internal/budget"
	"github.com/Simplici0/budgets/internal/pricing"
)

// ErrNotFound is returned when a budget does not exist.
var ErrNotFound = errors.New("budget not found")

// BudgetStore defines the budget persistence operations. This abstraction
// allows swapping storage backends (SQLite, PostgreSQL) without changing
// the service layer.
type BudgetStore interface {
	// ListBudgets returns the budgets matching filter, with their items.
	ListBudgets(ctx context.Context, filter ListFilter) ([]*budget.Budget, error)

	// GetBudget returns a budget and its items, or ErrNotFound.
	GetBudget(ctx context.Context, id string) (*budget.Budget, error)

	// SaveBudget inserts or updates the budget header. Afterwards the stored
	// items are exactly b.Items, in order: present items are upserted by id
	// and missing ones deleted, all in one transaction.
	SaveBudget(ctx context.Context, b *budget.Budget) error

	// DeleteBudget removes a budget and its items, or returns ErrNotFound.
	DeleteBudget(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

// Status selects budgets by their archived flag.
type Status string

const (
	StatusAll      Status = ""
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Sort orders listed budgets.
type Sort string

const (
	SortRecent Sort = ""
	SortOldest Sort = "oldest"
	SortTitle  Sort = "title"
)

// ListFilter narrows ListBudgets. The zero value returns every budget,
// most recent first.
type ListFilter struct {
	Query  string
	Year   int
	Status Status
	Closed *bool
	Sort   Sort
}

// Match reports whether b passes the filter.
func (f ListFilter) Match(b *budget.Budget) bool {
	if q := strings.TrimSpace(f.Query); q != "" &&
		!strings.Contains(strings.ToLower(b.Title), strings.ToLower(q)) {
		return false
	}
	if f.Year != 0 && b.CreatedAt.Year() != f.Year {
		return false
	}
	switch f.Status {
	case StatusActive:
		if b.Archived {
			return false
		}
	case StatusArchived:
		if !b.Archived {
			return false
		}
	}
	if f.Closed != nil && b.Closed != *f.Closed {
		return false
	}
	return true
}

// Apply filters and sorts budgets in place and returns the kept ones.
func (f ListFilter) Apply(budgets []*budget.Budget) []*budget.Budget {
	kept := budgets[:0]
	for _, b := range budgets {
		if f.Match(b) {
			kept = append(kept, b)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		switch f.Sort {
		case SortOldest:
			return a.CreatedAt.Before(b.CreatedAt)
		case SortTitle:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})
	return kept
}

// DateLayout is how calendar dates are stored as text.
const DateLayout = "2006-01-02"

// ResolveLock returns the stored price lock. Rows written before the lock
// was tracked have none; for those the lock is inferred from whether the
// adjusted value had drifted away from the nominal one.
func ResolveLock(stored *bool, adjustedValue, saleValue float64) bool {
	if stored != nil {
		return *stored
	}
	return !pricing.InSync(pricing.Previous{AdjustedValue: adjustedValue, SaleValue: saleValue})
}
