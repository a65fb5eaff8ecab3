// Package catalog keeps the learned reference table of previously priced line
// items and answers the price-autofill suggestions built from it.
package catalog

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/Simplici0/budgets/internal/budget"
)

// ErrNotFound is returned when no entry exists for a name.
var ErrNotFound = errors.New("catalog entry not found")

// Entry is one learned item. Name is the case-sensitive natural key.
type Entry struct {
	Name       string          `json:"name"`
	LastPrice  float64         `json:"last_price"`
	Category   budget.Category `json:"category"`
	UsageCount int             `json:"usage_count"`
}

// Store persists catalog entries.
type Store interface {
	// FindEntry returns the entry whose name matches exactly, or ErrNotFound.
	FindEntry(ctx context.Context, name string) (*Entry, error)

	// UpsertEntry writes e as is, replacing any entry with the same name.
	UpsertEntry(ctx context.Context, e Entry) error

	// RecordUsage creates the entry with a usage count of 1, or sets its
	// price and category and increments its usage count. It must be atomic
	// with respect to concurrent calls for the same name.
	RecordUsage(ctx context.Context, name string, price float64, category budget.Category) error

	// Query returns the entries matching Suggest's rules, most used first.
	Query(ctx context.Context, partial string, category budget.Category) ([]Entry, error)

	// List returns every entry, most used first.
	List(ctx context.Context) ([]Entry, error)
}

// Matches reports whether e should be suggested for the typed text. An
// empty category accepts every entry; otherwise entries without a category
// or with the same category are kept.
func Matches(e Entry, partial string, category budget.Category) bool {
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return false
	}
	if !strings.Contains(strings.ToLower(e.Name), strings.ToLower(partial)) {
		return false
	}
	return category == "" || e.Category == "" || e.Category == category
}

// Suggest filters entries with Matches, keeping their order.
func Suggest(entries []Entry, partial string, category budget.Category) []Entry {
	out := make([]Entry, 0)
	for _, e := range entries {
		if Matches(e, partial, category) {
			out = append(out, e)
		}
	}
	return out
}

// SortByUsage orders entries by usage count descending, then by name.
func SortByUsage(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].UsageCount != entries[j].UsageCount {
			return entries[i].UsageCount > entries[j].UsageCount
		}
		return entries[i].Name < entries[j].Name
	})
}

// Fill copies a chosen suggestion into the add-item row: its name becomes
// the description and its last price the unit cost.
func (e Entry) Fill(draft *budget.ItemDraft) {
	draft.Description = e.Name
	draft.UnitCost = strconv.FormatFloat(e.LastPrice, 'f', -1, 64)
}
