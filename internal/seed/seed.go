// Package seed fills an empty catalog with starter entries so price
// suggestions work before any budget has been saved.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/Simplici0/budgets/internal/budget"
	"github.com/Simplici0/budgets/internal/catalog"
)

// Stats contains seed operation counters.
type Stats struct {
	Inserts  int
	Existing int
}

// StarterEntries returns the entries written by Run. They start with a usage
// count of zero so learned items always rank above them.
func StarterEntries() []catalog.Entry {
	return []catalog.Entry{
		{Name: "Diária de Filmagem", LastPrice: 2500, Category: budget.CategoryProduction},
		{Name: "Roteiro", LastPrice: 800, Category: budget.CategoryProduction},
		{Name: "Edição de Vídeo", LastPrice: 1200, Category: budget.CategoryProduction},
		{Name: "Locução", LastPrice: 450, Category: budget.CategoryProduction},
		{Name: "Drone Footage", LastPrice: 500, Category: budget.CategoryEquipment},
		{Name: "Kit de Iluminação", LastPrice: 350, Category: budget.CategoryEquipment},
		{Name: "Kit de Áudio", LastPrice: 250, Category: budget.CategoryEquipment},
		{Name: "Deslocamento", LastPrice: 150, Category: budget.CategoryLogistics},
		{Name: "Alimentação da Equipe", LastPrice: 60, Category: budget.CategoryLogistics},
		{Name: "Trilha Sonora Licenciada", LastPrice: 300, Category: budget.CategoryOther},
	}
}

// Run writes the starter entries that are missing. Existing entries, learned
// or seeded, are left untouched, so running it again is a no-op.
func Run(ctx context.Context, store catalog.Store) (Stats, error) {
	stats := Stats{}

	for _, e := range StarterEntries() {
		_, err := store.FindEntry(ctx, e.Name)
		if err == nil {
			stats.Existing++
			continue
		}
		if !errors.Is(err, catalog.ErrNotFound) {
			return stats, fmt.Errorf("check catalog entry %q: %w", e.Name, err)
		}

		if err := store.UpsertEntry(ctx, e); err != nil {
			return stats, fmt.Errorf("insert catalog entry %q: %w", e.Name, err)
		}
		stats.Inserts++
	}

	return stats, nil
}
