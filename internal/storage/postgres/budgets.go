package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Simplici0/budgets/internal/budget"
	"github.com/Simplici0/budgets/internal/storage"
)

const budgetColumns = `
	id, lead_id, opportunity_id, title, created_on, validity_days, valid_until,
	profit_percent, bv_percent, tax_percent,
	total_cost, sale_value, adjusted_value, price_locked,
	closed, archived, client_mode, process_steps,
	payment_terms, notices, delivery_forecast, presentation_text, strategic_goal, delivery_specs`

// ListBudgets returns the budgets matching filter, with their items.
func (s *Store) ListBudgets(ctx context.Context, filter storage.ListFilter) ([]*budget.Budget, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY created_on DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	budgets := make([]*budget.Budget, 0)
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}

	budgets = filter.Apply(budgets)
	if err := s.attachItems(ctx, budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

// GetBudget returns a budget and its items.
func (s *Store) GetBudget(ctx context.Context, id string) (*budget.Budget, error) {
	b, err := scanBudget(s.pool.QueryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query budget: %w", err)
	}

	if err := s.attachItems(ctx, []*budget.Budget{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// SaveBudget upserts the header and reconciles the stored items with
// b.Items in one transaction. Item rows whose values did not change are not
// rewritten.
func (s *Store) SaveBudget(ctx context.Context, b *budget.Budget) error {
	steps := b.ProcessSteps
	if steps == nil {
		steps = []string{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO budgets (`+budgetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (id) DO UPDATE SET
			lead_id = excluded.lead_id,
			opportunity_id = excluded.opportunity_id,
			title = excluded.title,
			created_on = excluded.created_on,
			validity_days = excluded.validity_days,
			valid_until = excluded.valid_until,
			profit_percent = excluded.profit_percent,
			bv_percent = excluded.bv_percent,
			tax_percent = excluded.tax_percent,
			total_cost = excluded.total_cost,
			sale_value = excluded.sale_value,
			adjusted_value = excluded.adjusted_value,
			price_locked = excluded.price_locked,
			closed = excluded.closed,
			archived = excluded.archived,
			client_mode = excluded.client_mode,
			process_steps = excluded.process_steps,
			payment_terms = excluded.payment_terms,
			notices = excluded.notices,
			delivery_forecast = excluded.delivery_forecast,
			presentation_text = excluded.presentation_text,
			strategic_goal = excluded.strategic_goal,
			delivery_specs = excluded.delivery_specs,
			updated_at = now()
	`,
		b.ID, b.LeadID, b.OpportunityID, b.Title, b.CreatedAt, b.ValidityDays, nullableDate(b.ValidUntil),
		b.ProfitPercent, b.BVPercent, b.TaxPercent,
		b.TotalCost, b.SaleValue, b.AdjustedValue, b.PriceLocked,
		b.Closed, b.Archived, b.ClientMode, steps,
		b.PaymentTerms, b.Notices, b.DeliveryForecast, b.PresentationText, b.StrategicGoal, b.DeliverySpecs,
	)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}

	batch := &pgx.Batch{}
	ids := make([]string, 0, len(b.Items))
	for i, item := range b.Items {
		ids = append(ids, item.ID)
		batch.Queue(`
			INSERT INTO budget_items (budget_id, id, position, category, description, quantity, unit_cost, hidden)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (budget_id, id) DO UPDATE SET
				position = excluded.position,
				category = excluded.category,
				description = excluded.description,
				quantity = excluded.quantity,
				unit_cost = excluded.unit_cost,
				hidden = excluded.hidden,
				updated_at = now()
			WHERE budget_items.position IS DISTINCT FROM excluded.position
				OR budget_items.category IS DISTINCT FROM excluded.category
				OR budget_items.description IS DISTINCT FROM excluded.description
				OR budget_items.quantity IS DISTINCT FROM excluded.quantity
				OR budget_items.unit_cost IS DISTINCT FROM excluded.unit_cost
				OR budget_items.hidden IS DISTINCT FROM excluded.hidden
		`, b.ID, item.ID, i, string(item.Category), item.Description, item.Quantity, item.UnitCost, item.Hidden)
	}
	batch.Queue(`DELETE FROM budget_items WHERE budget_id = $1 AND NOT (id = ANY($2))`, b.ID, ids)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("reconcile budget items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}
	return nil
}

// DeleteBudget removes a budget; its items go with it through the foreign key.
func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) attachItems(ctx context.Context, budgets []*budget.Budget) error {
	if len(budgets) == 0 {
		return nil
	}

	byID := make(map[string]*budget.Budget, len(budgets))
	ids := make([]string, 0, len(budgets))
	for _, b := range budgets {
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT budget_id, id, category, description, quantity, unit_cost, hidden
		FROM budget_items
		WHERE budget_id = ANY($1)
		ORDER BY budget_id, position
	`, ids)
	if err != nil {
		return fmt.Errorf("query budget items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			budgetID string
			item     budget.LineItem
			category string
		)
		if err := rows.Scan(&budgetID, &item.ID, &category, &item.Description, &item.Quantity, &item.UnitCost, &item.Hidden); err != nil {
			return fmt.Errorf("scan budget item: %w", err)
		}
		item.Category = budget.Category(category)
		if b, ok := byID[budgetID]; ok {
			b.Items = append(b.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate budget items: %w", err)
	}
	return nil
}

func scanBudget(row pgx.Row) (*budget.Budget, error) {
	var (
		b          budget.Budget
		validUntil *time.Time
		locked     *bool
	)
	err := row.Scan(
		&b.ID, &b.LeadID, &b.OpportunityID, &b.Title, &b.CreatedAt, &b.ValidityDays, &validUntil,
		&b.ProfitPercent, &b.BVPercent, &b.TaxPercent,
		&b.TotalCost, &b.SaleValue, &b.AdjustedValue, &locked,
		&b.Closed, &b.Archived, &b.ClientMode, &b.ProcessSteps,
		&b.PaymentTerms, &b.Notices, &b.DeliveryForecast, &b.PresentationText, &b.StrategicGoal, &b.DeliverySpecs,
	)
	if err != nil {
		return nil, err
	}

	b.CreatedAt = b.CreatedAt.UTC()
	if validUntil != nil {
		b.ValidUntil = validUntil.UTC()
	}
	b.PriceLocked = storage.ResolveLock(locked, b.AdjustedValue, b.SaleValue)
	b.Items = []budget.LineItem{}
	return &b, nil
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
