package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Simplici0/budgets/internal/budget"
	"github.com/Simplici0/budgets/internal/storage"
)

const budgetColumns = `
	id, lead_id, opportunity_id, title, created_on, validity_days, valid_until,
	profit_percent, bv_percent, tax_percent,
	total_cost, sale_value, adjusted_value, price_locked,
	closed, archived, client_mode, process_steps,
	payment_terms, notices, delivery_forecast, presentation_text, strategic_goal, delivery_specs`

const itemColumns = `budget_id, id, category, description, quantity, unit_cost, hidden`

// ListBudgets returns the budgets matching filter, with their items.
func (s *Store) ListBudgets(ctx context.Context, filter storage.ListFilter) ([]*budget.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets ORDER BY created_on DESC, id`)
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
	b, err := scanBudget(s.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
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
// b.Items. Unchanged item rows are left untouched.
func (s *Store) SaveBudget(ctx context.Context, b *budget.Budget) error {
	steps := b.ProcessSteps
	if steps == nil {
		steps = []string{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode process steps: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO budgets (`+budgetColumns+`)
		VALUES (`+placeholders(24)+`)
		ON CONFLICT(id) DO UPDATE SET
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
			updated_at = CURRENT_TIMESTAMP
	`,
		b.ID, b.LeadID, b.OpportunityID, b.Title, formatDate(b.CreatedAt), b.ValidityDays, formatDate(b.ValidUntil),
		b.ProfitPercent, b.BVPercent, b.TaxPercent,
		b.TotalCost, b.SaleValue, b.AdjustedValue, b.PriceLocked,
		b.Closed, b.Archived, b.ClientMode, string(stepsJSON),
		b.PaymentTerms, b.Notices, b.DeliveryForecast, b.PresentationText, b.StrategicGoal, b.DeliverySpecs,
	)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}

	for i, item := range b.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO budget_items (budget_id, id, position, category, description, quantity, unit_cost, hidden)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(budget_id, id) DO UPDATE SET
				position = excluded.position,
				category = excluded.category,
				description = excluded.description,
				quantity = excluded.quantity,
				unit_cost = excluded.unit_cost,
				hidden = excluded.hidden,
				updated_at = CURRENT_TIMESTAMP
			WHERE budget_items.position IS NOT excluded.position
				OR budget_items.category IS NOT excluded.category
				OR budget_items.description IS NOT excluded.description
				OR budget_items.quantity IS NOT excluded.quantity
				OR budget_items.unit_cost IS NOT excluded.unit_cost
				OR budget_items.hidden IS NOT excluded.hidden
		`, b.ID, item.ID, i, string(item.Category), item.Description, item.Quantity, item.UnitCost, item.Hidden)
		if err != nil {
			return fmt.Errorf("upsert budget item %s: %w", item.ID, err)
		}
	}

	query := `DELETE FROM budget_items WHERE budget_id = ?`
	args := []any{b.ID}
	if len(b.Items) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(b.Items)) + `)`
		for _, item := range b.Items {
			args = append(args, item.ID)
		}
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete removed budget items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}
	return nil
}

// DeleteBudget removes a budget and its items.
func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM budget_items WHERE budget_id = ?`, id); err != nil {
		return fmt.Errorf("delete budget items: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete transaction: %w", err)
	}
	return nil
}

func (s *Store) attachItems(ctx context.Context, budgets []*budget.Budget) error {
	if len(budgets) == 0 {
		return nil
	}

	byID := make(map[string]*budget.Budget, len(budgets))
	args := make([]any, 0, len(budgets))
	for _, b := range budgets {
		byID[b.ID] = b
		args = append(args, b.ID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM budget_items
		WHERE budget_id IN (`+placeholders(len(args))+`)
		ORDER BY budget_id, position
	`, args...)
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

func scanBudget(row scanner) (*budget.Budget, error) {
	var (
		b          budget.Budget
		createdOn  string
		validUntil string
		locked     sql.NullBool
		stepsJSON  string
	)
	err := row.Scan(
		&b.ID, &b.LeadID, &b.OpportunityID, &b.Title, &createdOn, &b.ValidityDays, &validUntil,
		&b.ProfitPercent, &b.BVPercent, &b.TaxPercent,
		&b.TotalCost, &b.SaleValue, &b.AdjustedValue, &locked,
		&b.Closed, &b.Archived, &b.ClientMode, &stepsJSON,
		&b.PaymentTerms, &b.Notices, &b.DeliveryForecast, &b.PresentationText, &b.StrategicGoal, &b.DeliverySpecs,
	)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseDate(createdOn); err != nil {
		return nil, fmt.Errorf("parse created_on of budget %s: %w", b.ID, err)
	}
	if b.ValidUntil, err = parseDate(validUntil); err != nil {
		return nil, fmt.Errorf("parse valid_until of budget %s: %w", b.ID, err)
	}
	if err := json.Unmarshal([]byte(stepsJSON), &b.ProcessSteps); err != nil {
		return nil, fmt.Errorf("decode process steps of budget %s: %w", b.ID, err)
	}

	var stored *bool
	if locked.Valid {
		stored = &locked.Bool
	}
	b.PriceLocked = storage.ResolveLock(stored, b.AdjustedValue, b.SaleValue)
	b.Items = []budget.LineItem{}
	return &b, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(storage.DateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(storage.DateLayout, s)
}
