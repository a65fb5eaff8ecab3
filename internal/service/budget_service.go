// Package service coordinates budget persistence with catalog learning.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Simplici0/budgets/internal/budget"
	"github.com/Simplici0/budgets/internal/catalog"
	"github.com/Simplici0/budgets/internal/storage"
)

// ErrInvalid marks a rejected change: the budget failed validation or the
// requested mutation did not apply. Nothing is stored.
var ErrInvalid = errors.New("invalid budget change")

// LearnError reports a budget that was stored but whose items could not all
// be learned into the catalog.
type LearnError struct {
	BudgetID string
	Report   catalog.Report
	Err      error
}

func (e *LearnError) Error() string {
	return fmt.Sprintf("budget %s saved, catalog learning failed for %d item(s): %v", e.BudgetID, e.Report.Failed, e.Err)
}

func (e *LearnError) Unwrap() error { return e.Err }

// BudgetService implements the quote workflows on top of the stores.
type BudgetService struct {
	budgets storage.BudgetStore
	catalog catalog.Store
	learner *catalog.Learner
	metrics *Metrics
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a BudgetService.
type Option func(*BudgetService)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *BudgetService) { s.log = log }
}

// WithMetrics records save outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(s *BudgetService) { s.metrics = m }
}

// WithClock overrides the time source used for new and duplicated budgets.
func WithClock(now func() time.Time) Option {
	return func(s *BudgetService) { s.now = now }
}

// NewBudgetService creates a BudgetService. learner feeds the catalog on
// every full save.
func NewBudgetService(budgets storage.BudgetStore, cat catalog.Store, learner *catalog.Learner, opts ...Option) *BudgetService {
	s := &BudgetService{
		budgets: budgets,
		catalog: cat,
		learner: learner,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new budget for leadID with the default parameters.
func (s *BudgetService) Create(ctx context.Context, leadID string) (*budget.Budget, error) {
	b := budget.New(leadID, s.now())
	if err := s.budgets.SaveBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("create budget: %w", err)
	}
	s.log.Info("budget created", "budget_id", b.ID, "lead_id", leadID)
	return b, nil
}

// Get loads a budget.
func (s *BudgetService) Get(ctx context.Context, id string) (*budget.Budget, error) {
	return s.budgets.GetBudget(ctx, id)
}

// List loads the budgets matching filter.
func (s *BudgetService) List(ctx context.Context, filter storage.ListFilter) ([]*budget.Budget, error) {
	return s.budgets.ListBudgets(ctx, filter)
}

// Save reprices and validates b, stores it, then learns its items into the
// catalog. Once the store commits the save is durable: learning failures
// come back as a *LearnError and never undo it.
func (s *BudgetService) Save(ctx context.Context, b *budget.Budget) error {
	b.Recalculate()
	if err := b.Validate(); err != nil {
		s.metrics.observe(outcomeInvalid)
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	if err := s.budgets.SaveBudget(ctx, b); err != nil {
		s.metrics.observe(outcomeFailed)
		return fmt.Errorf("save budget: %w", err)
	}

	report, err := s.learner.Learn(ctx, b.Items)
	if err != nil {
		s.metrics.observe(outcomeLearnFailed)
		s.log.Warn("budget saved without full catalog learning",
			"budget_id", b.ID,
			"learned", report.Learned,
			"failed", report.Failed,
			"error", err,
		)
		return &LearnError{BudgetID: b.ID, Report: report, Err: err}
	}

	s.metrics.observe(outcomeSaved)
	s.log.Debug("budget saved",
		"budget_id", b.ID,
		"items", len(b.Items),
		"learned", report.Learned,
		"skipped", report.Skipped,
	)
	return nil
}

// Update loads a budget, applies fn and stores the result as a draft, without
// catalog learning. When fn fails nothing is stored.
func (s *BudgetService) Update(ctx context.Context, id string, fn func(*budget.Budget) error) (*budget.Budget, error) {
	b, err := s.budgets.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.budgets.SaveBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("update budget: %w", err)
	}
	return b, nil
}

// SetArchived archives or restores a budget.
func (s *BudgetService) SetArchived(ctx context.Context, id string, archived bool) (*budget.Budget, error) {
	return s.Update(ctx, id, func(b *budget.Budget) error {
		if archived {
			b.Archive()
		} else {
			b.Restore()
		}
		return nil
	})
}

// Duplicate copies a budget and saves the copy, learning its items.
func (s *BudgetService) Duplicate(ctx context.Context, id string) (*budget.Budget, error) {
	src, err := s.budgets.GetBudget(ctx, id)
	if err != nil {
		return nil, err
	}

	dup := src.Duplicate(s.now())
	if err := s.Save(ctx, dup); err != nil {
		var learnErr *LearnError
		if errors.As(err, &learnErr) {
			return dup, err
		}
		return nil, err
	}
	s.log.Info("budget duplicated", "source_id", id, "budget_id", dup.ID)
	return dup, nil
}

// Delete permanently removes a budget.
func (s *BudgetService) Delete(ctx context.Context, id string) error {
	if err := s.budgets.DeleteBudget(ctx, id); err != nil {
		return err
	}
	s.log.Info("budget deleted", "budget_id", id)
	return nil
}

// Suggest returns the catalog entries matching the typed text.
func (s *BudgetService) Suggest(ctx context.Context, partial string, category budget.Category) ([]catalog.Entry, error) {
	return s.catalog.Query(ctx, partial, category)
}

// Catalog returns the whole catalog, most used first.
func (s *BudgetService) Catalog(ctx context.Context) ([]catalog.Entry, error) {
	return s.catalog.List(ctx)
}
