package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/multierr"

	"github.com/Simplici0/budgets/internal/budget"
)

// Report counts what one learning pass did.
type Report struct {
	Learned int
	Skipped int
	Failed  int
}

// Learner feeds saved quote items into the catalog.
type Learner struct {
	store   Store
	log     *slog.Logger
	metrics *Metrics
}

// LearnerOption configures a Learner.
type LearnerOption func(*Learner)

// WithLogger sets the logger used for per-item failures.
func WithLogger(log *slog.Logger) LearnerOption {
	return func(l *Learner) { l.log = log }
}

// WithMetrics records learning outcomes in m.
func WithMetrics(m *Metrics) LearnerOption {
	return func(l *Learner) { l.metrics = m }
}

// NewLearner returns a Learner writing to store.
func NewLearner(store Store, opts ...LearnerOption) *Learner {
	l := &Learner{store: store, log: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Learn records every item, hidden ones included, in the catalog. A failing
// item does not stop the others; all failures are returned together. The
// entry name is the item description exactly as stored. Items with a blank
// description are skipped.
func (l *Learner) Learn(ctx context.Context, items []budget.LineItem) (Report, error) {
	var (
		report Report
		errs   error
	)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("learn catalog: %w", err))
			break
		}

		name := item.Description
		if strings.TrimSpace(name) == "" {
			report.Skipped++
			l.metrics.observe(outcomeSkipped)
			continue
		}

		if err := l.store.RecordUsage(ctx, name, item.UnitCost, item.Category); err != nil {
			report.Failed++
			l.metrics.observe(outcomeFailed)
			l.log.Warn("catalog learning failed", "item", name, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("record catalog usage for %q: %w", name, err))
			continue
		}

		report.Learned++
		l.metrics.observe(outcomeLearned)
	}

	return report, errs
}
