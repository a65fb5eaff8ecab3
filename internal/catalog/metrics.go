package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeLearned = "learned"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// Metrics exposes catalog learning counters.
type Metrics struct {
	items *prometheus.CounterVec
}

// NewMetrics registers the catalog counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		items: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgets",
			Subsystem: "catalog",
			Name:      "learned_items_total",
			Help:      "Line items processed by catalog learning, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(outcome).Inc()
}
