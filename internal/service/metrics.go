package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeSaved       = "saved"
	outcomeLearnFailed = "learn_failed"
	outcomeFailed      = "failed"
	outcomeInvalid     = "invalid"
)

// Metrics counts full budget saves by outcome.
type Metrics struct {
	saves *prometheus.CounterVec
}

// NewMetrics registers the save counter with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		saves: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "budgets",
			Name:      "saves_total",
			Help:      "Full budget saves, by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(outcome).Inc()
}
