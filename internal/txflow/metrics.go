package txflow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	transactions *prometheus.CounterVec
	confirmation *prometheus.HistogramVec
}

// NewMetrics creates the mediator's collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drt_client",
			Name:      "transactions_total",
			Help:      "Writes handled by the transaction mediator, by action and status.",
		}, []string{"action", "status"}),
		confirmation: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drt_client",
			Name:      "confirmation_seconds",
			Help:      "Time from submission to a mined receipt.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"action"}),
	}
	if reg != nil {
		reg.MustRegister(m.transactions, m.confirmation)
	}
	return m
}

func (m *Metrics) count(action Action, status Status) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(string(action), string(status)).Inc()
}

func (m *Metrics) confirmed(action Action, since time.Time) {
	if m == nil {
		return
	}
	m.confirmation.WithLabelValues(string(action)).Observe(time.Since(since).Seconds())
}
