// Package observe provides Prometheus metrics for the diagnostic
// orchestrator: session churn, loop turns, action latency, and outcome
// distribution. All metric operations are thread-safe via Prometheus's
// internal locking.
package observe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cloudtriage"

// Metrics holds the orchestrator's Prometheus instruments. A nil *Metrics
// is valid and records nothing, so wiring metrics stays optional in tests.
type Metrics struct {
	// SessionsCreated counts new diagnostic sessions.
	SessionsCreated prometheus.Counter

	// SessionsEvicted counts sessions removed by sweep or capacity policy.
	SessionsEvicted prometheus.Counter

	// ActiveSessions tracks live sessions in the store.
	ActiveSessions prometheus.Gauge

	// TurnsTotal counts orchestrator turns.
	TurnsTotal prometheus.Counter

	// ActionDurationSeconds measures dispatched action latency.
	// Labels: action, outcome (ok or the error kind).
	ActionDurationSeconds *prometheus.HistogramVec

	// OutcomesTotal counts terminal and suspended call outcomes.
	// Labels: status (done, request, continue, fail).
	OutcomesTotal *prometheus.CounterVec
}

// NewMetrics registers the orchestrator metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total diagnostic sessions created",
		}),
		SessionsEvicted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_evicted_total",
			Help:      "Total sessions evicted by sweep or capacity policy",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live sessions currently held in the store",
		}),
		TurnsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total analysis loop turns executed",
		}),
		ActionDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Dispatched diagnostic action latency by outcome",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"action", "outcome"}),
		OutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Analysis call outcomes by status",
		}, []string{"status"}),
	}
}

// RecordTurn increments the turn counter.
func (m *Metrics) RecordTurn() {
	if m == nil {
		return
	}
	m.TurnsTotal.Inc()
}

// RecordAction observes one dispatched action.
func (m *Metrics) RecordAction(action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ActionDurationSeconds.WithLabelValues(action, outcome).Observe(elapsed.Seconds())
}

// RecordOutcome counts one call outcome by status.
func (m *Metrics) RecordOutcome(status string) {
	if m == nil {
		return
	}
	m.OutcomesTotal.WithLabelValues(status).Inc()
}

// RecordSessionCreated tracks a session creation.
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.ActiveSessions.Inc()
}

// RecordSessionsEvicted tracks n sessions leaving the store.
func (m *Metrics) RecordSessionsEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsEvicted.Add(float64(n))
	m.ActiveSessions.Sub(float64(n))
}
