package publisher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "rwaledger/pkg/platform/audit"
)

// Metrics holds Prometheus metrics for audit delivery.
type Metrics struct {
	Emitted         *prometheus.CounterVec
	Dropped         *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	PersistDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Emitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_audit_events_emitted_total",
			Help: "Audit events accepted, by category",
		}, []string{"category"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_audit_events_dropped_total",
			Help: "Audit events dropped before persistence, by reason",
		}, []string{"reason"}),
		PersistFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_audit_persist_failures_total",
			Help: "Audit persistence failures, by category",
		}, []string{"category"}),
		PersistDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rwaledger_audit_persist_duration_seconds",
			Help:    "Synchronous audit write latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"category"}),
	}
}

func (m *Metrics) IncEmitted(cat audit.EventCategory) {
	if m != nil {
		m.Emitted.WithLabelValues(string(cat)).Inc()
	}
}

func (m *Metrics) IncDropped(reason string) {
	if m != nil {
		m.Dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncPersistFailure(cat audit.EventCategory) {
	if m != nil {
		m.PersistFailures.WithLabelValues(string(cat)).Inc()
	}
}

func (m *Metrics) ObservePersist(cat audit.EventCategory, start time.Time) {
	if m != nil {
		m.Emitted.WithLabelValues(string(cat)).Inc()
		m.PersistDuration.WithLabelValues(string(cat)).Observe(time.Since(start).Seconds())
	}
}
