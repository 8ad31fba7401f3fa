package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers evolution chain writes and integrity checks.
type Metrics struct {
	ChainsInitialized   prometheus.Counter
	Evolutions          *prometheus.CounterVec
	Denied              *prometheus.CounterVec
	IntegrityViolations prometheus.Counter
	ChainLength         prometheus.Histogram
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChainsInitialized: f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_evolution_chains_initialized_total",
			Help: "Evolution chains anchored",
		}),
		Evolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_evolution_snapshots_committed_total",
			Help: "Snapshots committed by evolve, by token type",
		}, []string{"token_type"}),
		Denied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_evolution_denied_total",
			Help: "Evolutions refused, by error code",
		}, []string{"code"}),
		IntegrityViolations: f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_evolution_integrity_violations_total",
			Help: "Integrity anchor or chain link checks that failed",
		}),
		ChainLength: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwaledger_evolution_chain_length",
			Help:    "Snapshots per chain after each evolution",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) IncInitialized() {
	if m != nil {
		m.ChainsInitialized.Inc()
	}
}

func (m *Metrics) IncEvolved(tokenType string, length int) {
	if m != nil {
		m.Evolutions.WithLabelValues(tokenType).Inc()
		m.ChainLength.Observe(float64(length))
	}
}

func (m *Metrics) IncDenied(code string) {
	if m != nil {
		m.Denied.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncIntegrityViolation() {
	if m != nil {
		m.IntegrityViolations.Inc()
	}
}
