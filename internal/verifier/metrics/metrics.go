package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verifier directory and assignment engine.
type Metrics struct {
	Registered         prometheus.Counter
	StatusTransitions  *prometheus.CounterVec
	AssignmentOutcomes *prometheus.CounterVec
	AssignDuration     prometheus.Histogram
	ReputationDelta    prometheus.Histogram
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg; tests pass a fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Registered: f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_verifiers_registered_total",
			Help: "Total number of verifiers registered",
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_verifier_status_transitions_total",
			Help: "Verifier status transitions by target status",
		}, []string{"status"}),
		AssignmentOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_verifier_assignments_total",
			Help: "Assignment attempts by outcome (assigned, insufficient)",
		}, []string{"outcome"}),
		AssignDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwaledger_verifier_assign_duration_seconds",
			Help:    "Duration of verifier assignment",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		ReputationDelta: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwaledger_verifier_reputation_delta",
			Help:    "Reputation adjustments applied after result submission",
			Buckets: []float64{0, 0.5, 1, 1.5, 2, 3},
		}),
	}
}

func (m *Metrics) IncRegistered() {
	if m != nil {
		m.Registered.Inc()
	}
}

func (m *Metrics) IncStatusTransition(status string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncAssignment(outcome string) {
	if m != nil {
		m.AssignmentOutcomes.WithLabelValues(outcome).Inc()
	}
}

// ObserveAssign records assignment latency. Call with time.Now() taken at the start.
func (m *Metrics) ObserveAssign(start time.Time) {
	if m != nil {
		m.AssignDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveReputationDelta(delta float64) {
	if m != nil {
		m.ReputationDelta.Observe(delta)
	}
}
