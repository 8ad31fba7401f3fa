package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the VVB approval workflow.
type Metrics struct {
	ChangesCreated    *prometheus.CounterVec
	Decisions         *prometheus.CounterVec
	Terminal          *prometheus.CounterVec
	UnauthorizedVotes prometheus.Counter
	PendingChanges    prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChangesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_approval_changes_created_total",
			Help: "Changes created, by tier",
		}, []string{"tier"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_approval_decisions_total",
			Help: "Recorded approver decisions, by tier and verdict",
		}, []string{"tier", "verdict"}),
		Terminal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_approval_terminal_total",
			Help: "Changes reaching a terminal state, by status",
		}, []string{"status"}),
		UnauthorizedVotes: f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_approval_unauthorized_votes_total",
			Help: "Decisions refused because the approver lacks authority",
		}),
		PendingChanges: f.NewGauge(prometheus.GaugeOpts{
			Name: "rwaledger_approval_pending_changes",
			Help: "Changes awaiting VVB decisions at the last sweep",
		}),
	}
}

func (m *Metrics) IncCreated(tier string) {
	if m != nil {
		m.ChangesCreated.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) IncDecision(tier, verdict string) {
	if m != nil {
		m.Decisions.WithLabelValues(tier, verdict).Inc()
	}
}

func (m *Metrics) IncTerminal(status string) {
	if m != nil {
		m.Terminal.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncUnauthorized() {
	if m != nil {
		m.UnauthorizedVotes.Inc()
	}
}

func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.PendingChanges.Set(float64(n))
	}
}
