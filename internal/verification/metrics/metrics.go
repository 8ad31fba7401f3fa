package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the verification request lifecycle.
type Metrics struct {
	RequestsCreated  prometheus.Counter
	RequestsRejected *prometheus.CounterVec
	Results          *prometheus.CounterVec
	Completed        *prometheus.CounterVec
	Unauthorized     prometheus.Counter
	NotifyFailures   prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_verification_requests_created_total",
			Help: "Verification requests persisted after a successful assignment",
		}),
		RequestsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_verification_requests_rejected_total",
			Help: "Verification requests refused before persistence, by error code",
		}, []string{"code"}),
		Results: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_verification_results_total",
			Help: "Submitted verification results by verdict",
		}, []string{"verified"}),
		Completed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_verification_requests_completed_total",
			Help: "Completed verification requests by outcome",
		}, []string{"outcome"}),
		Unauthorized: f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_verification_unauthorized_submissions_total",
			Help: "Results refused because the verifier was not assigned",
		}),
		NotifyFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_verification_notify_failures_total",
			Help: "Verifier notifications that could not be dispatched",
		}),
	}
}

func (m *Metrics) IncCreated() {
	if m != nil {
		m.RequestsCreated.Inc()
	}
}

func (m *Metrics) IncRejected(code string) {
	if m != nil {
		m.RequestsRejected.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncResult(verified bool) {
	if m == nil {
		return
	}
	label := "false"
	if verified {
		label = "true"
	}
	m.Results.WithLabelValues(label).Inc()
}

func (m *Metrics) IncCompleted(outcome string) {
	if m != nil {
		m.Completed.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncUnauthorized() {
	if m != nil {
		m.Unauthorized.Inc()
	}
}

func (m *Metrics) IncNotifyFailure() {
	if m != nil {
		m.NotifyFailures.Inc()
	}
}
