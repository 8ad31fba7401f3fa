package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers webhook fan-out and delivery.
type Metrics struct {
	Enqueued        *prometheus.CounterVec
	Dropped         prometheus.Counter
	Deliveries      *prometheus.CounterVec
	Attempts        prometheus.Counter
	CircuitOpen     prometheus.Counter
	DeliveryLatency prometheus.Histogram
	QueueDepth      prometheus.Gauge
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Enqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_webhook_enqueued_total",
			Help: "Deliveries queued, by event type",
		}, []string{"event_type"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_webhook_dropped_total",
			Help: "Deliveries dropped because the queue was full",
		}),
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwaledger_webhook_deliveries_total",
			Help: "Finished deliveries, by outcome",
		}, []string{"outcome"}),
		Attempts: f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_webhook_attempts_total",
			Help: "HTTP attempts made, including retries",
		}),
		CircuitOpen: f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_webhook_circuit_opened_total",
			Help: "Subscription circuits opened after repeated failures",
		}),
		DeliveryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rwaledger_webhook_delivery_seconds",
			Help:    "Time from first attempt to final outcome",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "rwaledger_webhook_queue_depth",
			Help: "Deliveries waiting for a worker",
		}),
	}
}

func (m *Metrics) IncEnqueued(eventType string) {
	if m != nil {
		m.Enqueued.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) IncAttempt() {
	if m != nil {
		m.Attempts.Inc()
	}
}

func (m *Metrics) IncCircuitOpen() {
	if m != nil {
		m.CircuitOpen.Inc()
	}
}

func (m *Metrics) ObserveDelivery(outcome string, seconds float64) {
	if m != nil {
		m.Deliveries.WithLabelValues(outcome).Inc()
		m.DeliveryLatency.Observe(seconds)
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}
