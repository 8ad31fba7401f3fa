// Package outbox publishes committed outbox rows to Kafka.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Producer is the broker side of the relay.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

type entry struct {
	id            uuid.UUID
	aggregateType string
	aggregateID   string
	eventType     string
	payload       []byte
}

// Relay polls unpublished outbox rows, produces them and marks them published.
// Rows are claimed with FOR UPDATE SKIP LOCKED so several relays can run.
type Relay struct {
	db        *sql.DB
	producer  Producer
	topic     string
	batchSize int
	interval  time.Duration
	logger    *slog.Logger

	published prometheus.Counter
	failures  prometheus.Counter
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batchSize = n }
}

// WithInterval sets the idle poll interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Relay) {
		f := promauto.With(reg)
		r.published = f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_outbox_published_total",
			Help: "Outbox rows published to Kafka",
		})
		r.failures = f.NewCounter(prometheus.CounterOpts{
			Name: "rwaledger_outbox_publish_failures_total",
			Help: "Outbox batches that failed to publish",
		})
	}
}

func NewRelay(db *sql.DB, producer Producer, topic string, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		db:        db,
		producer:  producer,
		topic:     topic,
		batchSize: 100,
		interval:  time.Second,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run publishes batches until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		n, err := r.PublishBatch(ctx)
		if err != nil {
			if r.failures != nil {
				r.failures.Inc()
			}
			r.logger.ErrorContext(ctx, "outbox publish failed", "error", err)
		}
		if n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PublishBatch publishes up to batchSize rows and returns how many were marked published.
func (r *Relay) PublishBatch(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select outbox: %w", err)
	}
	var batch []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.aggregateType, &e.aggregateID, &e.eventType, &e.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox: %w", err)
		}
		batch = append(batch, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox: %w", err)
	}
	if len(batch) == 0 {
		return 0, nil
	}

	// Stop at the first failure so ordering per aggregate is preserved.
	published := make([]string, 0, len(batch))
	var produceErr error
	for _, e := range batch {
		headers := map[string]string{
			"aggregate_type": e.aggregateType,
			"aggregate_id":   e.aggregateID,
			"event_type":     e.eventType,
		}
		if produceErr = r.producer.Produce(ctx, r.topic, []byte(e.id.String()), e.payload, headers); produceErr != nil {
			break
		}
		published = append(published, e.id.String())
	}

	if len(published) > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE outbox SET published_at = now() WHERE id = ANY($1::uuid[])`,
			pq.Array(published)); err != nil {
			return 0, fmt.Errorf("mark outbox published: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, fmt.Errorf("commit outbox tx: %w", err)
		}
		if r.published != nil {
			r.published.Add(float64(len(published)))
		}
	}
	if produceErr != nil {
		return len(published), produceErr
	}
	return len(published), nil
}
