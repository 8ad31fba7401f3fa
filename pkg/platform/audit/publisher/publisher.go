// Package publisher routes audit events to a store by category.
//
// Compliance events are written synchronously and fail closed: if the write
// fails, the caller gets an error and MUST fail its operation. Security and
// operations events go through an optional async buffer drained by a worker;
// operations events may additionally be sampled down.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	audit "rwaledger/pkg/platform/audit"
	"rwaledger/pkg/platform/audit/worker"
)

// ErrBufferFull is returned when the async buffer cannot accept another event.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher emits audit events. It implements audit.Emitter.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	sampler *Sampler

	bufferSize int
	inbox      chan audit.Event
	done       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
	closed     bool
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithAsyncBuffer enables buffered delivery for non-compliance events.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.bufferSize = size
	}
}

// WithSampler drops a share of operations events before they reach the store.
func WithSampler(s *Sampler) Option {
	return func(p *Publisher) {
		p.sampler = s
	}
}

// NewPublisher creates a publisher. With WithAsyncBuffer a background worker
// is started; call Close to drain it.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.inbox, worker.WithErrorHandler(p.onAsyncFailure))
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit records an event. The category is always derived from the action.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	switch {
	case event.Category == audit.CategoryCompliance || p.inbox == nil:
		return p.emitSync(ctx, event)
	case event.Category == audit.CategoryOperations && p.sampler != nil && !p.sampler.ShouldSample(event.Action):
		p.metrics.IncDropped("sampled")
		return nil
	default:
		return p.enqueue(ctx, event)
	}
}

func (p *Publisher) emitSync(ctx context.Context, event audit.Event) error {
	start := time.Now()
	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.IncPersistFailure(event.Category)
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: audit persistence failed",
				"action", event.Action,
				"category", event.Category,
				"subject", event.Subject,
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}
	p.metrics.ObservePersist(event.Category, start)
	return nil
}

func (p *Publisher) enqueue(ctx context.Context, event audit.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return p.emitSync(ctx, event)
	}
	select {
	case p.inbox <- event:
		p.metrics.IncEmitted(event.Category)
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.metrics.IncDropped("buffer_full")
	return ErrBufferFull
}

func (p *Publisher) onAsyncFailure(event audit.Event, err error) {
	p.metrics.IncPersistFailure(event.Category)
	if p.logger != nil {
		p.logger.Error("async audit persistence failed",
			"action", event.Action,
			"subject", event.Subject,
			"error", err,
		)
	}
}

// List returns the events recorded for a subject.
func (p *Publisher) List(ctx context.Context, subject string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

// Close drains the async buffer. Later emits fall back to synchronous writes.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		if p.inbox == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
		<-p.done
	})
	return nil
}
