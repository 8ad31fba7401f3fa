// Package dispatcher fans domain events out to webhook subscribers.
//
// Publish snapshots the active subscriptions, signs one envelope per event and
// queues a delivery per matching subscription. Run drains the queue through a
// bounded errgroup. Each delivery is retried with exponential backoff, and a
// per-subscription circuit breaker limits an open endpoint to a single trial
// attempt per delivery until it succeeds again.
package dispatcher

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"rwaledger/internal/webhook/metrics"
	"rwaledger/internal/webhook/models"
	id "rwaledger/pkg/domain"
	audit "rwaledger/pkg/platform/audit"
	"rwaledger/pkg/platform/circuit"
	"rwaledger/pkg/platform/tracing"
	"rwaledger/pkg/requestcontext"
)

const (
	HeaderSignature  = "X-Signature"
	HeaderEventType  = "X-Event-Type"
	HeaderDeliveryID = "X-Delivery-Id"

	signaturePrefix = "sha256="
)

const (
	DefaultWorkers     = 5
	DefaultQueueSize   = 10000
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = time.Second
	DefaultMaxBackoff  = 32 * time.Second
)

// ErrQueueFull is returned by Publish when at least one delivery was dropped.
var ErrQueueFull = errors.New("webhook queue is full")

// Subscriptions supplies the active subscriber set.
type Subscriptions interface {
	ListActive(ctx context.Context) ([]*models.Subscription, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Dispatcher struct {
	subs           Subscriptions
	client         *http.Client
	queue          chan models.Delivery
	workers        int
	maxRetries     int
	baseBackoff    time.Duration
	maxBackoff     time.Duration
	failureLimit   int
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         tracing.Tracer

	queueSize int
	timeout   time.Duration

	mu       sync.Mutex
	breakers map[id.SubscriptionID]*circuit.Breaker
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(d *Dispatcher) {
		d.auditPublisher = p
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithTimeout bounds a single HTTP attempt.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithMaxRetries sets retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) {
		if n >= 0 {
			d.maxRetries = n
		}
	}
}

func WithBackoff(base, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if base > 0 {
			d.baseBackoff = base
		}
		if maxBackoff >= base {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithFailureThreshold sets how many failed deliveries open a subscription's circuit.
func WithFailureThreshold(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.failureLimit = n
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = c
	}
}

func New(subs Subscriptions, opts ...Option) (*Dispatcher, error) {
	if subs == nil {
		return nil, errors.New("subscription source is required")
	}
	d := &Dispatcher{
		subs:         subs,
		workers:      DefaultWorkers,
		queueSize:    DefaultQueueSize,
		timeout:      DefaultTimeout,
		maxRetries:   DefaultMaxRetries,
		baseBackoff:  DefaultBaseBackoff,
		maxBackoff:   DefaultMaxBackoff,
		failureLimit: 5,
		tracer:       tracing.New("rwaledger/internal/webhook"),
		breakers:     make(map[id.SubscriptionID]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: d.timeout}
	}
	d.queue = make(chan models.Delivery, d.queueSize)
	return d, nil
}

// Publish queues eventType for every matching subscriber. It never blocks on
// delivery; a full queue drops the delivery and reports ErrQueueFull.
func (d *Dispatcher) Publish(ctx context.Context, eventType string, payload any) error {
	subs, err := d.subs.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list webhook subscriptions: %w", err)
	}
	var targets []*models.Subscription
	for _, sub := range subs {
		if sub.Matches(eventType) {
			targets = append(targets, sub)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	body, err := json.Marshal(models.Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: requestcontext.Now(ctx),
		Data:       payload,
	})
	if err != nil {
		return fmt.Errorf("encode webhook envelope: %w", err)
	}

	dropped := 0
	for _, sub := range targets {
		dl := models.Delivery{
			ID:           uuid.NewString(),
			Subscription: sub,
			EventType:    eventType,
			Body:         body,
		}
		select {
		case d.queue <- dl:
			d.metrics.IncEnqueued(eventType)
		default:
			dropped++
			d.metrics.IncDropped()
			if d.logger != nil {
				d.logger.WarnContext(ctx, "webhook queue full, delivery dropped",
					"subscription_id", sub.ID,
					"event_type", eventType)
			}
		}
	}
	d.metrics.SetQueueDepth(len(d.queue))
	if dropped > 0 {
		return fmt.Errorf("%d of %d deliveries: %w", dropped, len(targets), ErrQueueFull)
	}
	return nil
}

// Run delivers queued envelopes until ctx is cancelled, then waits for
// in-flight deliveries.
func (d *Dispatcher) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case dl := <-d.queue:
			d.metrics.SetQueueDepth(len(d.queue))
			g.Go(func() error {
				_ = d.Deliver(ctx, dl)
				return nil
			})
		}
	}
}

// Deliver POSTs dl to its subscriber, retrying transient failures.
func (d *Dispatcher) Deliver(ctx context.Context, dl models.Delivery) (err error) {
	sub := dl.Subscription
	ctx, span := d.tracer.Start(ctx, "webhook.Deliver",
		attribute.String("webhook.subscription_id", sub.ID.String()),
		attribute.String("webhook.event_type", dl.EventType))
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	breaker := d.breaker(sub.ID)
	attempts := d.maxRetries + 1
	if breaker.IsOpen() {
		attempts = 1
	}

	backoff := d.baseBackoff
	for attempt := range attempts {
		if attempt > 0 {
			if err = sleep(ctx, backoff); err != nil {
				break
			}
			backoff = min(backoff*2, d.maxBackoff)
		}
		err = d.attempt(ctx, dl)
		if err == nil {
			breaker.RecordSuccess()
			d.metrics.ObserveDelivery("delivered", time.Since(start).Seconds())
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			break
		}
	}

	if _, change := breaker.RecordFailure(); change.Opened {
		d.metrics.IncCircuitOpen()
		if d.logger != nil {
			d.logger.WarnContext(ctx, "webhook circuit opened", "subscription_id", sub.ID, "url", sub.URL)
		}
	}
	d.metrics.ObserveDelivery("failed", time.Since(start).Seconds())
	d.reportFailure(ctx, dl, err)
	return err
}

func (d *Dispatcher) attempt(ctx context.Context, dl models.Delivery) error {
	d.metrics.IncAttempt()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dl.Subscription.URL, bytes.NewReader(dl.Body))
	if err != nil {
		return &permanentError{err: fmt.Errorf("build webhook request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(dl.Subscription.Secret, dl.Body))
	req.Header.Set(HeaderEventType, dl.EventType)
	req.Header.Set(HeaderDeliveryID, dl.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	default:
		return &permanentError{err: fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)}
	}
}

// BreakerState reports the circuit state for a subscription.
func (d *Dispatcher) BreakerState(subID id.SubscriptionID) circuit.State {
	return d.breaker(subID).State()
}

func (d *Dispatcher) breaker(subID id.SubscriptionID) *circuit.Breaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.breakers[subID]
	if !ok {
		b = circuit.New("webhook:"+subID.String(), circuit.WithFailureThreshold(d.failureLimit))
		d.breakers[subID] = b
	}
	return b
}

func (d *Dispatcher) reportFailure(ctx context.Context, dl models.Delivery, cause error) {
	if d.logger != nil {
		d.logger.ErrorContext(ctx, "webhook delivery failed",
			"subscription_id", dl.Subscription.ID,
			"delivery_id", dl.ID,
			"event_type", dl.EventType,
			"error", cause)
	}
	if d.auditPublisher == nil {
		return
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if err := d.auditPublisher.Emit(ctx, audit.Event{
		Subject: dl.Subscription.ID.String(),
		Action:  string(audit.EventWebhookDeliveryFailed),
		Reason:  reason,
		Attributes: map[string]string{
			"delivery_id": dl.ID,
			"event_type":  dl.EventType,
			"url":         dl.Subscription.URL,
		},
	}); err != nil && d.logger != nil {
		d.logger.ErrorContext(ctx, "audit emit failed", "event", string(audit.EventWebhookDeliveryFailed), "error", err)
	}
}

// Sign returns the X-Signature value for body: sha256=<hex HMAC-SHA256>.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an X-Signature header against body in constant time.
func Verify(secret string, body []byte, header string) bool {
	sigHex, ok := strings.CutPrefix(strings.TrimSpace(header), signaturePrefix)
	if !ok {
		return false
	}
	provided, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
