// Package consumer materializes audit events from Kafka into the query store.
package consumer

import (
	"context"
	"log/slog"

	"rwaledger/internal/platform/kafka/consumer"
)

// TopicHandler handles messages from one topic.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// Router dispatches records by topic. It implements consumer.Handler.
type Router struct {
	handlers map[string]TopicHandler
	logger   *slog.Logger
	skipped  int
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{handlers: make(map[string]TopicHandler), logger: logger}
}

func (r *Router) Register(topic string, handler TopicHandler) *Router {
	r.handlers[topic] = handler
	return r
}

// Handle routes msg. Unknown topics are logged and committed so they are not redelivered.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	if h, ok := r.handlers[msg.Topic]; ok {
		return h.Handle(ctx, msg)
	}
	r.skipped++
	r.logger.WarnContext(ctx, "no handler for topic, skipping record",
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	return nil
}

// Skipped reports how many records had no registered handler.
func (r *Router) Skipped() int {
	return r.skipped
}
