package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"rwaledger/internal/platform/kafka/consumer"
	audit "rwaledger/pkg/platform/audit"
	auditpg "rwaledger/pkg/platform/audit/store/postgres"
)

// EventSink is the write side of the audit query store.
type EventSink interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Materializer writes audit records from the topic into the query store.
// Malformed records are logged and committed; storage errors are returned
// so the batch is redelivered.
type Materializer struct {
	sink   EventSink
	logger *slog.Logger
}

func NewMaterializer(sink EventSink, logger *slog.Logger) *Materializer {
	return &Materializer{sink: sink, logger: logger}
}

func (m *Materializer) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, err := uuid.Parse(string(msg.Key))
	if err != nil {
		m.logger.ErrorContext(ctx, "audit record has invalid key", "key", string(msg.Key), "error", err)
		return nil
	}

	var payload auditpg.Payload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		m.logger.ErrorContext(ctx, "audit record has invalid payload", "event_id", eventID, "error", err)
		return nil
	}
	if payload.Action == "" {
		m.logger.ErrorContext(ctx, "audit record missing action", "event_id", eventID)
		return nil
	}

	event := payload.ToEvent()
	if event.Timestamp.IsZero() {
		event.Timestamp = msg.Timestamp
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if err := m.sink.AppendWithID(ctx, eventID, event); err != nil {
		return fmt.Errorf("materialize audit event %s: %w", eventID, err)
	}
	m.logger.DebugContext(ctx, "materialized audit event", "event_id", eventID, "action", event.Action)
	return nil
}
