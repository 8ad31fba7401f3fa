package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "rwaledger/pkg/platform/audit"
	txcontext "rwaledger/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Append writes to the outbox table; the relay publishes to Kafka and the
// consumer materializes events into audit_events for querying.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Payload is the JSON document carried in the outbox and on the audit topic.
type Payload struct {
	ID         string            `json:"id"`
	Category   string            `json:"category"`
	Timestamp  time.Time         `json:"timestamp"`
	ActorID    string            `json:"actor_id,omitempty"`
	Subject    string            `json:"subject"`
	Action     string            `json:"action"`
	Decision   string            `json:"decision,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	ClientIP   string            `json:"client_ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ToEvent converts a decoded payload back into an audit event.
func (p Payload) ToEvent() audit.Event {
	return audit.Event{
		Category:   audit.EventCategory(p.Category),
		Timestamp:  p.Timestamp,
		ActorID:    p.ActorID,
		Subject:    p.Subject,
		Action:     p.Action,
		Decision:   p.Decision,
		Reason:     p.Reason,
		RequestID:  p.RequestID,
		ClientIP:   p.ClientIP,
		UserAgent:  p.UserAgent,
		Attributes: p.Attributes,
	}
}

// Append writes an audit event to the outbox. Inside a txcontext transaction
// the outbox row commits or rolls back with the business write.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	payload := Payload{
		ID:         eventID.String(),
		Category:   string(audit.AuditEvent(event.Action).Category()),
		Timestamp:  event.Timestamp,
		ActorID:    event.ActorID,
		Subject:    event.Subject,
		Action:     event.Action,
		Decision:   event.Decision,
		Reason:     event.Reason,
		RequestID:  event.RequestID,
		ClientIP:   event.ClientIP,
		UserAgent:  event.UserAgent,
		Attributes: event.Attributes,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		eventID, "audit", event.Subject, event.Action, body, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID materializes an event into audit_events. Idempotent on id so
// redelivered Kafka records are ignored.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	attrs, err := json.Marshal(event.Attributes)
	if err != nil {
		return fmt.Errorf("marshal audit attributes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, category, timestamp, actor_id, subject, action,
			decision, reason, request_id, client_ip, user_agent, attributes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		eventID, string(event.Category), event.Timestamp, event.ActorID, event.Subject, event.Action,
		event.Decision, event.Reason, event.RequestID, event.ClientIP, event.UserAgent, attrs,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const eventColumns = `category, timestamp, actor_id, subject, action,
	decision, reason, request_id, client_ip, user_agent, attributes`

func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM audit_events WHERE subject = $1 ORDER BY timestamp`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM audit_events ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			category string
			attrs    []byte
			event    audit.Event
		)
		err := rows.Scan(&category, &event.Timestamp, &event.ActorID, &event.Subject, &event.Action,
			&event.Decision, &event.Reason, &event.RequestID, &event.ClientIP, &event.UserAgent, &attrs)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &event.Attributes); err != nil {
				return nil, fmt.Errorf("decode audit attributes: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
