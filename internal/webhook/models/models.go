package models

import (
	"net/url"
	"slices"
	"strings"
	"time"

	id "rwaledger/pkg/domain"
	dErrors "rwaledger/pkg/domain-errors"
	pkgstrings "rwaledger/pkg/platform/strings"
)

// AllEvents subscribes to every event type.
const AllEvents = "*"

// Subscription is a registered webhook endpoint.
type Subscription struct {
	ID        id.SubscriptionID `json:"id"`
	URL       string            `json:"url"`
	Secret    string            `json:"-"`
	Events    []string          `json:"events"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewSubscription validates the endpoint and normalizes the event filter.
// An empty filter means every event.
func NewSubscription(subID id.SubscriptionID, rawURL, secret string, events []string, now time.Time) (*Subscription, error) {
	if subID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subscription ID cannot be empty")
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "webhook URL must be an absolute http(s) URL")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "webhook secret is required")
	}
	filter := pkgstrings.Unique(events, strings.ToUpper)
	if len(filter) == 0 {
		filter = []string{AllEvents}
	}
	return &Subscription{
		ID:        subID,
		URL:       u.String(),
		Secret:    secret,
		Events:    filter,
		Active:    true,
		CreatedAt: now,
	}, nil
}

// Matches reports whether the subscription wants eventType.
func (s *Subscription) Matches(eventType string) bool {
	if !s.Active {
		return false
	}
	return slices.Contains(s.Events, AllEvents) || slices.Contains(s.Events, strings.ToUpper(eventType))
}

func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	out := *s
	out.Events = slices.Clone(s.Events)
	return &out
}

// Envelope is the JSON body POSTed to subscribers.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Delivery is one envelope bound for one subscription.
type Delivery struct {
	ID           string
	Subscription *Subscription
	EventType    string
	Body         []byte
}
