package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rwaledger/internal/webhook/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
)

type InMemory struct {
	mu   sync.RWMutex
	subs map[id.SubscriptionID]*models.Subscription
}

func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[id.SubscriptionID]*models.Subscription)}
}

func (s *InMemory) Create(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.subs[sub.ID]; exists {
		return fmt.Errorf("subscription %s: %w", sub.ID, sentinel.ErrConflict)
	}
	s.subs[sub.ID] = sub.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, subID id.SubscriptionID) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[subID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return sub.Clone(), nil
}

func (s *InMemory) Delete(_ context.Context, subID id.SubscriptionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[subID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.subs, subID)
	return nil
}

// ListActive returns active subscriptions ordered by creation time.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.Active {
			out = append(out, sub.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
