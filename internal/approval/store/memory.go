package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rwaledger/internal/approval/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
)

// InMemory is a process-local change store. Update is version-checked so a
// writer holding a stale copy fails with sentinel.ErrConflict.
type InMemory struct {
	mu      sync.RWMutex
	changes map[id.ChangeID]*models.Change
}

func NewInMemory() *InMemory {
	return &InMemory{changes: make(map[id.ChangeID]*models.Change)}
}

func (s *InMemory) Create(_ context.Context, c *models.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.changes[c.ID]; exists {
		return fmt.Errorf("change %s: %w", c.ID, sentinel.ErrConflict)
	}
	s.changes[c.ID] = c.Clone()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, changeID id.ChangeID) (*models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.changes[changeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// FindByIDForUpdate is FindByID; callers serialize through the sharded tx.
func (s *InMemory) FindByIDForUpdate(ctx context.Context, changeID id.ChangeID) (*models.Change, error) {
	return s.FindByID(ctx, changeID)
}

func (s *InMemory) Update(_ context.Context, c *models.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.changes[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != c.Version {
		return fmt.Errorf("change %s version %d, have %d: %w", c.ID, current.Version, c.Version, sentinel.ErrConflict)
	}
	c.Version++
	s.changes[c.ID] = c.Clone()
	return nil
}

// ListByStatus returns changes in status, oldest first.
func (s *InMemory) ListByStatus(_ context.Context, status models.Status) ([]*models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Change
	for _, c := range s.changes {
		if c.Status == status {
			out = append(out, c.Clone())
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Change, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Change, 0, len(s.changes))
	for _, c := range s.changes {
		out = append(out, c.Clone())
	}
	sortByCreatedAt(out)
	return out, nil
}

func sortByCreatedAt(cs []*models.Change) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].ID.String() < cs[j].ID.String()
		}
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}
