package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rwaledger/internal/evolution/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
)

type chainEntry struct {
	mu    sync.Mutex
	chain *models.Chain
}

// InMemory keeps one lock per chain; evolutions of different chains never
// wait on each other.
type InMemory struct {
	mu     sync.RWMutex
	chains map[id.TokenID]*chainEntry
}

func NewInMemory() *InMemory {
	return &InMemory{chains: make(map[id.TokenID]*chainEntry)}
}

func (s *InMemory) Create(_ context.Context, c *models.Chain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.chains[c.CompositeID]; exists {
		return fmt.Errorf("chain %s: %w", c.CompositeID, sentinel.ErrConflict)
	}
	s.chains[c.CompositeID] = &chainEntry{chain: c.Clone()}
	return nil
}

func (s *InMemory) entry(compositeID id.TokenID) (*chainEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.chains[compositeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e, nil
}

func (s *InMemory) FindByID(_ context.Context, compositeID id.TokenID) (*models.Chain, error) {
	e, err := s.entry(compositeID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chain.Clone(), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Chain, error) {
	s.mu.RLock()
	entries := make([]*chainEntry, 0, len(s.chains))
	for _, e := range s.chains {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]*models.Chain, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.chain.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompositeID < out[j].CompositeID })
	return out, nil
}

// Execute runs validate then mutate on a private copy while holding the
// chain's lock, and commits the copy only when validate passes.
func (s *InMemory) Execute(_ context.Context, compositeID id.TokenID, validate func(*models.Chain) error, mutate func(*models.Chain)) (*models.Chain, error) {
	e, err := s.entry(compositeID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	working := e.chain.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	working.Version++
	e.chain = working
	return working.Clone(), nil
}
