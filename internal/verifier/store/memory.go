package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rwaledger/internal/verifier/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
)

type verifierEntry struct {
	mu sync.Mutex
	v  *models.Verifier
}

// InMemory is a process-local verifier directory with one lock per
// verifier. ACTIVE verifiers are additionally indexed by tier so assignment
// does not scan the full set.
type InMemory struct {
	mu        sync.RWMutex
	verifiers map[id.VerifierID]*verifierEntry
	byTier    map[models.Tier]map[id.VerifierID]struct{}
	sequence  int64
}

func NewInMemory() *InMemory {
	s := &InMemory{
		verifiers: make(map[id.VerifierID]*verifierEntry),
		byTier:    make(map[models.Tier]map[id.VerifierID]struct{}),
	}
	for _, t := range models.AllTiers {
		s.byTier[t] = make(map[id.VerifierID]struct{})
	}
	return s
}

func (s *InMemory) NextSequence(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return s.sequence, nil
}

func (s *InMemory) Create(_ context.Context, v *models.Verifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.verifiers[v.ID]; exists {
		return fmt.Errorf("verifier %s: %w", v.ID, sentinel.ErrConflict)
	}
	s.verifiers[v.ID] = &verifierEntry{v: v.Clone()}
	s.reindex(v)
	return nil
}

func (s *InMemory) entry(verifierID id.VerifierID) (*verifierEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.verifiers[verifierID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e, nil
}

func (s *InMemory) FindByID(_ context.Context, verifierID id.VerifierID) (*models.Verifier, error) {
	e, err := s.entry(verifierID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.v.Clone(), nil
}

// List returns every verifier ordered by registration sequence.
func (s *InMemory) List(_ context.Context) ([]*models.Verifier, error) {
	s.mu.RLock()
	entries := make([]*verifierEntry, 0, len(s.verifiers))
	for _, e := range s.verifiers {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := snapshot(entries)
	sortBySequence(out)
	return out, nil
}

// ListActive returns ACTIVE verifiers at or above minTier, ordered by sequence.
func (s *InMemory) ListActive(_ context.Context, minTier models.Tier) ([]*models.Verifier, error) {
	s.mu.RLock()
	var entries []*verifierEntry
	for _, t := range models.AllTiers {
		if !t.AtLeast(minTier) {
			continue
		}
		for vid := range s.byTier[t] {
			entries = append(entries, s.verifiers[vid])
		}
	}
	s.mu.RUnlock()

	var out []*models.Verifier
	for _, v := range snapshot(entries) {
		// the index is read before the entries are locked
		if v.Status == models.StatusActive && v.Tier.AtLeast(minTier) {
			out = append(out, v)
		}
	}
	sortBySequence(out)
	return out, nil
}

// Execute runs validate then mutate on a private copy while holding the
// verifier's lock, so the check and the write observe the same state.
func (s *InMemory) Execute(_ context.Context, verifierID id.VerifierID, validate func(*models.Verifier) error, mutate func(*models.Verifier)) (*models.Verifier, error) {
	e, err := s.entry(verifierID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	working := e.v.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	e.v = working
	s.mu.Lock()
	s.reindex(working)
	s.mu.Unlock()
	return working.Clone(), nil
}

// reindex expects s.mu to be held.
func (s *InMemory) reindex(v *models.Verifier) {
	for _, t := range models.AllTiers {
		delete(s.byTier[t], v.ID)
	}
	if v.Status == models.StatusActive {
		s.byTier[v.Tier][v.ID] = struct{}{}
	}
}

func snapshot(entries []*verifierEntry) []*models.Verifier {
	out := make([]*models.Verifier, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.v.Clone())
		e.mu.Unlock()
	}
	return out
}

func sortBySequence(vs []*models.Verifier) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].Sequence < vs[j].Sequence })
}
