package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rwaledger/internal/verification/models"
	id "rwaledger/pkg/domain"
	"rwaledger/pkg/platform/sentinel"
)

type requestEntry struct {
	mu  sync.Mutex
	req *models.Request
}

// InMemory keeps every request behind its own lock and indexes the ones
// still collecting results. The store lock only guards the maps.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*requestEntry
	active   map[id.RequestID]struct{}
	sequence int64
}

func NewInMemory() *InMemory {
	return &InMemory{
		requests: make(map[id.RequestID]*requestEntry),
		active:   make(map[id.RequestID]struct{}),
	}
}

func (s *InMemory) NextSequence(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence++
	return s.sequence, nil
}

func (s *InMemory) Save(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; exists {
		return fmt.Errorf("request %s: %w", r.ID, sentinel.ErrConflict)
	}
	s.requests[r.ID] = &requestEntry{req: r.Clone()}
	if r.CompletedAt == nil {
		s.active[r.ID] = struct{}{}
	}
	return nil
}

func (s *InMemory) entry(requestID id.RequestID) (*requestEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e, nil
}

func (s *InMemory) FindByID(_ context.Context, requestID id.RequestID) (*models.Request, error) {
	e, err := s.entry(requestID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.req.Clone(), nil
}

// ListActive returns incomplete requests, oldest first.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Request, error) {
	s.mu.RLock()
	entries := make([]*requestEntry, 0, len(s.active))
	for rid := range s.active {
		entries = append(entries, s.requests[rid])
	}
	s.mu.RUnlock()

	out := make([]*models.Request, 0, len(entries))
	for _, r := range snapshot(entries) {
		// may have completed after the index was read
		if r.CompletedAt == nil {
			out = append(out, r)
		}
	}
	sortByRequestedAt(out)
	return out, nil
}

// ListBySubject returns every request for subject, oldest first.
func (s *InMemory) ListBySubject(_ context.Context, subject id.TokenID) ([]*models.Request, error) {
	s.mu.RLock()
	entries := make([]*requestEntry, 0, len(s.requests))
	for _, e := range s.requests {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var out []*models.Request
	for _, r := range snapshot(entries) {
		if r.SubjectID == subject {
			out = append(out, r)
		}
	}
	sortByRequestedAt(out)
	return out, nil
}

// Execute runs validate then mutate on a private copy while holding the
// request's lock. A request that becomes complete leaves the active index.
func (s *InMemory) Execute(_ context.Context, requestID id.RequestID, validate func(*models.Request) error, mutate func(*models.Request)) (*models.Request, error) {
	e, err := s.entry(requestID)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	working := e.req.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	e.req = working
	if working.CompletedAt != nil {
		s.mu.Lock()
		delete(s.active, requestID)
		s.mu.Unlock()
	}
	return working.Clone(), nil
}

func snapshot(entries []*requestEntry) []*models.Request {
	out := make([]*models.Request, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.req.Clone())
		e.mu.Unlock()
	}
	return out
}

func sortByRequestedAt(rs []*models.Request) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].RequestedAt.Equal(rs[j].RequestedAt) {
			return rs[i].ID < rs[j].ID
		}
		return rs[i].RequestedAt.Before(rs[j].RequestedAt)
	})
}
