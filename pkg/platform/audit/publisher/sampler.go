package publisher

import (
	"math/rand/v2"
	"sync"

	audit "rwaledger/pkg/platform/audit"
)

// Sampler keeps a configurable share of operations events.
// Compliance events never reach it.
type Sampler struct {
	mu          sync.RWMutex
	defaultRate float64
	byAction    map[audit.AuditEvent]float64
	roll        func() float64
}

// NewSampler creates a sampler keeping defaultRate of events, clamped to [0,1].
func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{
		defaultRate: clampRate(defaultRate),
		byAction:    make(map[audit.AuditEvent]float64),
		roll:        rand.Float64, //nolint:gosec // sampling doesn't need crypto rand
	}
}

// SetRate overrides the rate for one action, e.g. verifiers_assigned.
func (s *Sampler) SetRate(action audit.AuditEvent, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byAction[action] = clampRate(rate)
}

// ShouldSample reports whether the event should be kept.
func (s *Sampler) ShouldSample(action string) bool {
	s.mu.RLock()
	rate, ok := s.byAction[audit.AuditEvent(action)]
	if !ok {
		rate = s.defaultRate
	}
	s.mu.RUnlock()
	switch rate {
	case 0:
		return false
	case 1:
		return true
	}
	return s.roll() < rate
}

func clampRate(r float64) float64 {
	return min(max(r, 0), 1)
}
