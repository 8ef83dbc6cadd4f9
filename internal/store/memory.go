package store

import (
	"sync"
	"time"

	"github.com/AngelCh415/attribution-go/internal/models"
)

// MemoryStore holds ingested touchpoints and channel spend. Touchpoints are
// append-only; idempotency is enforced with per-record keys at ingest time.
type MemoryStore struct {
	mu          sync.RWMutex
	touchpoints []models.Touchpoint
	spend       map[string]float64
	seen        map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		spend: make(map[string]float64),
		seen:  make(map[string]struct{}),
	}
}

// MarkSeen records an idempotency key, returning false if it was already
// present.
func (s *MemoryStore) MarkSeen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

func (s *MemoryStore) AddTouchpoint(tp models.Touchpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchpoints = append(s.touchpoints, tp)
}

// SetSpend overwrites a channel's recorded spend for the current dataset.
func (s *MemoryStore) SetSpend(channel string, amount float64) {
	if amount < 0 {
		amount = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spend[channel] = amount
}

// Touchpoints returns all touchpoints with timestamps in [from, to],
// preserving ingest order.
func (s *MemoryStore) Touchpoints(from, to time.Time) []models.Touchpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Touchpoint
	for _, tp := range s.touchpoints {
		if !tp.Timestamp.Before(from) && !tp.Timestamp.After(to) {
			out = append(out, tp)
		}
	}
	return out
}

// Spend returns a copy of the channel spend map.
func (s *MemoryStore) Spend() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.spend))
	for k, v := range s.spend {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.touchpoints)
}
