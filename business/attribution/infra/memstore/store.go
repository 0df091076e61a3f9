// Package memstore keeps outcome history in process memory. It backs the
// attributor when no Redis address is configured.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/fd1az/mev-bundler/business/attribution/domain"
)

// Store is a bounded per-key outcome history.
type Store struct {
	limit int

	mu   sync.RWMutex
	data map[string][]domain.Outcome
}

// New creates a store keeping at most limit outcomes per key.
func New(limit int) *Store {
	if limit <= 0 {
		limit = 100
	}
	return &Store{limit: limit, data: make(map[string][]domain.Outcome)}
}

func (s *Store) Record(_ context.Context, o domain.Outcome) error {
	key := o.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.data[key], o)
	if len(list) > s.limit {
		list = append([]domain.Outcome(nil), list[len(list)-s.limit:]...)
	}
	s.data[key] = list
	return nil
}

func (s *Store) Recent(_ context.Context, key string, limit int) ([]domain.Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.data[key]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return append([]domain.Outcome(nil), list...), nil
}

func (s *Store) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) Ping(context.Context) error { return nil }
