package events

import (
	"context"
	"sync"

	"acctgate/pkg/domain"
)

// InMemoryStore keeps events per account. It backs unit tests and the query
// surface in single-node deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.Address][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.Address][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Account] = append(s.events[event.Account], event)
	return nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, account domain.Address) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[account]...), nil
}
