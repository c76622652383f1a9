// Package store persists account aggregates. The memory store is the
// single-node default; the postgres store is its durable twin. Both return
// sentinel facts, never coded domain errors.
package store

import (
	"context"
	"sync"

	"acctgate/internal/account/models"
	"acctgate/pkg/domain"
	"acctgate/pkg/platform/sentinel"
)

// InMemoryStore keeps account aggregates in process memory. Get hands out
// deep copies, so callers mutate freely and commit with Put; serialization
// of operations on one account is the service's job.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[domain.Address]*models.AccountState
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[domain.Address]*models.AccountState)}
}

func (s *InMemoryStore) Create(_ context.Context, state *models.AccountState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := state.Account.Address
	if _, exists := s.accounts[addr]; exists {
		return sentinel.ErrConflict
	}
	s.accounts[addr] = state.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, addr domain.Address) (*models.AccountState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.accounts[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return state.Clone(), nil
}

func (s *InMemoryStore) Put(_ context.Context, state *models.AccountState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr := state.Account.Address
	if _, ok := s.accounts[addr]; !ok {
		return sentinel.ErrNotFound
	}
	s.accounts[addr] = state.Clone()
	return nil
}
