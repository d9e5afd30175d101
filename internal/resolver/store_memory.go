package resolver

import (
	"context"
	"sync"

	"veriledger/pkg/domain"
	"veriledger/pkg/platform/sentinel"
)

// InMemoryStore is the in-process binding cache.
type InMemoryStore struct {
	mu       sync.RWMutex
	bindings map[domain.AccountAddr]Binding
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bindings: make(map[domain.AccountAddr]Binding)}
}

func (s *InMemoryStore) Get(_ context.Context, account domain.AccountAddr) (Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bindings[account]
	if !ok {
		return Binding{}, sentinel.ErrNotFound
	}
	return b, nil
}

func (s *InMemoryStore) Put(_ context.Context, account domain.AccountAddr, b Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[account] = b
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, account domain.AccountAddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bindings, account)
	return nil
}
