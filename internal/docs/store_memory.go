package docs

import (
	"context"
	"sort"
	"sync"

	"veriledger/pkg/domain"
	"veriledger/pkg/platform/sentinel"
)

// InMemoryStore is the in-process document table.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[domain.DocumentID]Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[domain.DocumentID]Document)}
}

func (s *InMemoryStore) Get(_ context.Context, id domain.DocumentID) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &doc, nil
}

func (s *InMemoryStore) Put(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.ID]; ok {
		return sentinel.ErrConflict
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
