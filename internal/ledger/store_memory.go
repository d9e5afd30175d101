package ledger

import (
	"context"
	"sync"

	"veriledger/pkg/domain"
	"veriledger/pkg/platform/sentinel"
)

// InMemoryStore is the primary serialized engine state. It favors clarity
// over performance and hands out copies so callers never alias live rows.
type InMemoryStore struct {
	mu        sync.RWMutex
	accounts  map[domain.InvestorID]Account
	countries map[domain.CountryCode]Country
	global    CountsRow
	tokens    map[domain.TokenID]Token
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts:  make(map[domain.InvestorID]Account),
		countries: make(map[domain.CountryCode]Country),
		tokens:    make(map[domain.TokenID]Token),
	}
}

func (s *InMemoryStore) Account(_ context.Context, identity domain.InvestorID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[identity]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := acct
	out.Custodians = make(map[domain.InvestorID]struct{}, len(acct.Custodians))
	for k := range acct.Custodians {
		out.Custodians[k] = struct{}{}
	}
	return &out, nil
}

func (s *InMemoryStore) SaveAccount(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *account
	stored.Custodians = make(map[domain.InvestorID]struct{}, len(account.Custodians))
	for k := range account.Custodians {
		stored.Custodians[k] = struct{}{}
	}
	s.accounts[account.Identity] = stored
	return nil
}

func (s *InMemoryStore) Country(_ context.Context, code domain.CountryCode) (*Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	country, ok := s.countries[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := country
	return &out, nil
}

func (s *InMemoryStore) SaveCountry(_ context.Context, country *Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.countries[country.Code] = *country
	return nil
}

func (s *InMemoryStore) Global(_ context.Context) (*CountsRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.global
	return &out, nil
}

func (s *InMemoryStore) SaveGlobal(_ context.Context, row *CountsRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global = *row
	return nil
}

func (s *InMemoryStore) SaveBatch(_ context.Context, accounts []*Account, countries []*Country, global *CountsRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range accounts {
		stored := *account
		stored.Custodians = make(map[domain.InvestorID]struct{}, len(account.Custodians))
		for k := range account.Custodians {
			stored.Custodians[k] = struct{}{}
		}
		s.accounts[account.Identity] = stored
	}
	for _, country := range countries {
		s.countries[country.Code] = *country
	}
	if global != nil {
		s.global = *global
	}
	return nil
}

func (s *InMemoryStore) Token(_ context.Context, id domain.TokenID) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := token
	return &out, nil
}

func (s *InMemoryStore) SaveToken(_ context.Context, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = *token
	return nil
}
