package registry

import (
	"context"
	"sync"
	"time"

	"veriledger/pkg/domain"
)

// StubClient is a deterministic in-process registrar for tests and local
// development. Identities are derived from the account address so repeated
// registrations agree across stub instances.
type StubClient struct {
	// Latency mimics a real registrar round trip when nonzero.
	Latency time.Duration

	mu        sync.RWMutex
	accounts  map[domain.AccountAddr]InvestorRecord
	countries map[domain.InvestorID]domain.CountryCode
}

func NewStubClient() *StubClient {
	return &StubClient{
		accounts:  make(map[domain.AccountAddr]InvestorRecord),
		countries: make(map[domain.InvestorID]domain.CountryCode),
	}
}

// Enroll registers an account with this registrar and returns the derived
// identity. Accounts enrolled with the same address share one identity.
func (c *StubClient) Enroll(account domain.AccountAddr, allowed bool, rating domain.Rating, country domain.CountryCode) domain.InvestorID {
	identity := domain.DeriveInvestorID([]byte(account))
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[account] = InvestorRecord{
		Identity: identity,
		Allowed:  allowed,
		Rating:   rating,
		Country:  country,
	}
	c.countries[identity] = country
	return identity
}

// EnrollAs registers an account under an explicit identity, for modeling a
// second account controlled by an already-known investor.
func (c *StubClient) EnrollAs(account domain.AccountAddr, identity domain.InvestorID, allowed bool, rating domain.Rating, country domain.CountryCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[account] = InvestorRecord{
		Identity: identity,
		Allowed:  allowed,
		Rating:   rating,
		Country:  country,
	}
	c.countries[identity] = country
}

// Revoke removes an account from this registrar.
func (c *StubClient) Revoke(account domain.AccountAddr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.accounts, account)
}

// SetAllowed flips the eligibility flag for an enrolled account.
func (c *StubClient) SetAllowed(account domain.AccountAddr, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.accounts[account]; ok {
		rec.Allowed = allowed
		c.accounts[account] = rec
	}
}

func (c *StubClient) GetIdentity(_ context.Context, account domain.AccountAddr) (domain.InvestorID, error) {
	c.sleep()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accounts[account].Identity, nil
}

func (c *StubClient) GetInvestor(_ context.Context, account domain.AccountAddr) (InvestorRecord, error) {
	c.sleep()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accounts[account], nil
}

func (c *StubClient) GetInvestorPair(ctx context.Context, a, b domain.AccountAddr) ([2]InvestorRecord, error) {
	first, err := c.GetInvestor(ctx, a)
	if err != nil {
		return [2]InvestorRecord{}, err
	}
	second, err := c.GetInvestor(ctx, b)
	if err != nil {
		return [2]InvestorRecord{}, err
	}
	return [2]InvestorRecord{first, second}, nil
}

func (c *StubClient) GetCountryOf(_ context.Context, identity domain.InvestorID) (domain.CountryCode, error) {
	c.sleep()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.countries[identity], nil
}

func (c *StubClient) sleep() {
	if c.Latency > 0 {
		time.Sleep(c.Latency)
	}
}
