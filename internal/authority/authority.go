// Package authority abstracts the multi-signature permissioning system as an
// opaque "is this caller currently authorized" oracle. The engine never sees
// approval mechanics; it only asks the oracle per administrative action.
package authority

import (
	"context"
	"sync"
	"time"

	"veriledger/pkg/domain"
)

// Action is a bitmask of administrative action signatures a delegated
// sub-authority may invoke.
type Action uint32

const (
	ActionSetCountry Action = 1 << iota
	ActionSetLimits
	ActionSetDocument
	ActionManageRegistrars
	ActionManageCustodians
	ActionManageTokens
	ActionRestrict
	ActionLock
	ActionManageModules
	ActionModifyBalance
	ActionManageBeneficialOwners
)

// ActionAll grants every administrative action.
const ActionAll = Action(1<<11 - 1)

// Oracle answers authorization queries for administrative actions.
type Oracle interface {
	// Authorized reports whether the caller may perform the action right now.
	Authorized(ctx context.Context, caller domain.InvestorID, action Action) bool
	// IsOwner reports whether the caller is the top-level owner identity.
	IsOwner(caller domain.InvestorID) bool
}

// Directory answers account-level ownership questions for the resolver.
type Directory interface {
	OwnerIdentity() domain.InvestorID
	IsOwnerAccount(account domain.AccountAddr) bool
}

// Delegation scopes a sub-authority: which actions, and until when.
type Delegation struct {
	ApprovedUntil time.Time
	Actions       Action
}

// Static is an in-process oracle backed by an owner identity, a set of
// sub-authority accounts, and expiring delegations. Multisig internals stay
// behind this boundary.
type Static struct {
	mu            sync.RWMutex
	owner         domain.InvestorID
	ownerAccounts map[domain.AccountAddr]struct{}
	delegations   map[domain.InvestorID]Delegation
	now           func() time.Time
}

func NewStatic(owner domain.InvestorID) *Static {
	return &Static{
		owner:         owner,
		ownerAccounts: make(map[domain.AccountAddr]struct{}),
		delegations:   make(map[domain.InvestorID]Delegation),
		now:           time.Now,
	}
}

func (s *Static) OwnerIdentity() domain.InvestorID { return s.owner }

func (s *Static) IsOwner(caller domain.InvestorID) bool { return caller == s.owner }

// AddOwnerAccount registers an account controlled by the owning entity.
func (s *Static) AddOwnerAccount(account domain.AccountAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownerAccounts[account] = struct{}{}
}

func (s *Static) IsOwnerAccount(account domain.AccountAddr) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ownerAccounts[account]
	return ok
}

// Delegate grants a sub-authority an action mask until the expiry.
func (s *Static) Delegate(caller domain.InvestorID, until time.Time, actions Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delegations[caller] = Delegation{ApprovedUntil: until, Actions: actions}
}

// Revoke removes a delegation.
func (s *Static) Revoke(caller domain.InvestorID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.delegations, caller)
}

func (s *Static) Authorized(_ context.Context, caller domain.InvestorID, action Action) bool {
	if caller == s.owner {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.delegations[caller]
	if !ok {
		return false
	}
	if s.now().After(d.ApprovedUntil) {
		return false
	}
	return d.Actions&action == action
}
