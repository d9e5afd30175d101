// Package custody tracks omnibus holders: transfers into a registered
// custodian attribute beneficial ownership to the sending investor, keeping
// the investor's slot occupied even at zero direct balance.
package custody

import (
	"context"
	"log/slog"
	"sync"

	"veriledger/internal/authority"
	"veriledger/internal/ledger"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// Collaborator is the external custodian contract. It acknowledges receipt of
// a beneficial-ownership transfer and may call back into the engine's
// beneficial-owner administration.
type Collaborator interface {
	NotifyReceived(ctx context.Context, token domain.TokenID, from domain.InvestorID, amount uint64) (bool, error)
}

// Ledger is the slice of the compliance ledger the coordinator needs.
type Ledger interface {
	ApplyCustodyEdge(ctx context.Context, investor, custodian domain.InvestorID, country domain.CountryCode, add bool) error
}

// CountryResolver finds the jurisdiction of an identity for slot attribution.
type CountryResolver interface {
	CountryOf(ctx context.Context, identity domain.InvestorID) (domain.CountryCode, error)
}

// Registration maps a custodian identity to its external handle.
type Registration struct {
	Identity     domain.InvestorID
	Handle       string
	Collaborator Collaborator
}

// ChangeSignal is emitted whenever a beneficial-ownership edge toggles.
type ChangeSignal func(investor, custodian domain.InvestorID, added bool)

// Coordinator detects custodial transfers, notifies the collaborator, and
// guards custody-affecting entry points against re-entrant callbacks. While a
// custodian notification is outstanding, no second custody-affecting
// operation may proceed.
type Coordinator struct {
	mu         sync.Mutex
	inFlight   bool
	custodians map[domain.InvestorID]Registration

	ledger    Ledger
	countries CountryResolver
	oracle    authority.Oracle
	onChange  ChangeSignal
	logger    *slog.Logger
}

func NewCoordinator(l Ledger, countries CountryResolver, oracle authority.Oracle, logger *slog.Logger) (*Coordinator, error) {
	if l == nil {
		return nil, derrors.New(derrors.CodeValidation, "ledger port is required")
	}
	if oracle == nil {
		return nil, derrors.New(derrors.CodeValidation, "authority oracle is required")
	}
	return &Coordinator{
		custodians: make(map[domain.InvestorID]Registration),
		ledger:     l,
		countries:  countries,
		oracle:     oracle,
		logger:     logger,
	}, nil
}

// SetOnChange wires the beneficial-ownership-changed signal.
func (c *Coordinator) SetOnChange(fn ChangeSignal) { c.onChange = fn }

// Register attaches a custodian.
func (c *Coordinator) Register(identity domain.InvestorID, handle string, collab Collaborator) error {
	if identity.IsZero() {
		return derrors.New(derrors.CodeValidation, "custodian identity is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custodians[identity] = Registration{Identity: identity, Handle: handle, Collaborator: collab}
	return nil
}

// IsCustodian reports whether the identity is a registered custodian.
func (c *Coordinator) IsCustodian(identity domain.InvestorID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.custodians[identity]
	return ok
}

// NotifyReceived runs the custodial leg of a transfer: tell the collaborator,
// and on acknowledgment record the (sender, custodian) edge. Implements
// ledger.CustodyPort.
func (c *Coordinator) NotifyReceived(ctx context.Context, token domain.TokenID, custodian domain.InvestorID, from ledger.Party, amount uint64) error {
	reg, ok := c.registration(custodian)
	if !ok {
		return derrors.New(derrors.CodeNotFound, "custodian is not registered")
	}
	release, err := c.acquire()
	if err != nil {
		return err
	}
	defer release()

	if reg.Collaborator == nil {
		return nil
	}
	ack, err := reg.Collaborator.NotifyReceived(ctx, token, from.Identity, amount)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "custodian notification failed")
	}
	if !ack {
		if c.logger != nil {
			c.logger.InfoContext(ctx, "custodian declined beneficial-owner attribution",
				"custodian", custodian.String(), "from", from.Identity.String())
		}
		return nil
	}
	if err := c.ledger.ApplyCustodyEdge(ctx, from.Identity, custodian, from.Country, true); err != nil {
		return err
	}
	c.signal(from.Identity, custodian, true)
	return nil
}

// UpdateBeneficialOwners toggles edges in bulk. Restricted to the custodian
// itself or the top-level authority.
func (c *Coordinator) UpdateBeneficialOwners(ctx context.Context, caller, custodian domain.InvestorID, owners []domain.InvestorID, add bool) error {
	if !c.IsCustodian(custodian) {
		return derrors.New(derrors.CodeNotFound, "custodian is not registered")
	}
	if caller != custodian && !c.oracle.Authorized(ctx, caller, authority.ActionManageBeneficialOwners) {
		return derrors.New(derrors.CodeUnauthorized, "caller may not manage beneficial owners")
	}
	release, err := c.acquire()
	if err != nil {
		return err
	}
	defer release()

	for _, owner := range owners {
		country, err := c.countryOf(ctx, owner)
		if err != nil {
			return err
		}
		if err := c.ledger.ApplyCustodyEdge(ctx, owner, custodian, country, add); err != nil {
			return err
		}
		c.signal(owner, custodian, add)
	}
	return nil
}

// acquire takes the shared in-flight flag, failing fast when a custody
// operation is already outstanding.
func (c *Coordinator) acquire() (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight {
		return nil, derrors.New(derrors.CodeReentrancy, "custody operation already in flight")
	}
	c.inFlight = true
	return func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}, nil
}

// Engaged reports whether a custody operation is currently in flight. Entry
// points that would block behind the engine mutex consult this to fail fast
// when a collaborator calls back during a notification.
func (c *Coordinator) Engaged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Coordinator) registration(identity domain.InvestorID) (Registration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reg, ok := c.custodians[identity]
	return reg, ok
}

func (c *Coordinator) countryOf(ctx context.Context, identity domain.InvestorID) (domain.CountryCode, error) {
	if c.countries == nil {
		return 0, nil
	}
	return c.countries.CountryOf(ctx, identity)
}

func (c *Coordinator) signal(investor, custodian domain.InvestorID, added bool) {
	if c.onChange != nil {
		c.onChange(investor, custodian, added)
	}
}
