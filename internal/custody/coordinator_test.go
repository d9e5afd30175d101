package custody

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"veriledger/internal/authority"
	"veriledger/internal/ledger"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// =============================================================================
// Custody Coordinator Test Suite
// =============================================================================
// Justification for unit tests: the re-entrancy guard and the
// acknowledge/decline split decide whether beneficial-owner edges exist at
// all; a fake collaborator lets us drive the callback path deterministically.

type CoordinatorSuite struct {
	suite.Suite
	ledger      *edgeRecorder
	coordinator *Coordinator
	auth        *authority.Static
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

var (
	ownerID     = domain.DeriveInvestorID([]byte("owner"))
	custodianID = domain.DeriveInvestorID([]byte("custodian"))
	investorID  = domain.DeriveInvestorID([]byte("investor"))
)

// edgeRecorder records ApplyCustodyEdge calls in place of the real ledger.
type edgeRecorder struct {
	edges []edge
	err   error
}

type edge struct {
	investor, custodian domain.InvestorID
	country             domain.CountryCode
	add                 bool
}

func (r *edgeRecorder) ApplyCustodyEdge(_ context.Context, investor, custodian domain.InvestorID, country domain.CountryCode, add bool) error {
	if r.err != nil {
		return r.err
	}
	r.edges = append(r.edges, edge{investor, custodian, country, add})
	return nil
}

// staticCountries maps every identity to one jurisdiction.
type staticCountries struct{ code domain.CountryCode }

func (c staticCountries) CountryOf(context.Context, domain.InvestorID) (domain.CountryCode, error) {
	return c.code, nil
}

// scriptedCollaborator acknowledges or declines, optionally calling back into
// the coordinator mid-notification.
type scriptedCollaborator struct {
	ack      bool
	err      error
	callback func(ctx context.Context) error
	cbErr    error
}

func (c *scriptedCollaborator) NotifyReceived(ctx context.Context, _ domain.TokenID, _ domain.InvestorID, _ uint64) (bool, error) {
	if c.callback != nil {
		c.cbErr = c.callback(ctx)
	}
	return c.ack, c.err
}

func (s *CoordinatorSuite) SetupTest() {
	s.ledger = &edgeRecorder{}
	s.auth = authority.NewStatic(ownerID)

	var err error
	s.coordinator, err = NewCoordinator(s.ledger, staticCountries{code: 840}, s.auth, nil)
	s.Require().NoError(err)
}

func (s *CoordinatorSuite) register(collab Collaborator) {
	s.Require().NoError(s.coordinator.Register(custodianID, "omnibus-1", collab))
}

// =============================================================================
// Registration Tests
// =============================================================================

func (s *CoordinatorSuite) TestRegistration() {
	s.Run("zero identity is rejected", func() {
		s.Error(s.coordinator.Register("", "x", nil))
	})

	s.Run("registered identity is detected", func() {
		s.register(nil)
		s.True(s.coordinator.IsCustodian(custodianID))
		s.False(s.coordinator.IsCustodian(investorID))
	})
}

// =============================================================================
// NotifyReceived Tests
// =============================================================================

func (s *CoordinatorSuite) TestNotifyReceived() {
	ctx := context.Background()
	from := ledger.Party{Identity: investorID, Rating: 1, Country: 276}

	s.Run("unregistered custodian is an error", func() {
		err := s.coordinator.NotifyReceived(ctx, "TKN", custodianID, from, 10)
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})

	s.Run("acknowledgment records the edge in the sender's country", func() {
		s.register(&scriptedCollaborator{ack: true})

		s.Require().NoError(s.coordinator.NotifyReceived(ctx, "TKN", custodianID, from, 10))
		s.Require().Len(s.ledger.edges, 1)
		s.Equal(investorID, s.ledger.edges[0].investor)
		s.Equal(custodianID, s.ledger.edges[0].custodian)
		s.Equal(domain.CountryCode(276), s.ledger.edges[0].country)
		s.True(s.ledger.edges[0].add)
	})

	s.Run("decline records nothing and is not an error", func() {
		s.SetupTest()
		s.register(&scriptedCollaborator{ack: false})

		s.Require().NoError(s.coordinator.NotifyReceived(ctx, "TKN", custodianID, from, 10))
		s.Empty(s.ledger.edges)
	})

	s.Run("collaborator error fails the notification", func() {
		s.SetupTest()
		s.register(&scriptedCollaborator{err: context.DeadlineExceeded})

		err := s.coordinator.NotifyReceived(ctx, "TKN", custodianID, from, 10)
		s.True(derrors.HasCode(err, derrors.CodeInternal))
		s.Empty(s.ledger.edges)
	})

	s.Run("nil collaborator is a silent custodian", func() {
		s.SetupTest()
		s.register(nil)
		s.NoError(s.coordinator.NotifyReceived(ctx, "TKN", custodianID, from, 10))
		s.Empty(s.ledger.edges)
	})

	s.Run("change signal fires on recorded edges", func() {
		s.SetupTest()
		s.register(&scriptedCollaborator{ack: true})
		var fired bool
		s.coordinator.SetOnChange(func(investor, custodian domain.InvestorID, added bool) {
			fired = investor == investorID && custodian == custodianID && added
		})
		s.Require().NoError(s.coordinator.NotifyReceived(ctx, "TKN", custodianID, from, 10))
		s.True(fired)
	})
}

// =============================================================================
// Re-entrancy Guard Tests
// =============================================================================

func (s *CoordinatorSuite) TestReentrancyGuard() {
	ctx := context.Background()
	from := ledger.Party{Identity: investorID, Rating: 1, Country: 276}

	s.Run("callback into beneficial-owner update is blocked", func() {
		collab := &scriptedCollaborator{ack: true}
		collab.callback = func(ctx context.Context) error {
			return s.coordinator.UpdateBeneficialOwners(ctx, custodianID, custodianID, []domain.InvestorID{investorID}, true)
		}
		s.register(collab)

		// The outer notification itself succeeds; the nested call is the one
		// rejected.
		s.Require().NoError(s.coordinator.NotifyReceived(ctx, "TKN", custodianID, from, 10))
		s.True(derrors.HasCode(collab.cbErr, derrors.CodeReentrancy))
	})

	s.Run("guard is released after the operation completes", func() {
		s.SetupTest()
		s.register(&scriptedCollaborator{ack: true})

		s.Require().NoError(s.coordinator.NotifyReceived(ctx, "TKN", custodianID, from, 10))
		s.Require().NoError(s.coordinator.NotifyReceived(ctx, "TKN", custodianID, from, 10))
		s.Len(s.ledger.edges, 2)
	})
}

// =============================================================================
// UpdateBeneficialOwners Tests
// =============================================================================

func (s *CoordinatorSuite) TestUpdateBeneficialOwners() {
	ctx := context.Background()
	owners := []domain.InvestorID{investorID, domain.DeriveInvestorID([]byte("other"))}

	s.Run("custodian may update its own book", func() {
		s.register(nil)

		s.Require().NoError(s.coordinator.UpdateBeneficialOwners(ctx, custodianID, custodianID, owners, true))
		s.Len(s.ledger.edges, 2)
		s.Equal(domain.CountryCode(840), s.ledger.edges[0].country)
	})

	s.Run("owner authority may update any book", func() {
		s.SetupTest()
		s.register(nil)

		s.NoError(s.coordinator.UpdateBeneficialOwners(ctx, ownerID, custodianID, owners, false))
	})

	s.Run("strangers are refused", func() {
		s.SetupTest()
		s.register(nil)

		err := s.coordinator.UpdateBeneficialOwners(ctx, investorID, custodianID, owners, true)
		s.True(derrors.HasCode(err, derrors.CodeUnauthorized))
	})

	s.Run("unknown custodian is an error", func() {
		s.SetupTest()
		err := s.coordinator.UpdateBeneficialOwners(ctx, ownerID, custodianID, owners, true)
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})
}
