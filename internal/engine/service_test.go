package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veriledger/internal/audit"
	"veriledger/internal/authority"
	"veriledger/internal/custody"
	"veriledger/internal/docs"
	"veriledger/internal/extension"
	"veriledger/internal/ledger"
	"veriledger/internal/oracle"
	"veriledger/internal/registry"
	"veriledger/internal/resolver"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// =============================================================================
// Engine End-to-End Test Suite
// =============================================================================
// Justification for suite tests: the engine is where resolution, eligibility,
// authorization, and ledger mutation meet. These scenarios exercise the full
// pipeline against in-memory stores and a stub registrar, mirroring how the
// composed service behaves in production.

type EngineSuite struct {
	suite.Suite
	engine    *Service
	ledgerSvc *ledger.Service
	custodySvc *custody.Coordinator
	auth      *authority.Static
	registrar *registry.StubClient
	auditLog  *audit.InMemoryStore
	dispatcher *extension.Dispatcher

	owner domain.InvestorID
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

const (
	issuerAccount = domain.AccountAddr("0xissuer")
	accountA      = domain.AccountAddr("0xalice")
	accountB      = domain.AccountAddr("0xbob")
	accountC      = domain.AccountAddr("0xcarol")

	tokenTKN = domain.TokenID("TKN")

	countryUS = domain.CountryCode(840)
	countryDE = domain.CountryCode(276)
)

func (s *EngineSuite) SetupTest() {
	ctx := context.Background()

	s.owner = domain.DeriveInvestorID([]byte("issuer-identity"))
	s.auth = authority.NewStatic(s.owner)
	s.auth.AddOwnerAccount(issuerAccount)

	roster := registry.NewRoster()
	s.registrar = registry.NewStubClient()

	res, err := resolver.NewService(roster, resolver.NewInMemoryStore(), s.auth, nil)
	s.Require().NoError(err)
	elig, err := oracle.NewService(roster, nil, nil)
	s.Require().NoError(err)
	s.ledgerSvc, err = ledger.NewService(ledger.NewInMemoryStore(), nil, nil)
	s.Require().NoError(err)
	s.custodySvc, err = custody.NewCoordinator(s.ledgerSvc, roster, s.auth, nil)
	s.Require().NoError(err)
	s.ledgerSvc.SetCustody(s.custodySvc)
	docSvc, err := docs.NewService(docs.NewInMemoryStore(), nil)
	s.Require().NoError(err)
	s.auditLog = audit.NewInMemoryStore()
	s.dispatcher = extension.NewDispatcher(nil)

	s.engine, err = NewService(Deps{
		Resolver:   res,
		Oracle:     elig,
		Ledger:     s.ledgerSvc,
		Custody:    s.custodySvc,
		Extensions: s.dispatcher,
		Docs:       docSvc,
		Authority:  s.auth,
		Roster:     roster,
		Audit:      audit.NewPublisher(s.auditLog, nil, nil),
	})
	s.Require().NoError(err)

	_, err = s.engine.AttachRegistrar(ctx, s.owner, "stub", s.registrar)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.RegisterToken(ctx, s.owner, tokenTKN))
	s.Require().NoError(s.engine.SetCountry(ctx, s.owner, CountryRule{Code: countryUS, Allowed: true}))
	s.Require().NoError(s.engine.SetCountry(ctx, s.owner, CountryRule{Code: countryDE, Allowed: true}))
}

// issue mints supply onto the owner identity and moves amount to the account.
func (s *EngineSuite) issue(account domain.AccountAddr, amount uint64) {
	ctx := context.Background()
	acct, err := s.ledgerSvc.AccountView(ctx, s.owner)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.ModifyBalance(ctx, s.owner, s.owner, acct.Balance+amount))
	s.Require().NoError(s.engine.Transfer(ctx, s.owner, tokenTKN, issuerAccount, account, amount))
}

func (s *EngineSuite) balance(identity domain.InvestorID) uint64 {
	acct, err := s.ledgerSvc.AccountView(context.Background(), identity)
	s.Require().NoError(err)
	return acct.Balance
}

func (s *EngineSuite) globalCount() uint64 {
	global, err := s.ledgerSvc.GlobalView(context.Background())
	s.Require().NoError(err)
	return global.Counts[0]
}

// =============================================================================
// Issuance and Transfer Flow
// =============================================================================

func (s *EngineSuite) TestIssuanceAndTransfers() {
	ctx := context.Background()
	alice := s.registrar.Enroll(accountA, true, 1, countryUS)
	bob := s.registrar.Enroll(accountB, true, 1, countryUS)

	s.Run("issuance charges a slot for the new holder", func() {
		s.issue(accountA, 1000)
		s.Equal(uint64(1000), s.balance(alice))
		s.Equal(uint64(1), s.globalCount())
	})

	s.Run("partial transfer grows the holder population", func() {
		s.Require().NoError(s.engine.Transfer(ctx, alice, tokenTKN, accountA, accountB, 400))
		s.Equal(uint64(600), s.balance(alice))
		s.Equal(uint64(400), s.balance(bob))
		s.Equal(uint64(2), s.globalCount())
	})

	s.Run("unknown token is rejected", func() {
		err := s.engine.Transfer(ctx, alice, "GHOST", accountA, accountB, 1)
		s.True(derrors.HasCode(err, derrors.CodeUnknownToken))
	})

	s.Run("unregistered account is rejected", func() {
		err := s.engine.Transfer(ctx, alice, tokenTKN, accountA, "0xunknown", 1)
		s.True(derrors.HasCode(err, derrors.CodeNotRegistered))
	})

	s.Run("receiver rated outside the known classes is rejected cleanly", func() {
		eve := domain.AccountAddr("0xeve")
		s.registrar.Enroll(eve, true, domain.RatingClasses+1, countryUS)

		err := s.engine.Transfer(ctx, alice, tokenTKN, accountA, eve, 10)
		s.True(derrors.HasCode(err, derrors.CodeInternal))
		s.Equal(uint64(600), s.balance(alice), "sender must be untouched")
	})

	s.Run("registrar-ineligible receiver is rejected", func() {
		s.registrar.SetAllowed(accountB, false)
		err := s.engine.Transfer(ctx, alice, tokenTKN, accountA, accountB, 1)
		s.True(derrors.HasCode(err, derrors.CodeReceiverRestricted))
		s.registrar.SetAllowed(accountB, true)
	})

	s.Run("decisions are recorded on the audit trail", func() {
		events, err := s.auditLog.List(ctx)
		s.Require().NoError(err)

		var approved, rejected int
		for _, ev := range events {
			switch ev.Kind {
			case audit.KindTransferApproved:
				approved++
			case audit.KindTransferRejected:
				rejected++
			}
		}
		s.GreaterOrEqual(approved, 2)
		s.GreaterOrEqual(rejected, 3)
	})
}

// =============================================================================
// Capacity Scenarios
// =============================================================================

func (s *EngineSuite) TestSlotCapacity() {
	ctx := context.Background()
	alice := s.registrar.Enroll(accountA, true, 1, countryUS)
	s.registrar.Enroll(accountB, true, 1, countryUS)
	carol := s.registrar.Enroll(accountC, true, 1, countryUS)

	var limits [domain.RatingClasses + 1]uint64
	limits[0] = 2
	s.Require().NoError(s.engine.SetInvestorLimits(ctx, s.owner, limits))

	s.issue(accountA, 100)
	s.issue(accountB, 100)

	s.Run("a third holder exceeds the aggregate limit", func() {
		err := s.engine.Transfer(ctx, alice, tokenTKN, accountA, accountC, 40)
		s.True(derrors.HasCode(err, derrors.CodeSlotLimit))
		s.Equal(uint64(2), s.globalCount())
	})

	s.Run("a full-balance exit swaps the slot at the limit", func() {
		s.Require().NoError(s.engine.Transfer(ctx, alice, tokenTKN, accountA, accountC, 100))
		s.Equal(uint64(0), s.balance(alice))
		s.Equal(uint64(100), s.balance(carol))
		s.Equal(uint64(2), s.globalCount())
	})

	s.Run("check agrees with the transfer that follows", func() {
		s.NoError(s.engine.CheckTransfer(ctx, carol, tokenTKN, accountC, accountA, 100))

		err := s.engine.CheckTransfer(ctx, carol, tokenTKN, accountC, accountA, 40)
		s.True(derrors.HasCode(err, derrors.CodeSlotLimit))
	})
}

// =============================================================================
// Custody Scenarios
// =============================================================================

// ackCollaborator always acknowledges custody notifications.
type ackCollaborator struct{}

func (ackCollaborator) NotifyReceived(context.Context, domain.TokenID, domain.InvestorID, uint64) (bool, error) {
	return true, nil
}

func (s *EngineSuite) TestCustodyFlow() {
	ctx := context.Background()
	alice := s.registrar.Enroll(accountA, true, 1, countryUS)
	custodianID := domain.DeriveInvestorID([]byte("omnibus"))
	custodianAccount := domain.AccountAddr("0xomnibus")

	s.Require().NoError(s.engine.RegisterCustodian(ctx, s.owner, custodianAccount, custodianID, "omnibus", ackCollaborator{}))
	s.issue(accountA, 500)

	s.Run("deposit to the custodian keeps the investor slot occupied", func() {
		s.Require().NoError(s.engine.Transfer(ctx, alice, tokenTKN, accountA, custodianAccount, 500))

		s.Equal(uint64(0), s.balance(alice))
		s.Equal(uint64(500), s.balance(custodianID))
		s.Equal(uint64(1), s.globalCount(), "beneficial ownership holds the slot open")

		acct, err := s.ledgerSvc.AccountView(ctx, alice)
		s.Require().NoError(err)
		s.Equal(uint16(1), acct.CustodianCount)
	})

	s.Run("withdrawing the beneficial owner vacates the slot", func() {
		s.Require().NoError(s.engine.UpdateBeneficialOwners(ctx, custodianID, custodianID, []domain.InvestorID{alice}, false))
		s.Equal(uint64(0), s.globalCount())
	})

	s.Run("custody changes land on the audit trail", func() {
		events, err := s.auditLog.List(ctx)
		s.Require().NoError(err)

		var custodyEvents int
		for _, ev := range events {
			if ev.Kind == audit.KindCustodyChanged {
				custodyEvents++
			}
		}
		s.Equal(2, custodyEvents)
	})
}

// reentrantCollaborator calls back into the engine while acknowledging a
// custody notification and records the error the callback gets.
type reentrantCollaborator struct {
	engine      *Service
	custodian   domain.InvestorID
	owner       domain.InvestorID
	callbackErr error
}

func (c *reentrantCollaborator) NotifyReceived(ctx context.Context, _ domain.TokenID, _ domain.InvestorID, _ uint64) (bool, error) {
	c.callbackErr = c.engine.UpdateBeneficialOwners(ctx, c.custodian, c.custodian, []domain.InvestorID{c.owner}, false)
	return true, nil
}

func (s *EngineSuite) TestCustodyCallbackDuringTransfer() {
	ctx := context.Background()
	alice := s.registrar.Enroll(accountA, true, 1, countryUS)
	custodianID := domain.DeriveInvestorID([]byte("callback-omnibus"))
	custodianAccount := domain.AccountAddr("0xcallback")

	collab := &reentrantCollaborator{engine: s.engine, custodian: custodianID, owner: alice}
	s.Require().NoError(s.engine.RegisterCustodian(ctx, s.owner, custodianAccount, custodianID, "callback", collab))
	s.issue(accountA, 200)

	s.Run("callback is rejected fast, the outer transfer still lands", func() {
		s.Require().NoError(s.engine.Transfer(ctx, alice, tokenTKN, accountA, custodianAccount, 200))

		s.True(derrors.HasCode(collab.callbackErr, derrors.CodeReentrancy),
			"the callback must fail with the reentrancy code, not block")
		s.Equal(uint64(200), s.balance(custodianID))

		acct, err := s.ledgerSvc.AccountView(ctx, alice)
		s.Require().NoError(err)
		s.Equal(uint16(1), acct.CustodianCount, "the edge is recorded by the outer operation only")
	})
}

// =============================================================================
// Administrative Gates
// =============================================================================

func (s *EngineSuite) TestAdminGates() {
	ctx := context.Background()
	alice := s.registrar.Enroll(accountA, true, 1, countryUS)
	bob := s.registrar.Enroll(accountB, true, 1, countryUS)

	s.Run("unauthorized admin calls are no-ops", func() {
		err := s.engine.SetGlobalLock(ctx, alice, true)
		s.True(derrors.HasCode(err, derrors.CodeUnauthorized))

		err = s.engine.RegisterToken(ctx, alice, "NEW")
		s.True(derrors.HasCode(err, derrors.CodeUnauthorized))
	})

	s.Run("delegated sub-authority may act within its mask", func() {
		s.auth.Delegate(alice, time.Now().Add(time.Hour), authority.ActionLock)
		s.NoError(s.engine.SetGlobalLock(ctx, alice, true))
		s.NoError(s.engine.SetGlobalLock(ctx, alice, false))
		s.auth.Revoke(alice)
	})

	s.Run("global lock halts investor transfers but not issuance", func() {
		s.issue(accountA, 100)
		s.Require().NoError(s.engine.SetGlobalLock(ctx, s.owner, true))

		err := s.engine.Transfer(ctx, alice, tokenTKN, accountA, accountB, 10)
		s.True(derrors.HasCode(err, derrors.CodeEntityLocked))

		s.NoError(s.engine.Transfer(ctx, s.owner, tokenTKN, issuerAccount, accountB, 0))
		s.Require().NoError(s.engine.SetGlobalLock(ctx, s.owner, false))
	})

	s.Run("restricted investor cannot send", func() {
		s.Require().NoError(s.engine.RestrictInvestor(ctx, s.owner, alice, true))
		err := s.engine.Transfer(ctx, alice, tokenTKN, accountA, accountB, 10)
		s.True(derrors.HasCode(err, derrors.CodeSenderRestricted))
		s.Require().NoError(s.engine.RestrictInvestor(ctx, s.owner, alice, false))
	})

	s.Run("restricted token blocks transfers until lifted", func() {
		s.Require().NoError(s.engine.RestrictToken(ctx, s.owner, tokenTKN, true))
		err := s.engine.Transfer(ctx, alice, tokenTKN, accountA, accountB, 10)
		s.True(derrors.HasCode(err, derrors.CodeTokenRestricted))
		s.Require().NoError(s.engine.RestrictToken(ctx, s.owner, tokenTKN, false))
	})

	s.Run("jurisdiction rules gate receivers", func() {
		dave := domain.AccountAddr("0xdave")
		s.registrar.Enroll(dave, true, 2, domain.CountryCode(408))

		err := s.engine.Transfer(ctx, alice, tokenTKN, accountA, dave, 10)
		s.True(derrors.HasCode(err, derrors.CodeJurisdictionBlocked))
	})

	_ = bob
}

// =============================================================================
// Extension and Document Scenarios
// =============================================================================

// denyHook rejects every pre-commit check it sees.
type denyHook struct{ seen int }

func (h *denyHook) ID() string { return "deny-all" }

func (h *denyHook) OnLedgerEvent(_ context.Context, ev extension.Event) error {
	h.seen++
	if ev.Kind == extension.EventTransferCheck {
		return derrors.New(derrors.CodeValidation, "holding period active")
	}
	return nil
}

func (s *EngineSuite) TestExtensionsAndDocuments() {
	ctx := context.Background()
	alice := s.registrar.Enroll(accountA, true, 1, countryUS)
	s.registrar.Enroll(accountB, true, 1, countryUS)
	s.issue(accountA, 100)

	s.Run("attached module can veto transfers", func() {
		hook := &denyHook{}
		s.Require().NoError(s.engine.AttachModule(ctx, s.owner, tokenTKN, hook))

		err := s.engine.Transfer(ctx, alice, tokenTKN, accountA, accountB, 10)
		s.True(derrors.HasCode(err, derrors.CodeValidation))
		s.Equal(uint64(100), s.balance(alice))

		s.Require().NoError(s.engine.DetachModule(ctx, s.owner, tokenTKN, "deny-all"))
		s.NoError(s.engine.Transfer(ctx, alice, tokenTKN, accountA, accountB, 10))
	})

	s.Run("documents are write-once through the engine", func() {
		hash := docs.HashDocument([]byte("offering memorandum"))
		s.Require().NoError(s.engine.SetDocument(ctx, s.owner, "memo", "ipfs://memo", hash))

		err := s.engine.SetDocument(ctx, s.owner, "memo", "ipfs://memo", hash)
		s.True(derrors.HasCode(err, derrors.CodeDuplicateDocument))

		doc, err := s.engine.GetDocument(ctx, "memo")
		s.Require().NoError(err)
		s.Equal(hash, doc.Hash)
	})
}
