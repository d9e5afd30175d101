// Package engine composes resolution, eligibility, authorization, and the
// ledger into the transfer decision pipeline. All mutating operations are
// serialized behind one mutex; the engine is logically single-threaded and
// every collaborator call inside an operation is synchronous.
package engine

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veriledger/internal/audit"
	"veriledger/internal/authority"
	"veriledger/internal/authorizer"
	"veriledger/internal/custody"
	"veriledger/internal/docs"
	"veriledger/internal/extension"
	"veriledger/internal/ledger"
	"veriledger/internal/oracle"
	"veriledger/internal/platform/metrics"
	"veriledger/internal/registry"
	"veriledger/internal/resolver"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// Deps carries the engine's collaborators.
type Deps struct {
	Resolver   *resolver.Service
	Oracle     *oracle.Service
	Ledger     *ledger.Service
	Custody    *custody.Coordinator
	Extensions *extension.Dispatcher
	Docs       *docs.Service
	Authority  authority.Oracle
	Roster     *registry.Roster
	Audit      *audit.Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// Service is the transfer-restriction engine.
type Service struct {
	mu sync.Mutex

	resolver   *resolver.Service
	oracle     *oracle.Service
	ledger     *ledger.Service
	custody    *custody.Coordinator
	extensions *extension.Dispatcher
	docs       *docs.Service
	authority  authority.Oracle
	roster     *registry.Roster
	audit      *audit.Publisher
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger

	globalLock bool
}

func NewService(d Deps) (*Service, error) {
	switch {
	case d.Resolver == nil:
		return nil, derrors.New(derrors.CodeValidation, "resolver is required")
	case d.Oracle == nil:
		return nil, derrors.New(derrors.CodeValidation, "eligibility oracle is required")
	case d.Ledger == nil:
		return nil, derrors.New(derrors.CodeValidation, "ledger is required")
	case d.Authority == nil:
		return nil, derrors.New(derrors.CodeValidation, "authority oracle is required")
	case d.Roster == nil:
		return nil, derrors.New(derrors.CodeValidation, "registrar roster is required")
	}
	s := &Service{
		resolver:   d.Resolver,
		oracle:     d.Oracle,
		ledger:     d.Ledger,
		custody:    d.Custody,
		extensions: d.Extensions,
		docs:       d.Docs,
		authority:  d.Authority,
		roster:     d.Roster,
		audit:      d.Audit,
		metrics:    d.Metrics,
		tracer:     otel.Tracer("veriledger/engine"),
		logger:     d.Logger,
	}
	if s.custody != nil {
		s.custody.SetOnChange(func(investor, custodian domain.InvestorID, added bool) {
			s.emit(context.Background(), audit.Event{
				Kind:   audit.KindCustodyChanged,
				From:   investor,
				To:     custodian,
				Detail: boolDetail(added, "edge added", "edge removed"),
			})
		})
	}
	return s, nil
}

// Transfer runs the full decision pipeline and, on approval, moves the
// balance. Approval is final: a transfer either fully applies or leaves no
// trace beyond refreshed resolution caches.
func (s *Service) Transfer(ctx context.Context, caller domain.InvestorID, token domain.TokenID, from, to domain.AccountAddr, amount uint64) error {
	ctx, span := s.tracer.Start(ctx, "engine.Transfer",
		trace.WithAttributes(attribute.String("token", token.String())))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.transfer(ctx, caller, token, from, to, amount, true)
	if err != nil {
		code := string(derrors.CodeOf(err))
		span.SetAttributes(attribute.String("outcome", "rejected"), attribute.String("code", code))
		s.metrics.RecordRejection(code)
		s.emit(ctx, audit.Event{
			Kind: audit.KindTransferRejected, Token: token, Caller: caller,
			Amount: amount, Code: code, Detail: err.Error(),
		})
		return err
	}
	span.SetAttributes(attribute.String("outcome", "approved"))
	s.metrics.RecordApproval()
	return nil
}

// CheckTransfer answers whether a transfer would be approved, without moving
// funds or persisting new bindings. It evaluates the identical rule chain on
// the identical evidence, so its answer matches an immediately following
// Transfer on unchanged state.
func (s *Service) CheckTransfer(ctx context.Context, caller domain.InvestorID, token domain.TokenID, from, to domain.AccountAddr, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfer(ctx, caller, token, from, to, amount, false)
}

func (s *Service) transfer(ctx context.Context, caller domain.InvestorID, token domain.TokenID, from, to domain.AccountAddr, amount uint64, apply bool) error {
	resolve := s.resolver.Peek
	if apply {
		resolve = s.resolver.Resolve
	}
	sender, err := resolve(ctx, from)
	if err != nil {
		return err
	}
	receiver, err := resolve(ctx, to)
	if err != nil {
		return err
	}

	elig, err := s.oracle.GetPair(ctx,
		oracle.Side{Account: from, Identity: sender.Identity, RegistrarKey: sender.RegistrarKey},
		oracle.Side{Account: to, Identity: receiver.Identity, RegistrarKey: receiver.RegistrarKey},
	)
	if err != nil {
		return err
	}

	tok, err := s.ledger.TokenView(ctx, token)
	if err != nil {
		return err
	}
	fromAcct, err := s.ledger.AccountView(ctx, sender.Identity)
	if err != nil {
		return err
	}
	toAcct, err := s.ledger.AccountView(ctx, receiver.Identity)
	if err != nil {
		return err
	}
	global, err := s.ledger.GlobalView(ctx)
	if err != nil {
		return err
	}
	country, err := s.ledger.CountryView(ctx, elig[1].Country)
	if err != nil {
		return err
	}

	req := authorizer.Request{
		Token:         tok,
		CallerIsOwner: s.authority.IsOwner(caller),
		GlobalLock:    s.globalLock,
		Sender: authorizer.PartyContext{
			Identity:       sender.Identity,
			Rating:         elig[0].Rating,
			Country:        elig[0].Country,
			Allowed:        elig[0].Allowed,
			Restricted:     fromAcct.Restricted,
			Balance:        fromAcct.Balance,
			CustodianCount: fromAcct.CustodianCount,
		},
		Receiver: authorizer.PartyContext{
			Identity:       receiver.Identity,
			Rating:         elig[1].Rating,
			Country:        elig[1].Country,
			Allowed:        elig[1].Allowed,
			Restricted:     toAcct.Restricted,
			Balance:        toAcct.Balance,
			CustodianCount: toAcct.CustodianCount,
		},
		Amount:          amount,
		Global:          global,
		ReceiverCountry: country,
	}
	if _, err := authorizer.Evaluate(req); err != nil {
		return err
	}

	ev := extension.Event{
		Kind:       extension.EventTransferCheck,
		Token:      token,
		Caller:     caller,
		Identities: [2]domain.InvestorID{sender.Identity, receiver.Identity},
		Ratings:    [2]domain.Rating{elig[0].Rating, elig[1].Rating},
		Countries:  [2]domain.CountryCode{elig[0].Country, elig[1].Country},
		Amount:     amount,
	}
	if s.extensions != nil {
		if err := s.extensions.PreCheck(ctx, ev); err != nil {
			return err
		}
	}
	if !apply {
		return nil
	}

	err = s.ledger.Transfer(ctx, ledger.TransferParams{
		Token:  token,
		From:   ledger.Party{Identity: sender.Identity, Rating: elig[0].Rating, Country: elig[0].Country},
		To:     ledger.Party{Identity: receiver.Identity, Rating: elig[1].Rating, Country: elig[1].Country},
		Amount: amount,
	})
	if err != nil {
		return err
	}

	// Refresh the per-identity registrar cache; failures here do not undo a
	// committed transfer.
	if err := s.ledger.BindRegistrar(ctx, sender.Identity, sender.RegistrarKey); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "registrar bind failed", "identity", sender.Identity.String(), "error", err)
	}
	if err := s.ledger.BindRegistrar(ctx, receiver.Identity, receiver.RegistrarKey); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "registrar bind failed", "identity", receiver.Identity.String(), "error", err)
	}

	ev.Kind = extension.EventTransferApplied
	if s.extensions != nil {
		s.extensions.Notify(ctx, ev)
	}
	s.emit(ctx, audit.Event{
		Kind: audit.KindTransferApproved, Token: token, Caller: caller,
		From: sender.Identity, To: receiver.Identity, Amount: amount,
	})
	return nil
}

// ModifyBalance sets an identity's balance directly (issuer mint/burn). It is
// authority-gated and bypasses the transfer rule chain; slot accounting still
// applies through the ledger.
func (s *Service) ModifyBalance(ctx context.Context, caller, holder domain.InvestorID, value uint64) error {
	if err := s.gate(ctx, caller, authority.ActionModifyBalance, "modify_balance"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.ledger.AccountView(ctx, holder)
	if err != nil {
		return err
	}
	country := domain.CountryCode(0)
	if acct.Rating.IsInvestor() {
		if country, err = s.roster.CountryOf(ctx, holder); err != nil {
			return err
		}
	}
	if err := s.ledger.SetBalance(ctx, holder, acct.Rating, country, value); err != nil {
		return err
	}
	if s.extensions != nil {
		s.extensions.Notify(ctx, extension.Event{
			Kind:       extension.EventBalanceChanged,
			Caller:     caller,
			Identities: [2]domain.InvestorID{holder},
			Amount:     value,
		})
	}
	s.emit(ctx, audit.Event{
		Kind: audit.KindBalanceModified, Caller: caller, To: holder, Amount: value,
	})
	return nil
}

// emit records an audit event, logging rather than failing on sink errors.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "kind", string(event.Kind), "error", err)
	}
}

func boolDetail(v bool, whenTrue, whenFalse string) string {
	if v {
		return whenTrue
	}
	return whenFalse
}
