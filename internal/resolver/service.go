// Package resolver maps external account addresses to verified investor
// identities. Resolution is registrar-driven: the cache only remembers which
// registrar last vouched for an account, and every cached answer is
// re-validated against that registrar before use.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"veriledger/internal/authority"
	"veriledger/internal/registry"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
	"veriledger/pkg/platform/sentinel"
)

// Resolution is a successful account lookup.
type Resolution struct {
	Identity     domain.InvestorID
	RegistrarKey domain.RegistrarKey
}

// Service resolves accounts against the registrar roster. Resolve persists
// fresh bindings; Peek answers the identical question without writing, so
// that a dry-run eligibility check agrees with the transfer that follows it.
type Service struct {
	roster    *registry.Roster
	bindings  BindingStore
	directory authority.Directory
	logger    *slog.Logger
}

func NewService(roster *registry.Roster, bindings BindingStore, directory authority.Directory, logger *slog.Logger) (*Service, error) {
	if roster == nil {
		return nil, derrors.New(derrors.CodeValidation, "registrar roster is required")
	}
	if bindings == nil {
		return nil, derrors.New(derrors.CodeValidation, "binding store is required")
	}
	if directory == nil {
		return nil, derrors.New(derrors.CodeValidation, "authority directory is required")
	}
	return &Service{roster: roster, bindings: bindings, directory: directory, logger: logger}, nil
}

// Resolve maps an account to its identity, caching the registrar that
// vouched for it.
func (s *Service) Resolve(ctx context.Context, account domain.AccountAddr) (Resolution, error) {
	return s.resolve(ctx, account, true)
}

// Peek maps an account to its identity without persisting anything. It is
// bit-for-bit equivalent to Resolve on the same state.
func (s *Service) Peek(ctx context.Context, account domain.AccountAddr) (Resolution, error) {
	return s.resolve(ctx, account, false)
}

// Bind installs an explicit account binding with registrar key zero. The
// engine uses this for owner and custodian accounts, which no registrar
// vouches for.
func (s *Service) Bind(ctx context.Context, account domain.AccountAddr, identity domain.InvestorID) error {
	if account.IsZero() || identity.IsZero() {
		return derrors.New(derrors.CodeValidation, "account and identity are required")
	}
	if err := s.bindings.Put(ctx, account, Binding{Identity: identity}); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "persist binding")
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, account domain.AccountAddr, persist bool) (Resolution, error) {
	if account.IsZero() {
		return Resolution{}, derrors.New(derrors.CodeValidation, "account address is required")
	}
	// The owning entity's accounts never touch a registrar.
	if s.directory.IsOwnerAccount(account) {
		return Resolution{Identity: s.directory.OwnerIdentity()}, nil
	}

	cached, err := s.bindings.Get(ctx, account)
	switch {
	case err == nil:
		return s.fromBinding(ctx, account, cached, persist)
	case errors.Is(err, sentinel.ErrNotFound):
		return s.scan(ctx, account, "", derrors.CodeNotRegistered, persist)
	default:
		return Resolution{}, derrors.Wrap(err, derrors.CodeInternal, "read binding cache")
	}
}

// fromBinding re-validates a cached binding. Key zero is an explicit owner or
// custodian binding and is trusted as-is. Otherwise the vouching registrar is
// asked again; if it has been detached, restricted, no longer recognizes the
// account, or now names a different identity, the roster is re-scanned, and
// the answering registrar must vouch for the SAME identity the account had
// before.
func (s *Service) fromBinding(ctx context.Context, account domain.AccountAddr, cached Binding, persist bool) (Resolution, error) {
	if cached.RegistrarKey.IsOwner() {
		return Resolution{Identity: cached.Identity}, nil
	}

	reg, ok := s.roster.Get(cached.RegistrarKey)
	if !ok || reg.Restricted {
		return s.scan(ctx, account, cached.Identity, derrors.CodeRegistrarRestricted, persist)
	}
	identity, err := reg.Client.GetIdentity(ctx, account)
	if err != nil {
		return Resolution{}, derrors.Wrap(err, derrors.CodeInternal, "registrar identity lookup failed")
	}
	if identity.IsZero() {
		// Stale binding: the registrar dropped the account.
		return s.scan(ctx, account, cached.Identity, derrors.CodeNotRegistered, persist)
	}
	if identity != cached.Identity {
		// The registrar now vouches for somebody else under this account. The
		// balance row belongs to the cached identity, so the answer stays
		// pinned to it; another registrar may still vouch for the original.
		return s.scan(ctx, account, cached.Identity, derrors.CodeRegistrarRestricted, persist)
	}
	return Resolution{Identity: identity, RegistrarKey: cached.RegistrarKey}, nil
}

// scan asks every active registrar in attachment order. requireIdentity, when
// nonzero, pins the answer: an account must not change identity by switching
// registrars.
func (s *Service) scan(ctx context.Context, account domain.AccountAddr, requireIdentity domain.InvestorID, failCode derrors.Code, persist bool) (Resolution, error) {
	for _, reg := range s.roster.Active() {
		identity, err := reg.Client.GetIdentity(ctx, account)
		if err != nil {
			return Resolution{}, derrors.Wrap(err, derrors.CodeInternal, "registrar identity lookup failed")
		}
		if identity.IsZero() {
			continue
		}
		if !requireIdentity.IsZero() && identity != requireIdentity {
			return Resolution{}, derrors.New(derrors.CodeRegistrarRestricted,
				"account re-resolved to a different identity")
		}
		if persist {
			if err := s.bindings.Put(ctx, account, Binding{Identity: identity, RegistrarKey: reg.Key}); err != nil {
				return Resolution{}, derrors.Wrap(err, derrors.CodeInternal, "persist binding")
			}
			if s.logger != nil {
				s.logger.DebugContext(ctx, "account bound",
					"account", account.String(), "registrar", reg.Handle)
			}
		}
		return Resolution{Identity: identity, RegistrarKey: reg.Key}, nil
	}
	return Resolution{}, derrors.New(failCode, "no active registrar vouches for the account")
}
