package engine

import (
	"context"
	"strconv"

	"veriledger/internal/audit"
	"veriledger/internal/authority"
	"veriledger/internal/custody"
	"veriledger/internal/docs"
	"veriledger/internal/extension"
	"veriledger/internal/registry"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// CountryRule is one jurisdiction policy entry for bulk installation.
type CountryRule struct {
	Code      domain.CountryCode
	Allowed   bool
	MinRating domain.Rating
	Limits    [domain.RatingClasses + 1]uint64
}

// gate checks authority for an administrative action. An unauthorized call is
// a benign no-op failure: state is untouched and co-authorities may still
// approve the same action later.
func (s *Service) gate(ctx context.Context, caller domain.InvestorID, action authority.Action, name string) error {
	if !s.authority.Authorized(ctx, caller, action) {
		if s.metrics != nil {
			s.metrics.AdminOps.WithLabelValues(name, "unauthorized").Inc()
		}
		return derrors.Newf(derrors.CodeUnauthorized, "caller is not authorized for %s", name)
	}
	return nil
}

// admin wraps a gated administrative mutation with metrics and audit.
func (s *Service) admin(ctx context.Context, caller domain.InvestorID, action authority.Action, name, detail string, fn func(context.Context) error) error {
	if err := s.gate(ctx, caller, action, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(ctx); err != nil {
		if s.metrics != nil {
			s.metrics.AdminOps.WithLabelValues(name, "error").Inc()
		}
		return err
	}
	if s.metrics != nil {
		s.metrics.AdminOps.WithLabelValues(name, "ok").Inc()
	}
	s.emit(ctx, audit.Event{Kind: audit.KindAdminAction, Caller: caller, Action: name, Detail: detail})
	return nil
}

// SetCountry installs jurisdiction policy for one country.
func (s *Service) SetCountry(ctx context.Context, caller domain.InvestorID, rule CountryRule) error {
	return s.admin(ctx, caller, authority.ActionSetCountry, "set_country", countryDetail(rule.Code), func(ctx context.Context) error {
		return s.ledger.SetCountryRules(ctx, rule.Code, rule.Allowed, rule.MinRating, rule.Limits)
	})
}

// SetCountries installs jurisdiction policy in bulk, stopping at the first
// failure.
func (s *Service) SetCountries(ctx context.Context, caller domain.InvestorID, rules []CountryRule) error {
	return s.admin(ctx, caller, authority.ActionSetCountry, "set_countries", "", func(ctx context.Context) error {
		for _, rule := range rules {
			if err := s.ledger.SetCountryRules(ctx, rule.Code, rule.Allowed, rule.MinRating, rule.Limits); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetInvestorLimits installs the global per-class investor limits.
func (s *Service) SetInvestorLimits(ctx context.Context, caller domain.InvestorID, limits [domain.RatingClasses + 1]uint64) error {
	return s.admin(ctx, caller, authority.ActionSetLimits, "set_investor_limits", "", func(ctx context.Context) error {
		return s.ledger.SetGlobalLimits(ctx, limits)
	})
}

// SetDocument records a write-once document hash.
func (s *Service) SetDocument(ctx context.Context, caller domain.InvestorID, id domain.DocumentID, uri string, hash [32]byte) error {
	if s.docs == nil {
		return derrors.New(derrors.CodeInternal, "document registry is not configured")
	}
	return s.admin(ctx, caller, authority.ActionSetDocument, "set_document", id.String(), func(ctx context.Context) error {
		return s.docs.Set(ctx, id, uri, hash)
	})
}

// GetDocument reads a recorded document. Not gated: the registry is public.
func (s *Service) GetDocument(ctx context.Context, id domain.DocumentID) (*docs.Document, error) {
	if s.docs == nil {
		return nil, derrors.New(derrors.CodeInternal, "document registry is not configured")
	}
	return s.docs.Get(ctx, id)
}

// ListDocuments lists all recorded documents.
func (s *Service) ListDocuments(ctx context.Context) ([]docs.Document, error) {
	if s.docs == nil {
		return nil, derrors.New(derrors.CodeInternal, "document registry is not configured")
	}
	return s.docs.List(ctx)
}

// AttachRegistrar adds a registrar to the roster and returns its key.
func (s *Service) AttachRegistrar(ctx context.Context, caller domain.InvestorID, handle string, client registry.Client) (domain.RegistrarKey, error) {
	var key domain.RegistrarKey
	err := s.admin(ctx, caller, authority.ActionManageRegistrars, "attach_registrar", handle, func(context.Context) error {
		var err error
		key, err = s.roster.Attach(handle, client)
		return err
	})
	return key, err
}

// DetachRegistrar clears a registrar slot.
func (s *Service) DetachRegistrar(ctx context.Context, caller domain.InvestorID, key domain.RegistrarKey) error {
	return s.admin(ctx, caller, authority.ActionManageRegistrars, "detach_registrar", "", func(context.Context) error {
		return s.roster.Detach(key)
	})
}

// RestrictRegistrar toggles the restricted flag on a registrar.
func (s *Service) RestrictRegistrar(ctx context.Context, caller domain.InvestorID, key domain.RegistrarKey, restricted bool) error {
	return s.admin(ctx, caller, authority.ActionManageRegistrars, "restrict_registrar", "", func(context.Context) error {
		return s.roster.Restrict(key, restricted)
	})
}

// RegisterCustodian registers a custodian and binds its account to its
// identity with registrar key zero, so resolution never consults a registrar
// for it.
func (s *Service) RegisterCustodian(ctx context.Context, caller domain.InvestorID, account domain.AccountAddr, identity domain.InvestorID, handle string, collab custody.Collaborator) error {
	if s.custody == nil {
		return derrors.New(derrors.CodeInternal, "custody coordinator is not configured")
	}
	if s.custody.Engaged() {
		return derrors.New(derrors.CodeReentrancy, "custody operation already in flight")
	}
	return s.admin(ctx, caller, authority.ActionManageCustodians, "register_custodian", handle, func(ctx context.Context) error {
		if err := s.custody.Register(identity, handle, collab); err != nil {
			return err
		}
		return s.resolver.Bind(ctx, account, identity)
	})
}

// RegisterToken marks a token as serviced by this ledger.
func (s *Service) RegisterToken(ctx context.Context, caller domain.InvestorID, token domain.TokenID) error {
	return s.admin(ctx, caller, authority.ActionManageTokens, "register_token", token.String(), func(ctx context.Context) error {
		return s.ledger.RegisterToken(ctx, token)
	})
}

// RestrictToken freezes or unfreezes a registered token.
func (s *Service) RestrictToken(ctx context.Context, caller domain.InvestorID, token domain.TokenID, restricted bool) error {
	return s.admin(ctx, caller, authority.ActionManageTokens, "restrict_token", token.String(), func(ctx context.Context) error {
		return s.ledger.SetTokenRestricted(ctx, token, restricted)
	})
}

// RestrictInvestor flips the issuer-level block flag on an identity.
func (s *Service) RestrictInvestor(ctx context.Context, caller, identity domain.InvestorID, restricted bool) error {
	return s.admin(ctx, caller, authority.ActionRestrict, "restrict_investor", identity.String(), func(ctx context.Context) error {
		return s.ledger.SetInvestorRestricted(ctx, identity, restricted)
	})
}

// SetGlobalLock halts or resumes all non-issuer transfers.
func (s *Service) SetGlobalLock(ctx context.Context, caller domain.InvestorID, locked bool) error {
	return s.admin(ctx, caller, authority.ActionLock, "set_global_lock", boolDetail(locked, "locked", "unlocked"), func(context.Context) error {
		s.globalLock = locked
		return nil
	})
}

// AttachModule attaches an extension hook to a token or, with the empty
// target, to the whole ledger.
func (s *Service) AttachModule(ctx context.Context, caller domain.InvestorID, target domain.TokenID, hook extension.Hook) error {
	if s.extensions == nil {
		return derrors.New(derrors.CodeInternal, "extension dispatcher is not configured")
	}
	return s.admin(ctx, caller, authority.ActionManageModules, "attach_module", hook.ID(), func(context.Context) error {
		return s.extensions.Attach(target, hook)
	})
}

// DetachModule removes an extension hook. A module may detach itself; any
// other caller needs module-management authority.
func (s *Service) DetachModule(ctx context.Context, caller domain.InvestorID, target domain.TokenID, hookID string) error {
	if s.extensions == nil {
		return derrors.New(derrors.CodeInternal, "extension dispatcher is not configured")
	}
	if caller.String() == hookID {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.extensions.Detach(target, hookID)
	}
	return s.admin(ctx, caller, authority.ActionManageModules, "detach_module", hookID, func(context.Context) error {
		return s.extensions.Detach(target, hookID)
	})
}

// UpdateBeneficialOwners toggles beneficial-ownership edges for a custodian.
// Authorization is decided by the custody coordinator: the custodian itself
// or a caller holding beneficial-owner authority.
func (s *Service) UpdateBeneficialOwners(ctx context.Context, caller, custodian domain.InvestorID, owners []domain.InvestorID, add bool) error {
	if s.custody == nil {
		return derrors.New(derrors.CodeInternal, "custody coordinator is not configured")
	}
	// A collaborator answering a custody notification may call back in here
	// while the outer transfer still holds the engine mutex. The in-flight
	// check runs before the lock so the callback fails fast instead of
	// deadlocking.
	if s.custody.Engaged() {
		return derrors.New(derrors.CodeReentrancy, "custody operation already in flight")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.custody.UpdateBeneficialOwners(ctx, caller, custodian, owners, add)
}

// AuditTrail returns the recorded audit events.
func (s *Service) AuditTrail(ctx context.Context) ([]audit.Event, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.List(ctx)
}

func countryDetail(code domain.CountryCode) string {
	return "country " + strconv.Itoa(int(code))
}
