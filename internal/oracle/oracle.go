// Package oracle answers the eligibility question for a transfer pair:
// may each side transact, and at what rating and jurisdiction. Registrars are
// authoritative; the answer is fetched fresh per decision and never cached.
package oracle

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"veriledger/internal/platform/metrics"
	"veriledger/internal/registry"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// Side identifies one resolved party of a transfer.
type Side struct {
	Account      domain.AccountAddr
	Identity     domain.InvestorID
	RegistrarKey domain.RegistrarKey
}

// Eligibility is one side's verdict. For registrar key zero (the owner or a
// custodian) the side is always allowed, rated zero, with no jurisdiction.
type Eligibility struct {
	Allowed bool
	Rating  domain.Rating
	Country domain.CountryCode
}

type Service struct {
	roster  *registry.Roster
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(roster *registry.Roster, m *metrics.Metrics, logger *slog.Logger) (*Service, error) {
	if roster == nil {
		return nil, derrors.New(derrors.CodeValidation, "registrar roster is required")
	}
	return &Service{roster: roster, metrics: m, logger: logger}, nil
}

// GetPair fetches both sides' eligibility. Sides vouched by the same
// registrar share one round trip; sides on different registrars are fetched
// concurrently. A registrar error fails the whole decision; there is no
// retry and no partial answer.
func (s *Service) GetPair(ctx context.Context, a, b Side) ([2]Eligibility, error) {
	var out [2]Eligibility

	if a.RegistrarKey == b.RegistrarKey && !a.RegistrarKey.IsOwner() {
		reg, err := s.registrar(a.RegistrarKey)
		if err != nil {
			return out, err
		}
		start := time.Now()
		records, err := reg.Client.GetInvestorPair(ctx, a.Account, b.Account)
		s.metrics.ObserveRegistrarLookup("investor_pair", time.Since(start))
		if err != nil {
			return out, derrors.Wrap(err, derrors.CodeInternal, "registrar pair lookup failed")
		}
		if records[0].Identity != a.Identity || records[1].Identity != b.Identity {
			return out, derrors.New(derrors.CodeNotRegistered,
				"registrar no longer vouches for the resolved identity")
		}
		for i, record := range records {
			if out[i], err = toEligibility(record); err != nil {
				return [2]Eligibility{}, err
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, side := range [2]Side{a, b} {
		g.Go(func() error {
			e, err := s.one(gctx, side)
			if err != nil {
				return err
			}
			out[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

func (s *Service) one(ctx context.Context, side Side) (Eligibility, error) {
	// Owner and custodian sides bypass registrars entirely.
	if side.RegistrarKey.IsOwner() {
		return Eligibility{Allowed: true}, nil
	}
	reg, err := s.registrar(side.RegistrarKey)
	if err != nil {
		return Eligibility{}, err
	}
	start := time.Now()
	record, err := reg.Client.GetInvestor(ctx, side.Account)
	s.metrics.ObserveRegistrarLookup("investor", time.Since(start))
	if err != nil {
		return Eligibility{}, derrors.Wrap(err, derrors.CodeInternal, "registrar eligibility lookup failed")
	}
	if record.Identity.IsZero() || record.Identity != side.Identity {
		return Eligibility{}, derrors.New(derrors.CodeNotRegistered,
			"registrar no longer vouches for the resolved identity")
	}
	return toEligibility(record)
}

func (s *Service) registrar(key domain.RegistrarKey) (registry.Registrar, error) {
	reg, ok := s.roster.Get(key)
	if !ok {
		return registry.Registrar{}, derrors.New(derrors.CodeRegistrarRestricted, "registrar is not attached")
	}
	if reg.Restricted {
		return registry.Registrar{}, derrors.New(derrors.CodeRegistrarRestricted, "registrar is restricted")
	}
	return reg, nil
}

// toEligibility refuses ratings outside the known classes: slot accounting
// indexes count arrays by rating, so an out-of-range value must never pass
// this boundary.
func toEligibility(r registry.InvestorRecord) (Eligibility, error) {
	if !r.Rating.Valid() {
		return Eligibility{}, derrors.Newf(derrors.CodeInternal,
			"registrar reported out-of-range rating %d", r.Rating)
	}
	return Eligibility{Allowed: r.Allowed, Rating: r.Rating, Country: r.Country}, nil
}
