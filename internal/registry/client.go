// Package registry defines the ports to external identity registrars and the
// ordered roster of registrars attached to the ledger. Registrars are the sole
// source of truth for identity, eligibility, rating, and jurisdiction; the
// engine only caches which registrar vouches for an account.
package registry

import (
	"context"

	"veriledger/pkg/domain"
)

// InvestorRecord is one registrar's answer for an account.
type InvestorRecord struct {
	Identity domain.InvestorID
	Allowed  bool
	Rating   domain.Rating
	Country  domain.CountryCode
}

// Client queries a single external identity registrar. Errors are hard
// failures of the enclosing operation; the engine never retries.
type Client interface {
	// GetIdentity returns the identity vouched for the account, or the zero
	// identity when the registrar does not recognize it.
	GetIdentity(ctx context.Context, account domain.AccountAddr) (domain.InvestorID, error)

	// GetInvestor returns the full eligibility record for the account.
	GetInvestor(ctx context.Context, account domain.AccountAddr) (InvestorRecord, error)

	// GetInvestorPair returns eligibility records for two accounts in one
	// round trip. Semantically equivalent to two GetInvestor calls.
	GetInvestorPair(ctx context.Context, a, b domain.AccountAddr) ([2]InvestorRecord, error)

	// GetCountryOf returns the jurisdiction of a known identity.
	GetCountryOf(ctx context.Context, identity domain.InvestorID) (domain.CountryCode, error)
}
