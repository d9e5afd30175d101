// Package ledger owns per-investor balances and the per-jurisdiction and
// per-rating investor-slot counts, together with the invariants relating
// them. All mutation goes through Service; no other component writes
// balances or counts.
package ledger

import (
	"veriledger/pkg/domain"
)

// Account is the per-identity ledger row. Accounts are created lazily on
// first resolution or first balance mutation and never deleted: zero-balance
// rows persist to retain rating and restriction history.
type Account struct {
	Identity       domain.InvestorID
	Balance        uint64
	Rating         domain.Rating
	RegistrarKey   domain.RegistrarKey
	CustodianCount uint16
	Restricted     bool
	// Custodians holds the identities currently reporting this investor as
	// a beneficial owner.
	Custodians map[domain.InvestorID]struct{}
}

// Occupied reports whether the account holds an investor slot. Custodial
// beneficial ownership alone keeps a slot open at zero direct balance.
func (a *Account) Occupied() bool {
	return a.Balance > 0 || a.CustodianCount > 0
}

// HasCustodian reports whether the custodian currently holds for this account.
func (a *Account) HasCustodian(custodian domain.InvestorID) bool {
	_, ok := a.Custodians[custodian]
	return ok
}

// CountsRow pairs slot counts with their limits. Index 0 is the aggregate of
// all ratings; indices 1..RatingClasses are per-rating. A limit of zero means
// unlimited.
//
// Invariant: Counts[0] == sum(Counts[1..RatingClasses]) after every operation.
type CountsRow struct {
	Counts [domain.RatingClasses + 1]uint64
	Limits [domain.RatingClasses + 1]uint64
}

// HasHeadroom reports whether one more slot fits in the given bucket.
func (c *CountsRow) HasHeadroom(idx int) bool {
	return c.Limits[idx] == 0 || c.Counts[idx] < c.Limits[idx]
}

// Country is the per-jurisdiction rule and count row.
type Country struct {
	Code      domain.CountryCode
	Allowed   bool
	MinRating domain.Rating
	CountsRow
}

// Token is one token contract serviced by this ledger.
type Token struct {
	ID         domain.TokenID
	Set        bool
	Restricted bool
}
