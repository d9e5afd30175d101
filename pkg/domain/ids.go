// Package domain holds the typed identifiers shared across the ledger.
// Construct values via the Parse/Derive helpers at trust boundaries; direct
// casting bypasses validation.
package domain

import (
	"encoding/hex"
	"errors"
	"regexp"

	"golang.org/x/crypto/sha3"
)

// InvestorID is the stable identity of one legal investor, independent of
// which account currently controls funds. It is the lowercase hex encoding of
// a 32-byte hash.
//
// Invariants:
//   - exactly one InvestorID per real investor
//   - the zero value is "unset" and must never hold a balance
type InvestorID string

var investorIDPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// ErrInvalidInvestorID indicates the identity failed validation.
var ErrInvalidInvestorID = errors.New("invalid investor identity: must be 64 lowercase hex characters")

// ParseInvestorID validates external input into an InvestorID.
func ParseInvestorID(s string) (InvestorID, error) {
	if !investorIDPattern.MatchString(s) {
		return "", ErrInvalidInvestorID
	}
	return InvestorID(s), nil
}

// DeriveInvestorID produces a deterministic identity from an opaque seed.
// Registrars use this to mint stable identities for the accounts they vouch for.
func DeriveInvestorID(seed []byte) InvestorID {
	sum := sha3.Sum256(seed)
	return InvestorID(hex.EncodeToString(sum[:]))
}

func (id InvestorID) String() string { return string(id) }

// IsZero reports whether the identity is the invalid unset value.
func (id InvestorID) IsZero() bool { return id == "" }

// AccountAddr references an external account that controls funds. The engine
// never treats an address as an identity; resolution goes through a registrar.
type AccountAddr string

func (a AccountAddr) String() string { return string(a) }

func (a AccountAddr) IsZero() bool { return a == "" }

// CountryCode is an ISO 3166-1 numeric jurisdiction code. Zero means
// "no jurisdiction" and is reserved for the owner and custodians.
type CountryCode uint16

// Rating is the investor classification tier used for per-class caps.
// Zero means "not an investor": the issuer or a custodian.
type Rating uint8

// RatingClasses is the number of rating tiers the protocol supports.
// Count and limit arrays carry one extra slot at index 0 for the aggregate.
const RatingClasses = 8

// Valid reports whether the rating fits the protocol's class enumeration.
func (r Rating) Valid() bool { return r <= RatingClasses }

// IsInvestor reports whether the rating denotes a capped investor class.
func (r Rating) IsInvestor() bool { return r >= 1 && r <= RatingClasses }

// TokenID identifies a token contract serviced by the ledger.
type TokenID string

func (t TokenID) String() string { return string(t) }

// DocumentID addresses an entry in the write-once document-hash table.
type DocumentID string

func (d DocumentID) String() string { return string(d) }

// RegistrarKey indexes the ordered registrar attachment list. Key zero is
// reserved for "unset/owner" and never refers to an attached registrar.
type RegistrarKey uint8

// IsOwner reports whether the key denotes the reserved owner side.
func (k RegistrarKey) IsOwner() bool { return k == 0 }
