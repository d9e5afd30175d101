// Package authorizer holds the transfer-eligibility decision procedure.
// This is pure domain logic - no I/O, no side effects. The function receives
// all evidence as arguments and returns a decision, which keeps the rules
// centralized and testable.
package authorizer

import (
	"veriledger/internal/ledger"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// PartyContext is one side of an attempted transfer: resolved identity plus
// registrar evidence plus the stored ledger facts the rules consult.
type PartyContext struct {
	Identity       domain.InvestorID
	Rating         domain.Rating
	Country        domain.CountryCode
	Allowed        bool
	Restricted     bool
	Balance        uint64
	CustodianCount uint16
}

// Request carries everything one decision needs.
type Request struct {
	Token           *ledger.Token
	CallerIsOwner   bool
	GlobalLock      bool
	Sender          PartyContext
	Receiver        PartyContext
	Amount          uint64
	Global          *ledger.CountsRow
	ReceiverCountry *ledger.Country
}

// Decision reports the approval outcome details.
type Decision struct {
	// NewSlot is true when the transfer would newly populate an investor
	// slot for the receiver.
	NewSlot bool
}

// Evaluate applies the transfer rule chain. A nil error means approval;
// approval is final and unconditional, with no partial application.
//
// Rule priority (fail-fast):
//  1. Token registration
//  2. Sender-side gates, bypassed entirely for issuer-initiated transfers
//  3. Receiver-side gates, never bypassed
//  4. Self-transfer short-circuit
//  5. Owner/custodian receiver short-circuit
//  6. Jurisdiction policy
//  7. Slot capacity, only when the receiver slot would be newly populated
func Evaluate(req Request) (Decision, error) {
	// Rule 1: the token must be registered with this ledger.
	if req.Token == nil || !req.Token.Set {
		return Decision{}, derrors.New(derrors.CodeUnknownToken, "token is not registered")
	}

	// Rule 2: sender-side gates. The owner identity bypasses all four -
	// issuer-initiated transfers are never self-blocked.
	if !req.CallerIsOwner {
		if req.GlobalLock {
			return Decision{}, derrors.New(derrors.CodeEntityLocked, "transfers are globally locked")
		}
		if req.Token.Restricted {
			return Decision{}, derrors.New(derrors.CodeTokenRestricted, "token is restricted")
		}
		if req.Sender.Restricted {
			return Decision{}, derrors.New(derrors.CodeSenderRestricted, "sender is restricted by the issuer")
		}
		if !req.Sender.Allowed {
			return Decision{}, derrors.New(derrors.CodeSenderRestricted, "registrar reports sender ineligible")
		}
	}

	// Rule 3: receiver-side gates hold regardless of caller.
	if req.Receiver.Restricted {
		return Decision{}, derrors.New(derrors.CodeReceiverRestricted, "receiver is restricted by the issuer")
	}
	if !req.Receiver.Allowed {
		return Decision{}, derrors.New(derrors.CodeReceiverRestricted, "registrar reports receiver ineligible")
	}

	// Rule 4: self-transfers (custodian-internal movement) need no further
	// checks.
	if req.Sender.Identity == req.Receiver.Identity {
		return Decision{}, nil
	}

	// Rule 5: the owner and custodians are exempt from slot capacity.
	if req.Receiver.Rating == 0 {
		return Decision{}, nil
	}

	// Rule 6: jurisdiction policy.
	if req.ReceiverCountry == nil || !req.ReceiverCountry.Allowed {
		return Decision{}, derrors.New(derrors.CodeJurisdictionBlocked, "receiver jurisdiction is not allowed")
	}
	if req.Receiver.Rating < req.ReceiverCountry.MinRating {
		return Decision{}, derrors.Newf(derrors.CodeRatingTooLow,
			"receiver rating %d below jurisdiction minimum %d",
			req.Receiver.Rating, req.ReceiverCountry.MinRating)
	}

	// Rule 7: slot capacity, evaluated only when this transfer would newly
	// populate a slot for the receiver.
	if req.Receiver.Balance != 0 || req.Receiver.CustodianCount != 0 {
		return Decision{}, nil
	}
	if err := checkCapacity(req); err != nil {
		return Decision{}, err
	}
	return Decision{NewSlot: true}, nil
}

// checkCapacity is the asymmetric slot-accounting cascade. The exact case
// table is deliberate: transfers that merely move an already-counted slot
// between matching identities are not double-charged, while any transfer
// that would grow the population of a counted bucket is.
//
// freesSenderSlot is true exactly when the transfer does NOT vacate the
// sender's slot: the sender is the owner or a custodian, or keeps a nonzero
// balance after the debit.
func checkCapacity(req Request) error {
	freesSenderSlot := req.Sender.Rating == 0 || req.Sender.Balance > req.Amount
	differentCountry := req.Sender.Country != req.Receiver.Country
	rating := int(req.Receiver.Rating)

	if freesSenderSlot && !req.Global.HasHeadroom(0) {
		return derrors.New(derrors.CodeSlotLimit, "global investor limit reached")
	}
	if (freesSenderSlot || differentCountry) && !req.ReceiverCountry.HasHeadroom(0) {
		return derrors.New(derrors.CodeSlotLimit, "jurisdiction investor limit reached")
	}
	ratingCheck := freesSenderSlot || req.Sender.Rating != req.Receiver.Rating
	if ratingCheck && !req.Global.HasHeadroom(rating) {
		return derrors.New(derrors.CodeSlotLimit, "global rating-class limit reached")
	}
	if (ratingCheck || differentCountry) && !req.ReceiverCountry.HasHeadroom(rating) {
		return derrors.New(derrors.CodeSlotLimit, "jurisdiction rating-class limit reached")
	}
	return nil
}
