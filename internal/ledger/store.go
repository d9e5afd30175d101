package ledger

import (
	"context"

	"veriledger/pkg/domain"
)

// Store persists ledger rows. Implementations return pkg/platform/sentinel
// errors for infrastructure facts; the service translates them into coded
// domain errors. Implementations must hand out copies: the service mutates
// the returned rows before saving them back.
type Store interface {
	Account(ctx context.Context, identity domain.InvestorID) (*Account, error)
	SaveAccount(ctx context.Context, account *Account) error

	Country(ctx context.Context, code domain.CountryCode) (*Country, error)
	SaveCountry(ctx context.Context, country *Country) error

	Global(ctx context.Context) (*CountsRow, error)
	SaveGlobal(ctx context.Context, row *CountsRow) error

	// SaveBatch persists a set of rows atomically: either every row lands or
	// none does. Transfers stage both legs and commit through this method so
	// no partial credit/debit state can survive a storage fault.
	SaveBatch(ctx context.Context, accounts []*Account, countries []*Country, global *CountsRow) error

	Token(ctx context.Context, id domain.TokenID) (*Token, error)
	SaveToken(ctx context.Context, token *Token) error
}
