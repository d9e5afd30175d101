package resolver

import (
	"context"

	"veriledger/pkg/domain"
)

// Binding is the cached resolution for one account: which identity it maps to
// and which registrar vouched for it. Key zero marks owner and custodian
// bindings, which never expire against a registrar.
type Binding struct {
	Identity     domain.InvestorID
	RegistrarKey domain.RegistrarKey
}

// BindingStore caches account-to-identity bindings. Get returns
// sentinel.ErrNotFound for an unknown account.
type BindingStore interface {
	Get(ctx context.Context, account domain.AccountAddr) (Binding, error)
	Put(ctx context.Context, account domain.AccountAddr, b Binding) error
	Delete(ctx context.Context, account domain.AccountAddr) error
}
