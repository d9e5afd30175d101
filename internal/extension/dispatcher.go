// Package extension invokes attached extension modules around ledger
// mutations. Hooks are a closed tagged-variant interface dispatched in
// attachment order; module internals are opaque to the engine.
package extension

import (
	"context"
	"log/slog"
	"sync"

	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// EventKind distinguishes the ledger mutations hooks observe.
type EventKind string

const (
	// EventTransferCheck fires before a transfer commits; a hook error
	// rejects the transfer.
	EventTransferCheck EventKind = "transfer_check"
	// EventTransferApplied fires after a transfer committed.
	EventTransferApplied EventKind = "transfer_applied"
	// EventBalanceChanged fires after a direct mint/burn committed.
	EventBalanceChanged EventKind = "balance_changed"
)

// Event is the fixed-shape payload delivered to every hook.
type Event struct {
	Kind       EventKind
	Token      domain.TokenID
	Caller     domain.InvestorID
	Identities [2]domain.InvestorID
	Ratings    [2]domain.Rating
	Countries  [2]domain.CountryCode
	Amount     uint64
}

// Hook is one attached extension module handle.
type Hook interface {
	ID() string
	OnLedgerEvent(ctx context.Context, ev Event) error
}

// LedgerTarget attaches a hook to every token the ledger services.
const LedgerTarget = domain.TokenID("")

// Dispatcher maintains the ordered hook sets per target and fans events out.
// A hook failure during a pre-commit check blocks the transfer; a failure
// during a post-commit notification is logged and never rolls back committed
// ledger state.
type Dispatcher struct {
	mu     sync.RWMutex
	hooks  map[domain.TokenID][]Hook
	logger *slog.Logger
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{hooks: make(map[domain.TokenID][]Hook), logger: logger}
}

// Attach appends a hook for the target in attachment order.
func (d *Dispatcher) Attach(target domain.TokenID, hook Hook) error {
	if hook == nil || hook.ID() == "" {
		return derrors.New(derrors.CodeValidation, "hook with a nonempty ID is required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.hooks[target] {
		if existing.ID() == hook.ID() {
			return derrors.Newf(derrors.CodeConflict, "hook %q already attached", hook.ID())
		}
	}
	d.hooks[target] = append(d.hooks[target], hook)
	return nil
}

// Detach removes a hook from the target.
func (d *Dispatcher) Detach(target domain.TokenID, hookID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	hooks := d.hooks[target]
	for i, existing := range hooks {
		if existing.ID() == hookID {
			d.hooks[target] = append(hooks[:i:i], hooks[i+1:]...)
			return nil
		}
	}
	return derrors.Newf(derrors.CodeNotFound, "hook %q not attached", hookID)
}

// Attached reports whether the hook is currently attached to the target.
func (d *Dispatcher) Attached(target domain.TokenID, hookID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, existing := range d.hooks[target] {
		if existing.ID() == hookID {
			return true
		}
	}
	return false
}

// PreCheck runs the pre-commit gate. The first hook error rejects the
// transfer.
func (d *Dispatcher) PreCheck(ctx context.Context, ev Event) error {
	for _, hook := range d.ordered(ev.Token) {
		if err := hook.OnLedgerEvent(ctx, ev); err != nil {
			return derrors.Wrap(err, derrors.CodeValidation, "extension module rejected transfer")
		}
	}
	return nil
}

// Notify delivers a post-commit event best-effort.
func (d *Dispatcher) Notify(ctx context.Context, ev Event) {
	for _, hook := range d.ordered(ev.Token) {
		if err := hook.OnLedgerEvent(ctx, ev); err != nil && d.logger != nil {
			d.logger.WarnContext(ctx, "extension notification failed",
				"hook", hook.ID(), "kind", string(ev.Kind), "error", err)
		}
	}
}

// ordered returns ledger-wide hooks followed by token-scoped hooks, each in
// attachment order.
func (d *Dispatcher) ordered(token domain.TokenID) []Hook {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Hook, 0, len(d.hooks[LedgerTarget])+len(d.hooks[token]))
	out = append(out, d.hooks[LedgerTarget]...)
	if token != LedgerTarget {
		out = append(out, d.hooks[token]...)
	}
	return out
}
