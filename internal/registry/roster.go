package registry

import (
	"context"
	"sync"

	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// Registrar is one attached registry with its external handle.
type Registrar struct {
	Key        domain.RegistrarKey
	Handle     string
	Client     Client
	Restricted bool
}

// Roster is the ordered registrar attachment list. Index 0 is reserved for
// "unset/owner" and never holds a client. Detaching clears the slot rather
// than compacting so cached registrar keys stay stable.
type Roster struct {
	mu      sync.RWMutex
	entries []Registrar
}

const maxRegistrars = 255

func NewRoster() *Roster {
	return &Roster{entries: []Registrar{{}}}
}

// Attach appends a registrar and returns its key.
func (r *Roster) Attach(handle string, client Client) (domain.RegistrarKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client == nil {
		return 0, derrors.New(derrors.CodeValidation, "registrar client is required")
	}
	if len(r.entries) > maxRegistrars {
		return 0, derrors.New(derrors.CodeConflict, "registrar roster is full")
	}
	key := domain.RegistrarKey(len(r.entries))
	r.entries = append(r.entries, Registrar{Key: key, Handle: handle, Client: client})
	return key, nil
}

// Detach clears a registrar slot. Accounts bound to the key re-resolve
// against the remaining roster on their next use.
func (r *Roster) Detach(key domain.RegistrarKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key.IsOwner() || int(key) >= len(r.entries) {
		return derrors.New(derrors.CodeNotFound, "registrar key not attached")
	}
	r.entries[key] = Registrar{Key: key}
	return nil
}

// Restrict toggles the restricted flag on an attached registrar.
func (r *Roster) Restrict(key domain.RegistrarKey, restricted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key.IsOwner() || int(key) >= len(r.entries) || r.entries[key].Client == nil {
		return derrors.New(derrors.CodeNotFound, "registrar key not attached")
	}
	r.entries[key].Restricted = restricted
	return nil
}

// Get returns the registrar at key, if the slot is populated.
func (r *Roster) Get(key domain.RegistrarKey) (Registrar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if key.IsOwner() || int(key) >= len(r.entries) || r.entries[key].Client == nil {
		return Registrar{}, false
	}
	return r.entries[key], true
}

// Active returns the attached, non-restricted registrars in attachment order.
func (r *Roster) Active() []Registrar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registrar, 0, len(r.entries))
	for _, e := range r.entries[1:] {
		if e.Client != nil && !e.Restricted {
			out = append(out, e)
		}
	}
	return out
}

// CountryOf asks the active registrars, in attachment order, for the
// jurisdiction of an identity. The first nonzero answer wins; a registrar
// error fails the lookup outright.
func (r *Roster) CountryOf(ctx context.Context, identity domain.InvestorID) (domain.CountryCode, error) {
	for _, reg := range r.Active() {
		country, err := reg.Client.GetCountryOf(ctx, identity)
		if err != nil {
			return 0, derrors.Wrap(err, derrors.CodeInternal, "registrar country lookup failed")
		}
		if country != 0 {
			return country, nil
		}
	}
	return 0, nil
}
