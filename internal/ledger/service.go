package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"

	"veriledger/internal/platform/metrics"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
	"veriledger/pkg/platform/sentinel"
)

// Party describes one side of a transfer after identity resolution and
// eligibility lookup. Rating and country come from the registrar, never from
// stored state.
type Party struct {
	Identity domain.InvestorID
	Rating   domain.Rating
	Country  domain.CountryCode
}

// TransferParams carries one approved transfer into the ledger.
type TransferParams struct {
	Token  domain.TokenID
	From   Party
	To     Party
	Amount uint64
}

// CustodyPort is the slice of the custody coordinator the ledger needs while
// applying a transfer.
type CustodyPort interface {
	IsCustodian(identity domain.InvestorID) bool
	NotifyReceived(ctx context.Context, token domain.TokenID, custodian domain.InvestorID, from Party, amount uint64) error
}

// Service is the sole writer of balances and slot counts. Mutations are
// all-or-nothing: arithmetic is validated before any row is written, and an
// arithmetic fault aborts the whole operation.
type Service struct {
	store   Store
	custody CustodyPort
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(store Store, m *metrics.Metrics, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, derrors.New(derrors.CodeValidation, "ledger store is required")
	}
	return &Service{store: store, metrics: m, logger: logger}, nil
}

// SetCustody wires the custody coordinator after construction. The
// coordinator itself holds a reference back to this service.
func (s *Service) SetCustody(c CustodyPort) { s.custody = c }

// SetBalance commits a new balance for the identity, maintaining the rating
// bucket and slot-count invariants.
//
// A nonzero rating differing from the stored one migrates the identity's slot
// contribution between rating buckets before the stored rating updates; a
// rating change never changes total slot occupancy. A transition between
// "occupied" and "vacant" (balance > 0 OR custodianCount > 0) moves the
// aggregate and per-rating counts globally and in the jurisdiction.
func (s *Service) SetBalance(ctx context.Context, identity domain.InvestorID, rating domain.Rating, countryCode domain.CountryCode, value uint64) error {
	if identity.IsZero() {
		return derrors.New(derrors.CodeValidation, "the zero identity cannot hold a balance")
	}

	acct, err := s.account(ctx, identity)
	if err != nil {
		return err
	}
	country, err := s.country(ctx, countryCode)
	if err != nil {
		return err
	}
	global, err := s.store.Global(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "load global counts")
	}

	if err := applyBalance(acct, country, global, rating, value); err != nil {
		return err
	}
	return s.commit(ctx, []*Account{acct}, []*Country{country}, global)
}

// applyBalance stages a balance change on the loaded rows. Nothing is
// persisted here; callers commit every staged row in one batch.
func applyBalance(acct *Account, country *Country, global *CountsRow, rating domain.Rating, value uint64) error {
	if !rating.Valid() {
		return derrors.Newf(derrors.CodeValidation, "rating %d out of range", rating)
	}

	if rating != 0 && rating != acct.Rating {
		if acct.Occupied() && acct.Rating.IsInvestor() {
			if err := moveRatingBucket(global, country, acct.Rating, rating); err != nil {
				return err
			}
		}
		acct.Rating = rating
	}

	wasOccupied := acct.Occupied()
	acct.Balance = value
	if occupied := acct.Occupied(); occupied != wasOccupied && acct.Rating.IsInvestor() {
		if occupied {
			occupySlot(global, country, acct.Rating)
		} else if err := vacateSlot(global, country, acct.Rating); err != nil {
			return err
		}
	}
	return nil
}

// Transfer debits the sender and credits the receiver. Equal identities are a
// no-op success. A receiver registered as a custodian is notified (and the
// sender's beneficial-ownership edge recorded) before the balances move.
func (s *Service) Transfer(ctx context.Context, p TransferParams) error {
	if p.From.Identity == p.To.Identity {
		return nil
	}

	from, err := s.account(ctx, p.From.Identity)
	if err != nil {
		return err
	}
	to, err := s.account(ctx, p.To.Identity)
	if err != nil {
		return err
	}
	// Both sides are validated before either is written: there is no partial
	// credit/debit state.
	if from.Balance < p.Amount {
		return derrors.Newf(derrors.CodeArithmetic, "debit underflow: balance %d < amount %d", from.Balance, p.Amount)
	}
	if to.Balance > math.MaxUint64-p.Amount {
		return derrors.New(derrors.CodeArithmetic, "credit overflow")
	}

	if s.custody != nil && s.custody.IsCustodian(p.To.Identity) && p.From.Rating.IsInvestor() {
		if err := s.custody.NotifyReceived(ctx, p.Token, p.To.Identity, p.From, p.Amount); err != nil {
			return err
		}
		// The acknowledged notification records a custody edge on the sender's
		// row; reload both rows so the staged commit carries it.
		if from, err = s.account(ctx, p.From.Identity); err != nil {
			return err
		}
		if to, err = s.account(ctx, p.To.Identity); err != nil {
			return err
		}
	}

	fromCountry, err := s.country(ctx, p.From.Country)
	if err != nil {
		return err
	}
	toCountry := fromCountry
	if p.To.Country != p.From.Country {
		if toCountry, err = s.country(ctx, p.To.Country); err != nil {
			return err
		}
	}
	global, err := s.store.Global(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "load global counts")
	}

	// Both legs are staged in memory and committed as one batch, so a storage
	// fault can never leave a debited sender without a credited receiver.
	if err := applyBalance(from, fromCountry, global, p.From.Rating, from.Balance-p.Amount); err != nil {
		return err
	}
	if err := applyBalance(to, toCountry, global, p.To.Rating, to.Balance+p.Amount); err != nil {
		return err
	}

	countries := []*Country{fromCountry}
	if toCountry != fromCountry {
		countries = append(countries, toCountry)
	}
	return s.commit(ctx, []*Account{from, to}, countries, global)
}

// ApplyCustodyEdge toggles the (investor, custodian) beneficial-ownership
// edge. Crossing the zero boundary on custodianCount while direct balance is
// zero triggers the same slot accounting as a balance transition. Setting an
// edge to its current state is a no-op.
func (s *Service) ApplyCustodyEdge(ctx context.Context, investor, custodian domain.InvestorID, countryCode domain.CountryCode, add bool) error {
	if investor.IsZero() || custodian.IsZero() {
		return derrors.New(derrors.CodeValidation, "investor and custodian identities are required")
	}

	acct, err := s.account(ctx, investor)
	if err != nil {
		return err
	}
	if add == acct.HasCustodian(custodian) {
		return nil
	}
	country, err := s.country(ctx, countryCode)
	if err != nil {
		return err
	}
	global, err := s.store.Global(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "load global counts")
	}

	wasOccupied := acct.Occupied()
	if add {
		acct.Custodians[custodian] = struct{}{}
		acct.CustodianCount++
	} else {
		delete(acct.Custodians, custodian)
		acct.CustodianCount--
	}
	if occupied := acct.Occupied(); occupied != wasOccupied && acct.Rating.IsInvestor() {
		if occupied {
			occupySlot(global, country, acct.Rating)
		} else if err := vacateSlot(global, country, acct.Rating); err != nil {
			return err
		}
	}

	return s.commit(ctx, []*Account{acct}, []*Country{country}, global)
}

// BindRegistrar caches the registrar key last seen vouching for the identity.
func (s *Service) BindRegistrar(ctx context.Context, identity domain.InvestorID, key domain.RegistrarKey) error {
	acct, err := s.account(ctx, identity)
	if err != nil {
		return err
	}
	if acct.RegistrarKey == key {
		return nil
	}
	acct.RegistrarKey = key
	if err := s.store.SaveAccount(ctx, acct); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "save account")
	}
	return nil
}

// SetInvestorRestricted flips the issuer-level block flag on an identity.
func (s *Service) SetInvestorRestricted(ctx context.Context, identity domain.InvestorID, restricted bool) error {
	acct, err := s.account(ctx, identity)
	if err != nil {
		return err
	}
	acct.Restricted = restricted
	if err := s.store.SaveAccount(ctx, acct); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "save account")
	}
	return nil
}

// SetCountryRules installs jurisdiction policy, preserving existing counts.
func (s *Service) SetCountryRules(ctx context.Context, code domain.CountryCode, allowed bool, minRating domain.Rating, limits [domain.RatingClasses + 1]uint64) error {
	country, err := s.country(ctx, code)
	if err != nil {
		return err
	}
	country.Allowed = allowed
	country.MinRating = minRating
	country.Limits = limits
	if err := s.store.SaveCountry(ctx, country); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "save country")
	}
	return nil
}

// SetGlobalLimits installs the global investor limits, preserving counts.
func (s *Service) SetGlobalLimits(ctx context.Context, limits [domain.RatingClasses + 1]uint64) error {
	global, err := s.store.Global(ctx)
	if err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "load global counts")
	}
	global.Limits = limits
	if err := s.store.SaveGlobal(ctx, global); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "save global counts")
	}
	return nil
}

// RegisterToken marks a token contract as serviced by this ledger.
func (s *Service) RegisterToken(ctx context.Context, id domain.TokenID) error {
	token, err := s.store.Token(ctx, id)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return derrors.Wrap(err, derrors.CodeInternal, "load token")
	}
	if token == nil {
		token = &Token{ID: id}
	}
	token.Set = true
	if err := s.store.SaveToken(ctx, token); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "save token")
	}
	return nil
}

// SetTokenRestricted freezes or unfreezes a registered token.
func (s *Service) SetTokenRestricted(ctx context.Context, id domain.TokenID, restricted bool) error {
	token, err := s.store.Token(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return derrors.New(derrors.CodeUnknownToken, "token is not registered")
		}
		return derrors.Wrap(err, derrors.CodeInternal, "load token")
	}
	token.Restricted = restricted
	if err := s.store.SaveToken(ctx, token); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "save token")
	}
	return nil
}

// AccountView returns the stored row for an identity, or an empty row when
// none exists yet. Callers must not mutate through the view.
func (s *Service) AccountView(ctx context.Context, identity domain.InvestorID) (*Account, error) {
	return s.account(ctx, identity)
}

// CountryView returns the stored jurisdiction row, or a default-deny row.
func (s *Service) CountryView(ctx context.Context, code domain.CountryCode) (*Country, error) {
	return s.country(ctx, code)
}

// GlobalView returns the global count/limit row.
func (s *Service) GlobalView(ctx context.Context) (*CountsRow, error) {
	global, err := s.store.Global(ctx)
	if err != nil {
		return nil, derrors.Wrap(err, derrors.CodeInternal, "load global counts")
	}
	return global, nil
}

// TokenView returns the token registration row, if any.
func (s *Service) TokenView(ctx context.Context, id domain.TokenID) (*Token, error) {
	token, err := s.store.Token(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &Token{ID: id}, nil
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "load token")
	}
	return token, nil
}

func (s *Service) account(ctx context.Context, identity domain.InvestorID) (*Account, error) {
	acct, err := s.store.Account(ctx, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &Account{Identity: identity, Custodians: make(map[domain.InvestorID]struct{})}, nil
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "load account")
	}
	if acct.Custodians == nil {
		acct.Custodians = make(map[domain.InvestorID]struct{})
	}
	return acct, nil
}

func (s *Service) country(ctx context.Context, code domain.CountryCode) (*Country, error) {
	country, err := s.store.Country(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &Country{Code: code}, nil
		}
		return nil, derrors.Wrap(err, derrors.CodeInternal, "load country")
	}
	return country, nil
}

func (s *Service) commit(ctx context.Context, accounts []*Account, countries []*Country, global *CountsRow) error {
	if err := s.store.SaveBatch(ctx, accounts, countries, global); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "commit ledger rows")
	}
	for _, country := range countries {
		if s.metrics != nil {
			s.metrics.InvestorSlots.WithLabelValues(strconv.Itoa(int(country.Code))).Set(float64(country.Counts[0]))
		}
	}
	if s.logger != nil {
		for _, acct := range accounts {
			s.logger.DebugContext(ctx, "ledger row committed",
				"identity", acct.Identity.String(),
				"balance", acct.Balance,
				"global_total", global.Counts[0],
			)
		}
	}
	return nil
}

func occupySlot(global *CountsRow, country *Country, rating domain.Rating) {
	global.Counts[0]++
	global.Counts[rating]++
	country.Counts[0]++
	country.Counts[rating]++
}

func vacateSlot(global *CountsRow, country *Country, rating domain.Rating) error {
	for _, c := range []*CountsRow{global, &country.CountsRow} {
		if c.Counts[0] == 0 || c.Counts[rating] == 0 {
			return derrors.New(derrors.CodeArithmetic, "slot count underflow")
		}
	}
	global.Counts[0]--
	global.Counts[rating]--
	country.Counts[0]--
	country.Counts[rating]--
	return nil
}

func moveRatingBucket(global *CountsRow, country *Country, from, to domain.Rating) error {
	if global.Counts[from] == 0 || country.Counts[from] == 0 {
		return derrors.New(derrors.CodeArithmetic, "rating bucket underflow")
	}
	global.Counts[from]--
	global.Counts[to]++
	country.Counts[from]--
	country.Counts[to]++
	return nil
}
