package authority

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veriledger/pkg/domain"
)

// =============================================================================
// Authority Oracle Test Suite
// =============================================================================

type AuthoritySuite struct {
	suite.Suite
	oracle *Static
	now    time.Time
}

func TestAuthoritySuite(t *testing.T) {
	suite.Run(t, new(AuthoritySuite))
}

var (
	owner    = domain.DeriveInvestorID([]byte("owner"))
	delegate = domain.DeriveInvestorID([]byte("delegate"))
	stranger = domain.DeriveInvestorID([]byte("stranger"))
)

func (s *AuthoritySuite) SetupTest() {
	s.now = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.oracle = NewStatic(owner)
	s.oracle.now = func() time.Time { return s.now }
}

func (s *AuthoritySuite) TestAuthorized() {
	ctx := context.Background()

	s.Run("owner is authorized for everything", func() {
		s.True(s.oracle.Authorized(ctx, owner, ActionSetCountry))
		s.True(s.oracle.Authorized(ctx, owner, ActionAll))
		s.True(s.oracle.IsOwner(owner))
	})

	s.Run("strangers are authorized for nothing", func() {
		s.False(s.oracle.Authorized(ctx, stranger, ActionSetCountry))
		s.False(s.oracle.IsOwner(stranger))
	})

	s.Run("delegation grants exactly its action mask", func() {
		s.oracle.Delegate(delegate, s.now.Add(time.Hour), ActionSetCountry|ActionSetLimits)

		s.True(s.oracle.Authorized(ctx, delegate, ActionSetCountry))
		s.True(s.oracle.Authorized(ctx, delegate, ActionSetLimits))
		s.False(s.oracle.Authorized(ctx, delegate, ActionManageTokens))
		s.False(s.oracle.Authorized(ctx, delegate, ActionAll), "a partial mask never covers the full set")
	})

	s.Run("expired delegation no longer authorizes", func() {
		s.oracle.Delegate(delegate, s.now.Add(time.Hour), ActionSetCountry)
		s.now = s.now.Add(2 * time.Hour)
		s.False(s.oracle.Authorized(ctx, delegate, ActionSetCountry))
	})

	s.Run("revocation takes effect immediately", func() {
		s.oracle.Delegate(delegate, s.now.Add(time.Hour), ActionSetCountry)
		s.oracle.Revoke(delegate)
		s.False(s.oracle.Authorized(ctx, delegate, ActionSetCountry))
	})
}

func (s *AuthoritySuite) TestOwnerAccounts() {
	s.False(s.oracle.IsOwnerAccount("0xissuer"))
	s.oracle.AddOwnerAccount("0xissuer")
	s.True(s.oracle.IsOwnerAccount("0xissuer"))
	s.Equal(owner, s.oracle.OwnerIdentity())
}
