package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"veriledger/internal/registry"
	"veriledger/internal/registry/mocks"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// =============================================================================
// Eligibility Oracle Test Suite
// =============================================================================
// Justification for unit tests: the oracle chooses between a dual lookup and
// two single lookups based on registrar keys; mock expectations pin which
// round trips actually happen.

type OracleSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	roster  *registry.Roster
	service *Service

	clientA *mocks.MockClient
	clientB *mocks.MockClient
	keyA    domain.RegistrarKey
	keyB    domain.RegistrarKey
}

func TestOracleSuite(t *testing.T) {
	suite.Run(t, new(OracleSuite))
}

var (
	identX = domain.DeriveInvestorID([]byte("party-x"))
	identY = domain.DeriveInvestorID([]byte("party-y"))

	acctX = domain.AccountAddr("0x1111")
	acctY = domain.AccountAddr("0x2222")
)

func (s *OracleSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.roster = registry.NewRoster()
	s.clientA = mocks.NewMockClient(s.ctrl)
	s.clientB = mocks.NewMockClient(s.ctrl)

	var err error
	s.keyA, err = s.roster.Attach("registrar-a", s.clientA)
	s.Require().NoError(err)
	s.keyB, err = s.roster.Attach("registrar-b", s.clientB)
	s.Require().NoError(err)

	s.service, err = NewService(s.roster, nil, nil)
	s.Require().NoError(err)
}

func record(identity domain.InvestorID, rating domain.Rating, country domain.CountryCode) registry.InvestorRecord {
	return registry.InvestorRecord{Identity: identity, Allowed: true, Rating: rating, Country: country}
}

// =============================================================================
// GetPair Tests
// =============================================================================

func (s *OracleSuite) TestGetPair() {
	ctx := context.Background()

	s.Run("key-zero sides bypass registrars entirely", func() {
		out, err := s.service.GetPair(ctx,
			Side{Account: acctX, Identity: identX},
			Side{Account: acctY, Identity: identY},
		)
		s.Require().NoError(err)
		s.True(out[0].Allowed)
		s.Equal(domain.Rating(0), out[0].Rating)
		s.Equal(domain.CountryCode(0), out[0].Country)
		s.True(out[1].Allowed)
	})

	s.Run("same registrar uses one pair lookup", func() {
		s.clientA.EXPECT().GetInvestorPair(gomock.Any(), acctX, acctY).
			Return([2]registry.InvestorRecord{record(identX, 1, 840), record(identY, 2, 276)}, nil)

		out, err := s.service.GetPair(ctx,
			Side{Account: acctX, Identity: identX, RegistrarKey: s.keyA},
			Side{Account: acctY, Identity: identY, RegistrarKey: s.keyA},
		)
		s.Require().NoError(err)
		s.Equal(domain.Rating(1), out[0].Rating)
		s.Equal(domain.CountryCode(276), out[1].Country)
	})

	s.Run("split registrars use one single lookup each", func() {
		s.clientA.EXPECT().GetInvestor(gomock.Any(), acctX).Return(record(identX, 1, 840), nil)
		s.clientB.EXPECT().GetInvestor(gomock.Any(), acctY).Return(record(identY, 4, 756), nil)

		out, err := s.service.GetPair(ctx,
			Side{Account: acctX, Identity: identX, RegistrarKey: s.keyA},
			Side{Account: acctY, Identity: identY, RegistrarKey: s.keyB},
		)
		s.Require().NoError(err)
		s.Equal(domain.Rating(1), out[0].Rating)
		s.Equal(domain.Rating(4), out[1].Rating)
	})

	s.Run("registrar side paired with key-zero side needs one lookup", func() {
		s.clientB.EXPECT().GetInvestor(gomock.Any(), acctY).Return(record(identY, 3, 392), nil)

		out, err := s.service.GetPair(ctx,
			Side{Account: acctX, Identity: identX},
			Side{Account: acctY, Identity: identY, RegistrarKey: s.keyB},
		)
		s.Require().NoError(err)
		s.True(out[0].Allowed)
		s.Equal(domain.Rating(3), out[1].Rating)
	})

	s.Run("out-of-range rating is refused at the boundary", func() {
		s.clientA.EXPECT().GetInvestor(gomock.Any(), acctX).
			Return(record(identX, domain.RatingClasses+1, 840), nil)

		_, err := s.service.GetPair(ctx,
			Side{Account: acctX, Identity: identX, RegistrarKey: s.keyA},
			Side{Account: acctY, Identity: identY},
		)
		s.True(derrors.HasCode(err, derrors.CodeInternal))
		s.Contains(err.Error(), "out-of-range rating")
	})

	s.Run("identity mismatch means the registrar dropped the account", func() {
		other := domain.DeriveInvestorID([]byte("someone-else"))
		s.clientA.EXPECT().GetInvestor(gomock.Any(), acctX).Return(record(other, 1, 840), nil)
		s.clientB.EXPECT().GetInvestor(gomock.Any(), acctY).Return(record(identY, 1, 840), nil).AnyTimes()

		_, err := s.service.GetPair(ctx,
			Side{Account: acctX, Identity: identX, RegistrarKey: s.keyA},
			Side{Account: acctY, Identity: identY, RegistrarKey: s.keyB},
		)
		s.True(derrors.HasCode(err, derrors.CodeNotRegistered))
	})

	s.Run("restricted registrar fails the decision", func() {
		s.Require().NoError(s.roster.Restrict(s.keyA, true))

		_, err := s.service.GetPair(ctx,
			Side{Account: acctX, Identity: identX, RegistrarKey: s.keyA},
			Side{Account: acctY, Identity: identY},
		)
		s.True(derrors.HasCode(err, derrors.CodeRegistrarRestricted))
	})

	s.Run("pair lookup error is a hard failure", func() {
		s.SetupTest()
		s.clientA.EXPECT().GetInvestorPair(gomock.Any(), acctX, acctY).
			Return([2]registry.InvestorRecord{}, context.DeadlineExceeded)

		_, err := s.service.GetPair(ctx,
			Side{Account: acctX, Identity: identX, RegistrarKey: s.keyA},
			Side{Account: acctY, Identity: identY, RegistrarKey: s.keyA},
		)
		s.True(derrors.HasCode(err, derrors.CodeInternal))
	})
}
