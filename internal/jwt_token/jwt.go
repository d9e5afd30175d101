// Package jwttoken issues and validates the bearer tokens callers present to
// the engine API. The caller claim carries the verified investor identity the
// admin surface is gated on.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

// Claims represents the JWT claims for engine access tokens.
type Claims struct {
	Caller string `json:"caller"`
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateAccessToken signs a token asserting the caller identity.
func (s *JWTService) GenerateAccessToken(caller domain.InvestorID, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Caller: caller.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token, returning its claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, derrors.New(derrors.CodeUnauthorized, "token has expired")
		}
		return nil, derrors.New(derrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, derrors.New(derrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, derrors.New(derrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ExtractCaller validates the token and parses its caller identity.
func (s *JWTService) ExtractCaller(tokenString string) (domain.InvestorID, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	caller, err := domain.ParseInvestorID(claims.Caller)
	if err != nil {
		return "", derrors.New(derrors.CodeUnauthorized, "invalid caller claim")
	}
	return caller, nil
}
