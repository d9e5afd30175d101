package httptransport

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"veriledger/internal/audit"
	"veriledger/internal/authority"
	"veriledger/internal/custody"
	"veriledger/internal/docs"
	"veriledger/internal/engine"
	"veriledger/internal/extension"
	jwttoken "veriledger/internal/jwt_token"
	"veriledger/internal/ledger"
	"veriledger/internal/oracle"
	"veriledger/internal/registry"
	"veriledger/internal/resolver"
	"veriledger/pkg/domain"
)

// =============================================================================
// HTTP API Test Suite
// =============================================================================
// Justification for suite tests: the router is the only externally visible
// surface. These tests pin status codes, auth behavior, and the JSON error
// envelope against a fully wired in-memory engine.

type RouterSuite struct {
	suite.Suite
	server    *httptest.Server
	jwt       *jwttoken.JWTService
	registrar *registry.StubClient

	owner domain.InvestorID
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

const (
	issuerAccount = "0xissuer"
	accountA      = "0xalice"
	accountB      = "0xbob"
)

func (s *RouterSuite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.owner = domain.DeriveInvestorID([]byte("issuer-identity"))
	auth := authority.NewStatic(s.owner)
	auth.AddOwnerAccount(domain.AccountAddr(issuerAccount))

	roster := registry.NewRoster()
	s.registrar = registry.NewStubClient()

	res, err := resolver.NewService(roster, resolver.NewInMemoryStore(), auth, logger)
	s.Require().NoError(err)
	elig, err := oracle.NewService(roster, nil, logger)
	s.Require().NoError(err)
	led, err := ledger.NewService(ledger.NewInMemoryStore(), nil, logger)
	s.Require().NoError(err)
	cust, err := custody.NewCoordinator(led, roster, auth, logger)
	s.Require().NoError(err)
	led.SetCustody(cust)
	docSvc, err := docs.NewService(docs.NewInMemoryStore(), logger)
	s.Require().NoError(err)

	eng, err := engine.NewService(engine.Deps{
		Resolver:   res,
		Oracle:     elig,
		Ledger:     led,
		Custody:    cust,
		Extensions: extension.NewDispatcher(logger),
		Docs:       docSvc,
		Authority:  auth,
		Roster:     roster,
		Audit:      audit.NewPublisher(audit.NewInMemoryStore(), nil, logger),
		Logger:     logger,
	})
	s.Require().NoError(err)

	_, err = eng.AttachRegistrar(ctx, s.owner, "stub", s.registrar)
	s.Require().NoError(err)
	s.Require().NoError(eng.RegisterToken(ctx, s.owner, "TKN"))
	s.Require().NoError(eng.SetCountry(ctx, s.owner, engine.CountryRule{Code: 840, Allowed: true}))

	s.jwt = jwttoken.NewJWTService("test-signing-key", "veriledger", "veriledger-api")
	s.server = httptest.NewServer(NewRouter(NewHandler(eng, led, s.jwt, logger)))
	s.T().Cleanup(s.server.Close)
}

func (s *RouterSuite) request(method, path, token string, body any) *http.Response {
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, buf)
	s.Require().NoError(err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp
}

func (s *RouterSuite) decodeBody(resp *http.Response) map[string]any {
	defer resp.Body.Close()
	var out map[string]any
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *RouterSuite) tokenFor(caller domain.InvestorID) string {
	token, err := s.jwt.GenerateAccessToken(caller, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *RouterSuite) TestPublicEndpoints() {
	s.Run("healthz is open", func() {
		resp := s.request(http.MethodGet, "/healthz", "", nil)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal("ok", s.decodeBody(resp)["status"])
	})

	s.Run("metrics is open", func() {
		resp := s.request(http.MethodGet, "/metrics", "", nil)
		defer resp.Body.Close()
		s.Equal(http.StatusOK, resp.StatusCode)
	})

	s.Run("unknown account reads as an empty slot", func() {
		missing := domain.DeriveInvestorID([]byte("nobody"))
		resp := s.request(http.MethodGet, "/v1/accounts/"+missing.String(), "", nil)
		s.Equal(http.StatusOK, resp.StatusCode)
		body := s.decodeBody(resp)
		s.Equal(float64(0), body["balance"])
		s.Equal(false, body["occupied"])
	})

	s.Run("malformed identity yields the error envelope", func() {
		resp := s.request(http.MethodGet, "/v1/accounts/not-hex", "", nil)
		s.Equal(http.StatusBadRequest, resp.StatusCode)
		body := s.decodeBody(resp)
		s.Equal("validation", body["error"])
		s.NotEmpty(body["message"])
	})
}

func (s *RouterSuite) TestAuthGate() {
	s.Run("missing token is unauthorized", func() {
		resp := s.request(http.MethodPost, "/v1/transfers", "", transferRequest{Token: "TKN"})
		defer resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("garbage token is unauthorized", func() {
		resp := s.request(http.MethodPost, "/v1/transfers", "not-a-jwt", transferRequest{Token: "TKN"})
		defer resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("expired token is unauthorized", func() {
		expired, err := s.jwt.GenerateAccessToken(s.owner, -time.Minute)
		s.Require().NoError(err)
		resp := s.request(http.MethodPost, "/v1/transfers", expired, transferRequest{Token: "TKN"})
		defer resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})

	s.Run("non-JSON content type is rejected", func() {
		req, err := http.NewRequest(http.MethodPost, s.server.URL+"/v1/transfers", bytes.NewReader([]byte("x=1")))
		s.Require().NoError(err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+s.tokenFor(s.owner))
		resp, err := s.server.Client().Do(req)
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
	})
}

func (s *RouterSuite) TestTransferFlow() {
	alice := s.registrar.Enroll(accountA, true, 1, 840)
	s.registrar.Enroll(accountB, true, 1, 840)
	ownerToken := s.tokenFor(s.owner)

	s.Run("issuance over the API", func() {
		resp := s.request(http.MethodPost, "/v1/balances", ownerToken,
			modifyBalanceRequest{Holder: s.owner.String(), Value: 1000})
		defer resp.Body.Close()
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)

		resp = s.request(http.MethodPost, "/v1/transfers", ownerToken,
			transferRequest{Token: "TKN", From: issuerAccount, To: accountA, Amount: 1000})
		defer resp.Body.Close()
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)

		resp = s.request(http.MethodGet, "/v1/accounts/"+alice.String(), "", nil)
		s.Equal(http.StatusOK, resp.StatusCode)
		body := s.decodeBody(resp)
		s.Equal(float64(1000), body["balance"])
		s.Equal(true, body["occupied"])
	})

	s.Run("investor transfer with caller token", func() {
		resp := s.request(http.MethodPost, "/v1/transfers", s.tokenFor(alice),
			transferRequest{Token: "TKN", From: accountA, To: accountB, Amount: 400})
		defer resp.Body.Close()
		s.Equal(http.StatusNoContent, resp.StatusCode)
	})

	s.Run("check reports a rejection without failing the request", func() {
		resp := s.request(http.MethodPost, "/v1/transfers/check", s.tokenFor(alice),
			transferRequest{Token: "GHOST", From: accountA, To: accountB, Amount: 1})
		s.Equal(http.StatusOK, resp.StatusCode)
		body := s.decodeBody(resp)
		s.Equal(false, body["approved"])
		s.Equal("unknown_token", body["code"])
	})

	s.Run("rejected transfer maps the domain code to a status", func() {
		resp := s.request(http.MethodPost, "/v1/transfers", s.tokenFor(alice),
			transferRequest{Token: "TKN", From: accountA, To: accountB, Amount: 10_000})
		s.Equal(http.StatusConflict, resp.StatusCode)
		s.Equal("arithmetic_fault", s.decodeBody(resp)["error"])
	})

	s.Run("audit trail is caller-visible", func() {
		resp := s.request(http.MethodGet, "/v1/audit", ownerToken, nil)
		s.Equal(http.StatusOK, resp.StatusCode)
		events, ok := s.decodeBody(resp)["events"].([]any)
		s.Require().True(ok)
		s.NotEmpty(events)
	})
}

func (s *RouterSuite) TestAdminEndpoints() {
	ownerToken := s.tokenFor(s.owner)
	outsider := s.tokenFor(domain.DeriveInvestorID([]byte("outsider")))

	s.Run("outsider cannot set policy", func() {
		resp := s.request(http.MethodPost, "/v1/admin/countries", outsider,
			map[string]any{"code": 756, "allowed": true})
		s.Equal(http.StatusForbidden, resp.StatusCode)
		s.Equal("unauthorized", s.decodeBody(resp)["error"])
	})

	s.Run("owner installs a country rule", func() {
		resp := s.request(http.MethodPost, "/v1/admin/countries", ownerToken,
			map[string]any{"code": 756, "allowed": true, "min_rating": 2})
		defer resp.Body.Close()
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)

		resp = s.request(http.MethodGet, "/v1/countries/756", "", nil)
		s.Equal(http.StatusOK, resp.StatusCode)
		body := s.decodeBody(resp)
		s.Equal(true, body["allowed"])
		s.Equal(float64(2), body["min_rating"])
	})

	s.Run("owner sets global limits", func() {
		resp := s.request(http.MethodPost, "/v1/admin/limits", ownerToken,
			map[string]any{"limits": []uint64{100, 50}})
		defer resp.Body.Close()
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)

		resp = s.request(http.MethodGet, "/v1/limits", "", nil)
		s.Equal(http.StatusOK, resp.StatusCode)
		limits, ok := s.decodeBody(resp)["limits"].([]any)
		s.Require().True(ok)
		s.Equal(float64(100), limits[0])
		s.Equal(float64(50), limits[1])
	})

	s.Run("documents are write-once", func() {
		docHash := docs.HashDocument([]byte("contents"))
		doc := map[string]any{
			"id":   "prospectus",
			"uri":  "https://example.com/prospectus.pdf",
			"hash": hex.EncodeToString(docHash[:]),
		}
		resp := s.request(http.MethodPost, "/v1/admin/documents", ownerToken, doc)
		defer resp.Body.Close()
		s.Require().Equal(http.StatusCreated, resp.StatusCode)

		resp = s.request(http.MethodPost, "/v1/admin/documents", ownerToken, doc)
		s.Equal(http.StatusConflict, resp.StatusCode)
		s.Equal("duplicate_document", s.decodeBody(resp)["error"])

		resp = s.request(http.MethodGet, "/v1/documents/prospectus", "", nil)
		s.Equal(http.StatusOK, resp.StatusCode)
		s.Equal("https://example.com/prospectus.pdf", s.decodeBody(resp)["uri"])
	})

	s.Run("global lock blocks investor transfers", func() {
		alice := s.registrar.Enroll(accountA, true, 1, 840)
		s.registrar.Enroll(accountB, true, 1, 840)

		resp := s.request(http.MethodPost, "/v1/balances", ownerToken,
			modifyBalanceRequest{Holder: s.owner.String(), Value: 100})
		defer resp.Body.Close()
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)
		resp = s.request(http.MethodPost, "/v1/transfers", ownerToken,
			transferRequest{Token: "TKN", From: issuerAccount, To: accountA, Amount: 100})
		defer resp.Body.Close()
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)

		resp = s.request(http.MethodPost, "/v1/admin/lock", ownerToken, map[string]any{"locked": true})
		defer resp.Body.Close()
		s.Require().Equal(http.StatusNoContent, resp.StatusCode)

		resp = s.request(http.MethodPost, "/v1/transfers", s.tokenFor(alice),
			transferRequest{Token: "TKN", From: accountA, To: accountB, Amount: 1})
		s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)
		s.Equal("entity_locked", s.decodeBody(resp)["error"])
	})
}
