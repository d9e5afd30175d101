package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"veriledger/internal/platform/metrics"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
	"veriledger/pkg/platform/circuit"
)

// HTTPClient talks JSON over HTTP to an external registrar service. A
// circuit breaker fails lookups fast while the registrar is down; resolution
// treats that the same as any registrar error, so no decision is made on
// stale data.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	metrics *metrics.Metrics
}

// NewHTTPClient builds a registrar client for the given base URL.
func NewHTTPClient(baseURL string, m *metrics.Metrics) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: circuit.New(baseURL, circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		metrics: m,
	}
}

type investorResponse struct {
	Identity string `json:"identity"`
	Allowed  bool   `json:"allowed"`
	Rating   uint8  `json:"rating"`
	Country  uint16 `json:"country"`
}

type investorPairResponse struct {
	Investors [2]investorResponse `json:"investors"`
}

type identityResponse struct {
	Identity string `json:"identity"`
}

type countryResponse struct {
	Country uint16 `json:"country"`
}

func (c *HTTPClient) GetIdentity(ctx context.Context, account domain.AccountAddr) (domain.InvestorID, error) {
	defer c.observe("identity", time.Now())
	var resp identityResponse
	if err := c.get(ctx, "/v1/identity", url.Values{"account": {account.String()}}, &resp); err != nil {
		return "", err
	}
	if resp.Identity == "" {
		return "", nil
	}
	return domain.ParseInvestorID(resp.Identity)
}

func (c *HTTPClient) GetInvestor(ctx context.Context, account domain.AccountAddr) (InvestorRecord, error) {
	defer c.observe("investor", time.Now())
	var resp investorResponse
	if err := c.get(ctx, "/v1/investor", url.Values{"account": {account.String()}}, &resp); err != nil {
		return InvestorRecord{}, err
	}
	return resp.toRecord()
}

func (c *HTTPClient) GetInvestorPair(ctx context.Context, a, b domain.AccountAddr) ([2]InvestorRecord, error) {
	defer c.observe("investor_pair", time.Now())
	var resp investorPairResponse
	q := url.Values{"a": {a.String()}, "b": {b.String()}}
	if err := c.get(ctx, "/v1/investor-pair", q, &resp); err != nil {
		return [2]InvestorRecord{}, err
	}
	var out [2]InvestorRecord
	for i, inv := range resp.Investors {
		rec, err := inv.toRecord()
		if err != nil {
			return [2]InvestorRecord{}, err
		}
		out[i] = rec
	}
	return out, nil
}

func (c *HTTPClient) GetCountryOf(ctx context.Context, identity domain.InvestorID) (domain.CountryCode, error) {
	defer c.observe("country", time.Now())
	var resp countryResponse
	if err := c.get(ctx, "/v1/country", url.Values{"identity": {identity.String()}}, &resp); err != nil {
		return 0, err
	}
	return domain.CountryCode(resp.Country), nil
}

func (r investorResponse) toRecord() (InvestorRecord, error) {
	rec := InvestorRecord{
		Allowed: r.Allowed,
		Rating:  domain.Rating(r.Rating),
		Country: domain.CountryCode(r.Country),
	}
	if !rec.Rating.Valid() {
		return InvestorRecord{}, fmt.Errorf("registrar returned out-of-range rating %d", r.Rating)
	}
	if r.Identity != "" {
		identity, err := domain.ParseInvestorID(r.Identity)
		if err != nil {
			return InvestorRecord{}, fmt.Errorf("registrar returned malformed identity: %w", err)
		}
		rec.Identity = identity
	}
	return rec, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	if c.breaker.IsOpen() {
		return derrors.Newf(derrors.CodeInternal, "registrar %s is unavailable (circuit open)", c.baseURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build registrar request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("registrar call %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		c.breaker.RecordFailure()
		return fmt.Errorf("registrar call %s: unexpected status %d", path, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registrar call %s: unexpected status %d", path, resp.StatusCode)
	}
	c.breaker.RecordSuccess()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode registrar response: %w", err)
	}
	return nil
}

func (c *HTTPClient) observe(kind string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveRegistrarLookup(kind, time.Since(start))
	}
}
