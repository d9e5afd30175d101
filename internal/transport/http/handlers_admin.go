package httptransport

import (
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"veriledger/internal/engine"
	"veriledger/internal/platform/middleware"
	"veriledger/internal/registry"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
	pstrings "veriledger/pkg/platform/strings"
)

type countryRule struct {
	Code      uint16   `json:"code"`
	Allowed   bool     `json:"allowed"`
	MinRating uint8    `json:"min_rating"`
	Limits    []uint64 `json:"limits"`
}

func (c countryRule) toRule() (engine.CountryRule, error) {
	limits, err := toLimits(c.Limits)
	if err != nil {
		return engine.CountryRule{}, err
	}
	return engine.CountryRule{
		Code:      domain.CountryCode(c.Code),
		Allowed:   c.Allowed,
		MinRating: domain.Rating(c.MinRating),
		Limits:    limits,
	}, nil
}

// toLimits accepts the aggregate-plus-classes array, zero-filling a short one.
func toLimits(in []uint64) ([domain.RatingClasses + 1]uint64, error) {
	var out [domain.RatingClasses + 1]uint64
	if len(in) > len(out) {
		return out, derrors.Newf(derrors.CodeValidation, "at most %d limit entries expected", len(out))
	}
	copy(out[:], in)
	return out, nil
}

func (h *Handler) handleSetCountry(w http.ResponseWriter, r *http.Request) {
	var req countryRule
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rule, err := req.toRule()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.engine.SetCountry(r.Context(), middleware.GetCaller(r.Context()), rule); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetCountries(w http.ResponseWriter, r *http.Request) {
	var req []countryRule
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rules := make([]engine.CountryRule, 0, len(req))
	for _, c := range req {
		rule, err := c.toRule()
		if err != nil {
			writeError(w, err)
			return
		}
		rules = append(rules, rule)
	}
	if err := h.engine.SetCountries(r.Context(), middleware.GetCaller(r.Context()), rules); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetInvestorLimits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limits []uint64 `json:"limits"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	limits, err := toLimits(req.Limits)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.engine.SetInvestorLimits(r.Context(), middleware.GetCaller(r.Context()), limits); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID   string `json:"id"`
		URI  string `json:"uri"`
		Hash string `json:"hash"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	raw, err := hex.DecodeString(req.Hash)
	if err != nil || len(raw) != 32 {
		writeError(w, derrors.New(derrors.CodeValidation, "hash must be 32 bytes of hex"))
		return
	}
	var hash [32]byte
	copy(hash[:], raw)
	if err := h.engine.SetDocument(r.Context(), middleware.GetCaller(r.Context()), domain.DocumentID(req.ID), req.URI, hash); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleAttachRegistrar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Handle  string `json:"handle"`
		BaseURL string `json:"base_url"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.BaseURL == "" {
		writeError(w, derrors.New(derrors.CodeValidation, "base_url is required"))
		return
	}
	client := registry.NewHTTPClient(req.BaseURL, nil)
	key, err := h.engine.AttachRegistrar(r.Context(), middleware.GetCaller(r.Context()), req.Handle, client)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"key": key})
}

func (h *Handler) handleDetachRegistrar(w http.ResponseWriter, r *http.Request) {
	key, err := registrarKeyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.engine.DetachRegistrar(r.Context(), middleware.GetCaller(r.Context()), key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestrictRegistrar(w http.ResponseWriter, r *http.Request) {
	key, err := registrarKeyParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Restricted bool `json:"restricted"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.engine.RestrictRegistrar(r.Context(), middleware.GetCaller(r.Context()), key, req.Restricted); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRegisterCustodian(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account  string `json:"account"`
		Identity string `json:"identity"`
		Handle   string `json:"handle"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	identity, err := domain.ParseInvestorID(req.Identity)
	if err != nil {
		writeError(w, derrors.New(derrors.CodeValidation, err.Error()))
		return
	}
	// Custodians registered over the API have no collaborator callback; edges
	// are managed through the beneficial-owners endpoint.
	err = h.engine.RegisterCustodian(r.Context(), middleware.GetCaller(r.Context()),
		domain.AccountAddr(req.Account), identity, req.Handle, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleUpdateBeneficialOwners(w http.ResponseWriter, r *http.Request) {
	custodian, err := identityParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Owners []string `json:"owners"`
		Add    bool     `json:"add"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	deduped := pstrings.DedupeAndTrim(req.Owners)
	owners := make([]domain.InvestorID, 0, len(deduped))
	for _, raw := range deduped {
		owner, err := domain.ParseInvestorID(raw)
		if err != nil {
			writeError(w, derrors.New(derrors.CodeValidation, err.Error()))
			return
		}
		owners = append(owners, owner)
	}
	err = h.engine.UpdateBeneficialOwners(r.Context(), middleware.GetCaller(r.Context()), custodian, owners, req.Add)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRegisterToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.engine.RegisterToken(r.Context(), middleware.GetCaller(r.Context()), domain.TokenID(req.Token)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleRestrictToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Restricted bool `json:"restricted"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token := domain.TokenID(chi.URLParam(r, "id"))
	if err := h.engine.RestrictToken(r.Context(), middleware.GetCaller(r.Context()), token, req.Restricted); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestrictInvestor(w http.ResponseWriter, r *http.Request) {
	identity, err := identityParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Restricted bool `json:"restricted"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.engine.RestrictInvestor(r.Context(), middleware.GetCaller(r.Context()), identity, req.Restricted); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetGlobalLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locked bool `json:"locked"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.engine.SetGlobalLock(r.Context(), middleware.GetCaller(r.Context()), req.Locked); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func identityParam(r *http.Request) (domain.InvestorID, error) {
	identity, err := domain.ParseInvestorID(chi.URLParam(r, "identity"))
	if err != nil {
		return "", derrors.New(derrors.CodeValidation, err.Error())
	}
	return identity, nil
}

func registrarKeyParam(r *http.Request) (domain.RegistrarKey, error) {
	raw := chi.URLParam(r, "key")
	key, err := strconv.ParseUint(raw, 10, 8)
	if err != nil {
		return 0, derrors.New(derrors.CodeValidation, "registrar key must be a small integer")
	}
	return domain.RegistrarKey(key), nil
}
