package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	identity, err := identityParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	acct, err := h.ledger.AccountView(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":        acct.Identity,
		"balance":         acct.Balance,
		"rating":          acct.Rating,
		"registrar_key":   acct.RegistrarKey,
		"custodian_count": acct.CustodianCount,
		"restricted":      acct.Restricted,
		"occupied":        acct.Occupied(),
	})
}

func (h *Handler) handleGetCountry(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "code")
	code, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		writeError(w, derrors.New(derrors.CodeValidation, "country code must be numeric"))
		return
	}
	country, err := h.ledger.CountryView(r.Context(), domain.CountryCode(code))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":       country.Code,
		"allowed":    country.Allowed,
		"min_rating": country.MinRating,
		"counts":     country.Counts,
		"limits":     country.Limits,
	})
}

func (h *Handler) handleGetGlobal(w http.ResponseWriter, r *http.Request) {
	global, err := h.ledger.GlobalView(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"counts": global.Counts,
		"limits": global.Limits,
	})
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.engine.GetDocument(r.Context(), domain.DocumentID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentBody(doc.ID, doc.URI, doc.Hash, doc.AddedAt))
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListDocuments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, doc := range list {
		out = append(out, documentBody(doc.ID, doc.URI, doc.Hash, doc.AddedAt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": out})
}
