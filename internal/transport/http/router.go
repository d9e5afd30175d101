// Package httptransport is the thin HTTP layer over the transfer engine. It
// delegates to the engine without embedding business logic so transport
// concerns remain isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"veriledger/internal/engine"
	"veriledger/internal/ledger"
	"veriledger/internal/platform/middleware"
)

// Handler holds the engine surface the API exposes.
type Handler struct {
	engine    *engine.Service
	ledger    *ledger.Service
	validator middleware.CallerValidator
	logger    *slog.Logger
}

func NewHandler(eng *engine.Service, led *ledger.Service, validator middleware.CallerValidator, logger *slog.Logger) *Handler {
	return &Handler{engine: eng, ledger: led, validator: validator, logger: logger}
}

// NewRouter wires all endpoints. Queries and health are public; everything
// that mutates or reveals caller-scoped data requires a bearer token.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(h.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(h.logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/accounts/{identity}", h.handleGetAccount)
		r.Get("/countries/{code}", h.handleGetCountry)
		r.Get("/limits", h.handleGetGlobal)
		r.Get("/documents", h.handleListDocuments)
		r.Get("/documents/{id}", h.handleGetDocument)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			r.Use(middleware.RequireAuth(h.validator, h.logger))

			r.Post("/transfers", h.handleTransfer)
			r.Post("/transfers/check", h.handleCheckTransfer)
			r.Post("/balances", h.handleModifyBalance)
			r.Get("/audit", h.handleAuditTrail)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/countries", h.handleSetCountry)
				r.Post("/countries/bulk", h.handleSetCountries)
				r.Post("/limits", h.handleSetInvestorLimits)
				r.Post("/documents", h.handleSetDocument)
				r.Post("/registrars", h.handleAttachRegistrar)
				r.Delete("/registrars/{key}", h.handleDetachRegistrar)
				r.Post("/registrars/{key}/restrict", h.handleRestrictRegistrar)
				r.Post("/custodians", h.handleRegisterCustodian)
				r.Post("/custodians/{identity}/owners", h.handleUpdateBeneficialOwners)
				r.Post("/tokens", h.handleRegisterToken)
				r.Post("/tokens/{id}/restrict", h.handleRestrictToken)
				r.Post("/investors/{identity}/restrict", h.handleRestrictInvestor)
				r.Post("/lock", h.handleSetGlobalLock)
			})
		})
	})
	return r
}
