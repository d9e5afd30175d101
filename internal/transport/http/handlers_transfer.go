package httptransport

import (
	"net/http"

	"veriledger/internal/platform/middleware"
	"veriledger/pkg/domain"
	derrors "veriledger/pkg/domain-errors"
)

type transferRequest struct {
	Token  string `json:"token"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)

	var req transferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := h.engine.Transfer(ctx, caller,
		domain.TokenID(req.Token), domain.AccountAddr(req.From), domain.AccountAddr(req.To), req.Amount)
	if err != nil {
		h.logger.InfoContext(ctx, "transfer rejected",
			"request_id", middleware.GetRequestID(ctx),
			"code", string(derrors.CodeOf(err)),
		)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCheckTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)

	var req transferRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	err := h.engine.CheckTransfer(ctx, caller,
		domain.TokenID(req.Token), domain.AccountAddr(req.From), domain.AccountAddr(req.To), req.Amount)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"approved": false,
			"code":     string(derrors.CodeOf(err)),
			"message":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"approved": true})
}

type modifyBalanceRequest struct {
	Holder string `json:"holder"`
	Value  uint64 `json:"value"`
}

func (h *Handler) handleModifyBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.GetCaller(ctx)

	var req modifyBalanceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	holder, err := domain.ParseInvestorID(req.Holder)
	if err != nil {
		writeError(w, derrors.New(derrors.CodeValidation, err.Error()))
		return
	}
	if err := h.engine.ModifyBalance(ctx, caller, holder, req.Value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	events, err := h.engine.AuditTrail(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
