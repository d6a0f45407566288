package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/tender-backend/internal/api/httpx"
	"github.com/baharkarakas/tender-backend/internal/api/validate"
	"github.com/baharkarakas/tender-backend/internal/ledger"
	"github.com/baharkarakas/tender-backend/internal/services"
)

type PaymentHandler struct {
	Svc *services.PaymentService
}

func NewPaymentHandler(svc *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{Svc: svc}
}

var settledTenders = []string{string(ledger.Cash), string(ledger.UPI), string(ledger.Card)}

type checkoutReq struct {
	Tender string `json:"tender"`
}

// Checkout opens a gateway order for the transaction's balance due.
func (h *PaymentHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	req := checkoutReq{Tender: string(ledger.UPI)}
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.BadJSON(w, err)
			return
		}
	}
	var errs validate.Errs
	errs.Add(validate.OneOf("tender", req.Tender, settledTenders...))
	if err := errs.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Tender == "" {
		req.Tender = string(ledger.UPI)
	}
	in, err := h.Svc.BeginCheckout(actorCtx(r), chi.URLParam(r, "id"), ledger.Tender(req.Tender))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, in)
}

type intentReq struct {
	Amount   *decimal.Decimal  `json:"amount"`
	Currency string            `json:"currency"`
	Notes    map[string]string `json:"notes"`
}

// CreateIntent registers a bare gateway order not tied to a transaction.
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req intentReq
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.BadJSON(w, err)
		return
	}
	if req.Amount == nil {
		writeError(w, r, validate.Errs{{Field: "amount", Msg: "required"}})
		return
	}
	in, err := h.Svc.CreateIntent(actorCtx(r), *req.Amount, req.Currency, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, in)
}

// Verify handles the client-relayed checkout callback.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var cb services.Callback
	if err := httpx.DecodeJSON(w, r, &cb); err != nil {
		httpx.BadJSON(w, err)
		return
	}
	v, err := h.Svc.VerifyCallback(actorCtx(r), cb)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if v.Outcome != services.Verified {
		httpx.WriteError(w, http.StatusBadRequest, "verification_failed", "payment verification failed",
			map[string]string{"reason": v.Reason})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}
