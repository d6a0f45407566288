package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/baharkarakas/tender-backend/internal/api/httpx"
	"github.com/baharkarakas/tender-backend/internal/api/validate"
	"github.com/baharkarakas/tender-backend/internal/ledger"
	"github.com/baharkarakas/tender-backend/internal/models"
	"github.com/baharkarakas/tender-backend/internal/services"
)

type TransactionHandler struct {
	Svc *services.TransactionService
}

func NewTransactionHandler(svc *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{Svc: svc}
}

var kinds = []string{string(models.KindSale), string(models.KindExpense), string(models.KindPurchase)}

type createTxnReq struct {
	Kind      string `json:"kind"`
	Reference string `json:"reference"`
	Currency  string `json:"currency"`
	allocationReq
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTxnReq
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.BadJSON(w, err)
		return
	}
	var errs validate.Errs
	errs.Add(
		validate.Required("kind", req.Kind),
		validate.OneOf("kind", req.Kind, kinds...),
		validate.MaxLen("reference", req.Reference, 128),
	)
	if err := errs.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	total, err := req.total()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := h.Svc.Create(actorCtx(r), services.NewTransaction{
		Kind:        models.TransactionKind(req.Kind),
		Reference:   req.Reference,
		Currency:    req.Currency,
		TotalAmount: total,
		Tenders:     req.tenders(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, tx)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		f    models.TransactionFilter
		errs validate.Errs
	)
	f.Kind = models.TransactionKind(q.Get("kind"))
	errs.Add(validate.OneOf("kind", q.Get("kind"), kinds...))
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := parseTime(v)
		if err != nil {
			errs.Add(&validate.ErrField{Field: p.name, Msg: "must be RFC 3339 or YYYY-MM-DD"})
			continue
		}
		*p.dst = &t
	}
	for _, p := range []struct {
		name string
		dst  *int
		min  int64
	}{{"limit", &f.Limit, 1}, {"offset", &f.Offset, 0}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs.Add(&validate.ErrField{Field: p.name, Msg: "must be an integer"})
			continue
		}
		errs.Add(validate.MinInt(p.name, int64(n), p.min))
		*p.dst = n
	}
	if err := errs.Err(); err != nil {
		writeError(w, r, err)
		return
	}

	txs, err := h.Svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": txs, "limit": effectiveLimit(f.Limit), "offset": f.Offset})
}

func effectiveLimit(n int) int {
	switch {
	case n <= 0:
		return 50
	case n > 1000:
		return 1000
	}
	return n
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

type replaceTendersReq struct {
	Version int64            `json:"version"`
	Cash    *decimal.Decimal `json:"amount_cash"`
	UPI     *decimal.Decimal `json:"amount_upi"`
	Card    *decimal.Decimal `json:"amount_card"`
	Credit  *decimal.Decimal `json:"amount_credit"`
}

// ReplaceTenders overwrites the split; omitted tenders become zero. The
// version may come from the body or an If-Match header.
func (h *TransactionHandler) ReplaceTenders(w http.ResponseWriter, r *http.Request) {
	var req replaceTendersReq
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.BadJSON(w, err)
		return
	}
	version := req.Version
	if im := strings.Trim(r.Header.Get("If-Match"), `" `); im != "" && version == 0 {
		n, err := strconv.ParseInt(im, 10, 64)
		if err != nil {
			writeError(w, r, validate.Errs{{Field: "If-Match", Msg: "must be a version number"}})
			return
		}
		version = n
	}
	tenders := allocationReq{Cash: req.Cash, UPI: req.UPI, Card: req.Card, Credit: req.Credit}.tenders()
	tx, err := h.Svc.ReplaceTenders(actorCtx(r), chi.URLParam(r, "id"), tenders, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

type paymentReq struct {
	Tender string           `json:"tender"`
	Amount *decimal.Decimal `json:"amount"`
}

func (h *TransactionHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentReq
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.BadJSON(w, err)
		return
	}
	var errs validate.Errs
	errs.Add(validate.Required("tender", req.Tender))
	if req.Amount == nil {
		errs.Add(&validate.ErrField{Field: "amount", Msg: "required"})
	} else {
		errs.Add(validate.Positive("amount", *req.Amount))
	}
	if err := errs.Err(); err != nil {
		writeError(w, r, err)
		return
	}
	tender, err := ledger.ParseTender(req.Tender)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := h.Svc.RecordPayment(actorCtx(r), chi.URLParam(r, "id"), tender, *req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.Delete(actorCtx(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TransactionHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.Svc.History(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": logs})
}
