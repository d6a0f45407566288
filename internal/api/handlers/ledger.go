package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/tender-backend/internal/api/httpx"
	"github.com/baharkarakas/tender-backend/internal/ledger"
)

// allocationReq is the shared tender body. net_amount is accepted as an
// alias of total_amount.
type allocationReq struct {
	TotalAmount *decimal.Decimal `json:"total_amount"`
	NetAmount   *decimal.Decimal `json:"net_amount"`
	Cash        *decimal.Decimal `json:"amount_cash"`
	UPI         *decimal.Decimal `json:"amount_upi"`
	Card        *decimal.Decimal `json:"amount_card"`
	Credit      *decimal.Decimal `json:"amount_credit"`
}

func (a allocationReq) total() (*decimal.Decimal, error) {
	for _, f := range []struct {
		name string
		v    *decimal.Decimal
	}{{"total_amount", a.TotalAmount}, {"net_amount", a.NetAmount}} {
		if f.v == nil {
			continue
		}
		if err := ledger.CheckAmount(f.name, *f.v); err != nil {
			return nil, err
		}
	}
	switch {
	case a.TotalAmount != nil && a.NetAmount != nil && !a.TotalAmount.Equal(*a.NetAmount):
		return nil, &ledger.ValidationError{Field: "net_amount", Reason: "conflicts with total_amount"}
	case a.TotalAmount != nil:
		return a.TotalAmount, nil
	default:
		return a.NetAmount, nil
	}
}

func (a allocationReq) tenders() ledger.Tenders {
	v := func(d *decimal.Decimal) decimal.Decimal {
		if d == nil {
			return decimal.Zero
		}
		return *d
	}
	return ledger.Tenders{Cash: v(a.Cash), UPI: v(a.UPI), Card: v(a.Card), Credit: v(a.Credit)}
}

type totalsResp struct {
	ledger.Totals
	PaymentStatus ledger.PaymentStatus `json:"payment_status"`
}

type LedgerHandler struct{}

func NewLedgerHandler() *LedgerHandler { return &LedgerHandler{} }

// Totals is a stateless preview of what a split would store. It applies
// the sign and precision checks but not the paid/credit bounds.
func (h *LedgerHandler) Totals(w http.ResponseWriter, r *http.Request) {
	var req allocationReq
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.BadJSON(w, err)
		return
	}
	total, err := req.total()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if total == nil {
		writeError(w, r, &ledger.ValidationError{Field: "total_amount", Reason: "required"})
		return
	}
	a := ledger.Allocation{TotalAmount: *total, Tenders: req.tenders()}
	if err := ledger.ValidateAllocation(a); err != nil {
		writeError(w, r, err)
		return
	}
	if err := ledger.CheckAllocation(a); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := a.Totals()
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, totalsResp{Totals: t, PaymentStatus: ledger.StatusOf(a.TotalAmount, t)})
}
