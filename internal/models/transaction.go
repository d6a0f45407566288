package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/tender-backend/internal/ledger"
)

type TransactionKind string

const (
	KindSale     TransactionKind = "sale"
	KindExpense  TransactionKind = "expense"
	KindPurchase TransactionKind = "purchase"
)

func (k TransactionKind) Valid() bool {
	return k == KindSale || k == KindExpense || k == KindPurchase
}

// Transaction is a sale, expense or purchase with its tender split.
// TotalPaid, BalanceDue and PaymentStatus are derived by the ledger and
// stored alongside the tenders.
type Transaction struct {
	ID          string          `json:"id"`
	Kind        TransactionKind `json:"kind"`
	Reference   string          `json:"reference,omitempty"`
	Currency    string          `json:"currency"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ledger.Tenders
	TotalPaid     decimal.Decimal      `json:"total_paid"`
	BalanceDue    decimal.Decimal      `json:"balance_due"`
	PaymentStatus ledger.PaymentStatus `json:"payment_status"`
	Version       int64                `json:"version"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func (t Transaction) Allocation() ledger.Allocation {
	return ledger.Allocation{TotalAmount: t.TotalAmount, Tenders: t.Tenders}
}

// WithTotals copies derived fields onto t.
func (t Transaction) WithTotals(tot ledger.Totals) Transaction {
	t.TotalPaid = tot.TotalPaid
	t.BalanceDue = tot.BalanceDue
	t.PaymentStatus = ledger.StatusOf(t.TotalAmount, tot)
	return t
}

type TransactionFilter struct {
	Kind   TransactionKind
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}
