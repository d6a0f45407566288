package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/tender-backend/internal/ledger"
)

type IntentStatus string

const (
	IntentCreated  IntentStatus = "created"
	IntentVerified IntentStatus = "verified"
)

// PaymentIntent links a gateway order to the transaction it pays for.
// Only a callback with a valid signature moves it out of created.
type PaymentIntent struct {
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	Tender        ledger.Tender   `json:"tender"`
	Amount        decimal.Decimal `json:"amount"`
	AmountMinor   int64           `json:"amount_minor"`
	Currency      string          `json:"currency"`
	Status        IntentStatus    `json:"status"`
	PaymentID     string          `json:"payment_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}
