package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/tender-backend/internal/gateway"
	"github.com/baharkarakas/tender-backend/internal/ledger"
	"github.com/baharkarakas/tender-backend/internal/lock"
	"github.com/baharkarakas/tender-backend/internal/metrics"
	"github.com/baharkarakas/tender-backend/internal/models"
	repo "github.com/baharkarakas/tender-backend/internal/repository"
)

// Gateway is the part of the payment provider the service talks to.
type Gateway interface {
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (gateway.Order, error)
	KeyID() string
}

// Intent is what the client needs to open the gateway checkout.
type Intent struct {
	IntentID      string          `json:"intent_id"`
	AmountMinor   int64           `json:"amount_minor"`
	Currency      string          `json:"currency"`
	GatewayKeyID  string          `json:"gateway_key_id"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Tender        ledger.Tender   `json:"tender,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
}

// Callback carries the three values the checkout hands back to the client.
type Callback struct {
	OrderID   string `json:"gateway_order_id"`
	PaymentID string `json:"gateway_payment_id"`
	Signature string `json:"gateway_signature"`
}

type Outcome string

const (
	Verified           Outcome = "verified"
	VerificationFailed Outcome = "verification_failed"
)

// Failure reasons reported with VerificationFailed.
const (
	ReasonMissingFields     = "missing_fields"
	ReasonUnknownIntent     = "unknown_intent"
	ReasonSignatureMismatch = "signature_mismatch"
	ReasonIntentClosed      = "intent_closed"
)

type Verification struct {
	Outcome       Outcome             `json:"status"`
	Reason        string              `json:"reason,omitempty"`
	TransactionID string              `json:"transaction_id,omitempty"`
	Transaction   *models.Transaction `json:"transaction,omitempty"`
	// Replayed is set when the same payment was already credited.
	Replayed bool `json:"replayed,omitempty"`
}

type PaymentService struct {
	gw       Gateway
	trx      repo.Transactions
	intents  repo.PaymentIntents
	locks    lock.Locker
	audit    *Auditor
	log      *slog.Logger
	secret   string
	currency string
}

type PaymentDeps struct {
	Gateway       Gateway
	Transactions  repo.Transactions
	Intents       repo.PaymentIntents
	Locks         lock.Locker
	Audit         *Auditor
	Logger        *slog.Logger
	SigningSecret string
	Currency      string
}

func NewPaymentService(d PaymentDeps) *PaymentService {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Currency == "" {
		d.Currency = "INR"
	}
	return &PaymentService{
		gw:       d.Gateway,
		trx:      d.Transactions,
		intents:  d.Intents,
		locks:    d.Locks,
		audit:    d.Audit,
		log:      d.Logger,
		secret:   d.SigningSecret,
		currency: strings.ToUpper(d.Currency),
	}
}

// CreateIntent registers an order of amount with the gateway. Gateway
// failures come back as *gateway.UnavailableError.
func (s *PaymentService) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, notes map[string]string) (Intent, error) {
	if !amount.IsPositive() {
		return Intent{}, &ledger.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if currency == "" {
		currency = s.currency
	}
	currency = strings.ToUpper(currency)
	minor, err := ledger.ToMinorUnits(amount, currency)
	if err != nil {
		return Intent{}, err
	}

	order, err := s.gw.CreateOrder(ctx, gateway.OrderRequest{
		AmountMinor: minor,
		Currency:    currency,
		Receipt:     notes["receipt"],
		Notes:       notes,
	})
	if err != nil {
		metrics.GatewayErrors.WithLabelValues("create_order").Inc()
		s.log.Warn("gateway order failed", "amount_minor", minor, "currency", currency, "err", err)
		return Intent{}, err
	}
	if order.AmountMinor != 0 && order.AmountMinor != minor {
		metrics.GatewayErrors.WithLabelValues("create_order").Inc()
		return Intent{}, &gateway.UnavailableError{
			Op:  "create order",
			Err: fmt.Errorf("gateway echoed amount %d, requested %d", order.AmountMinor, minor),
		}
	}
	metrics.IntentsCreated.WithLabelValues(currency).Inc()
	return Intent{
		IntentID:     order.ID,
		AmountMinor:  minor,
		Currency:     currency,
		GatewayKeyID: s.gw.KeyID(),
		Amount:       amount,
	}, nil
}

// BeginCheckout opens a gateway order for the current balance due of a
// transaction and remembers which tender the money will land on.
func (s *PaymentService) BeginCheckout(ctx context.Context, txnID string, tender ledger.Tender) (Intent, error) {
	if !tender.Settled() {
		return Intent{}, &ledger.AllocationError{Tender: tender, Reason: "checkout must target a settled tender"}
	}
	unlock, err := s.locks.Lock(ctx, txnLockKey(txnID))
	if err != nil {
		return Intent{}, err
	}
	defer unlock()

	tx, err := s.trx.GetByID(ctx, txnID)
	if err != nil {
		return Intent{}, err
	}
	due := tx.BalanceDue
	if !due.IsPositive() {
		return Intent{}, &ledger.AllocationError{Tender: tender, Amount: due, Reason: "nothing left to pay"}
	}

	intent, err := s.CreateIntent(ctx, due, tx.Currency, map[string]string{
		"transaction_id": tx.ID,
		"kind":           string(tx.Kind),
		"receipt":        receipt(tx),
	})
	if err != nil {
		return Intent{}, err
	}
	if _, err := s.intents.Create(ctx, models.PaymentIntent{
		OrderID:       intent.IntentID,
		TransactionID: tx.ID,
		Tender:        tender,
		Amount:        due,
		AmountMinor:   intent.AmountMinor,
		Currency:      intent.Currency,
	}); err != nil {
		return Intent{}, err
	}
	intent.TransactionID = tx.ID
	intent.Tender = tender
	s.audit.Record(ctx, models.EntityIntent, intent.IntentID, "created", map[string]any{
		"transaction_id": tx.ID,
		"tender":         string(tender),
		"amount_minor":   intent.AmountMinor,
		"currency":       intent.Currency,
	})
	return intent, nil
}

func receipt(tx models.Transaction) string {
	if tx.Reference != "" {
		return tx.Reference
	}
	return tx.ID
}

// VerifyCallback checks the gateway signature and, on success, credits the
// intent's amount to its transaction exactly once. Rejections are reported
// in the Verification; the error is reserved for infrastructure failures.
func (s *PaymentService) VerifyCallback(ctx context.Context, cb Callback) (Verification, error) {
	cb.OrderID = strings.TrimSpace(cb.OrderID)
	cb.PaymentID = strings.TrimSpace(cb.PaymentID)
	cb.Signature = strings.TrimSpace(cb.Signature)
	if cb.OrderID == "" || cb.PaymentID == "" || cb.Signature == "" {
		return s.reject(ctx, cb, "", ReasonMissingFields), nil
	}

	in, err := s.intents.GetByOrderID(ctx, cb.OrderID)
	if errors.Is(err, repo.ErrNotFound) {
		return s.reject(ctx, cb, "", ReasonUnknownIntent), nil
	}
	if err != nil {
		return Verification{}, err
	}

	// A bad signature never touches the intent; the genuine callback for
	// the same order must still be able to settle it.
	if !gateway.VerifySignature(s.secret, cb.OrderID, cb.PaymentID, cb.Signature) {
		return s.reject(ctx, cb, in.TransactionID, ReasonSignatureMismatch), nil
	}

	switch {
	case in.Status == models.IntentVerified && in.PaymentID == cb.PaymentID:
		return s.replayed(ctx, in)
	case in.Status != models.IntentCreated:
		return s.reject(ctx, cb, in.TransactionID, ReasonIntentClosed), nil
	}

	unlock, err := s.locks.Lock(ctx, txnLockKey(in.TransactionID))
	if err != nil {
		return Verification{}, err
	}
	defer unlock()

	in, tx, applied, err := s.intents.Settle(ctx, cb.OrderID, cb.PaymentID, settle)
	switch {
	case errors.Is(err, repo.ErrIntentClosed):
		return s.reject(ctx, cb, in.TransactionID, ReasonIntentClosed), nil
	case errors.Is(err, repo.ErrNotFound):
		return s.reject(ctx, cb, "", ReasonUnknownIntent), nil
	case err != nil:
		return Verification{}, err
	}
	if !applied {
		metrics.Verifications.WithLabelValues(string(Verified), "replay").Inc()
		return Verification{Outcome: Verified, TransactionID: tx.ID, Transaction: &tx, Replayed: true}, nil
	}

	metrics.Verifications.WithLabelValues(string(Verified), "").Inc()
	metrics.AllocationsTotal.WithLabelValues(string(tx.Kind), "gateway").Inc()
	if tx.PaymentStatus == ledger.Overpaid {
		s.log.Warn("gateway payment overpaid transaction",
			"transaction_id", tx.ID, "order_id", in.OrderID, "balance_due", tx.BalanceDue.StringFixed(ledger.Scale))
	}
	s.log.Info("payment verified",
		"transaction_id", tx.ID, "order_id", in.OrderID, "payment_id", in.PaymentID,
		"tender", in.Tender, "amount", in.Amount.StringFixed(ledger.Scale))
	s.audit.Record(ctx, models.EntityIntent, in.OrderID, "verified", map[string]any{
		"transaction_id": tx.ID,
		"payment_id":     in.PaymentID,
		"tender":         string(in.Tender),
		"amount":         in.Amount.StringFixed(ledger.Scale),
	})
	return Verification{Outcome: Verified, TransactionID: tx.ID, Transaction: &tx}, nil
}

// settle credits the intent amount onto its tender. Bounds are not
// re-checked: the money has already been captured, and an overshoot shows
// up as an overpaid status.
func settle(tx models.Transaction, in models.PaymentIntent) (models.Transaction, error) {
	next, err := tx.Tenders.Apply(in.Tender, in.Amount)
	if err != nil {
		return tx, err
	}
	tx.Tenders = next
	totals, err := tx.Allocation().Totals()
	if err != nil {
		return tx, err
	}
	return tx.WithTotals(totals), nil
}

func (s *PaymentService) replayed(ctx context.Context, in models.PaymentIntent) (Verification, error) {
	tx, err := s.trx.GetByID(ctx, in.TransactionID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return Verification{}, err
	}
	metrics.Verifications.WithLabelValues(string(Verified), "replay").Inc()
	v := Verification{Outcome: Verified, TransactionID: in.TransactionID, Replayed: true}
	if err == nil {
		v.Transaction = &tx
	}
	return v, nil
}

func (s *PaymentService) reject(ctx context.Context, cb Callback, txnID, reason string) Verification {
	metrics.Verifications.WithLabelValues(string(VerificationFailed), reason).Inc()
	s.log.Warn("payment callback rejected",
		"security_event", true,
		"reason", reason,
		"order_id", cb.OrderID,
		"payment_id", cb.PaymentID,
		"transaction_id", txnID,
	)
	if cb.OrderID != "" && reason != ReasonUnknownIntent {
		s.audit.Record(ctx, models.EntityIntent, cb.OrderID, "verification_failed", map[string]any{
			"reason":     reason,
			"payment_id": cb.PaymentID,
		})
	}
	return Verification{Outcome: VerificationFailed, Reason: reason, TransactionID: txnID}
}
