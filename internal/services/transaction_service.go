package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/tender-backend/internal/ledger"
	"github.com/baharkarakas/tender-backend/internal/lock"
	"github.com/baharkarakas/tender-backend/internal/metrics"
	"github.com/baharkarakas/tender-backend/internal/models"
	repo "github.com/baharkarakas/tender-backend/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 1000

	DefaultCheckoutWindow = 15 * time.Minute
)

// ErrCheckoutPending means a gateway checkout opened for the transaction
// has not been verified yet, so its split must not change underneath it.
var ErrCheckoutPending = errors.New("a gateway checkout is pending for this transaction")

type TransactionService struct {
	trx      repo.Transactions
	intents  repo.PaymentIntents
	locks    lock.Locker
	audit    *Auditor
	currency string
	window   time.Duration
	now      func() time.Time
}

type TransactionDeps struct {
	Transactions repo.Transactions
	// Intents enables the pending-checkout guard when set.
	Intents repo.PaymentIntents
	Locks   lock.Locker
	Audit   *Auditor
	// Currency defaults to INR.
	Currency string
	// CheckoutWindow is how long an unverified checkout blocks manual
	// edits. Zero means DefaultCheckoutWindow, negative disables the guard.
	CheckoutWindow time.Duration
}

func NewTransactionService(d TransactionDeps) *TransactionService {
	if d.Currency == "" {
		d.Currency = "INR"
	}
	if d.CheckoutWindow == 0 {
		d.CheckoutWindow = DefaultCheckoutWindow
	}
	return &TransactionService{
		trx:      d.Transactions,
		intents:  d.Intents,
		locks:    d.Locks,
		audit:    d.Audit,
		currency: strings.ToUpper(d.Currency),
		window:   d.CheckoutWindow,
		now:      time.Now,
	}
}

// NewTransaction is the input for Create. A nil TotalAmount is only
// accepted for expenses, whose total is then the sum of all tenders.
type NewTransaction struct {
	Kind        models.TransactionKind
	Reference   string
	Currency    string
	TotalAmount *decimal.Decimal
	Tenders     ledger.Tenders
}

// prepare runs the full write-path check: tender signs, amount precision,
// derived totals and the paid/credit bounds.
func prepare(a ledger.Allocation) (ledger.Totals, error) {
	totals, err := check(a)
	if err != nil {
		countRejection(err)
	}
	return totals, err
}

func countRejection(err error) {
	var ae *ledger.AllocationError
	if errors.As(err, &ae) {
		metrics.AllocationsRejected.WithLabelValues("allocation").Inc()
	} else {
		metrics.AllocationsRejected.WithLabelValues("validation").Inc()
	}
}

func check(a ledger.Allocation) (ledger.Totals, error) {
	if err := ledger.ValidateAllocation(a); err != nil {
		return ledger.Totals{}, err
	}
	if err := ledger.CheckAllocation(a); err != nil {
		return ledger.Totals{}, err
	}
	totals, err := a.Totals()
	if err != nil {
		return ledger.Totals{}, err
	}
	if err := ledger.CheckInvariants(a); err != nil {
		return ledger.Totals{}, err
	}
	return totals, nil
}

func (s *TransactionService) Create(ctx context.Context, in NewTransaction) (models.Transaction, error) {
	if !in.Kind.Valid() {
		return models.Transaction{}, &ledger.ValidationError{Field: "kind", Reason: "must be one of sale, expense, purchase"}
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.currency
	}
	if len(currency) != 3 {
		return models.Transaction{}, &ledger.ValidationError{Field: "currency", Reason: "must be a 3-letter ISO 4217 code"}
	}

	var total decimal.Decimal
	switch {
	case in.TotalAmount != nil:
		total = *in.TotalAmount
	case in.Kind == models.KindExpense:
		err := ledger.ValidateAllocation(ledger.Allocation{Tenders: in.Tenders})
		if err == nil {
			err = ledger.CheckTenders(in.Tenders)
		}
		if err != nil {
			countRejection(err)
			return models.Transaction{}, err
		}
		total = in.Tenders.Sum()
	default:
		return models.Transaction{}, &ledger.ValidationError{Field: "total_amount", Reason: "required"}
	}

	tx := models.Transaction{
		Kind:        in.Kind,
		Reference:   strings.TrimSpace(in.Reference),
		Currency:    currency,
		TotalAmount: total,
		Tenders:     in.Tenders,
	}
	totals, err := prepare(tx.Allocation())
	if err != nil {
		return models.Transaction{}, err
	}
	tx, err = s.trx.Create(ctx, tx.WithTotals(totals))
	if err != nil {
		return models.Transaction{}, err
	}
	metrics.AllocationsTotal.WithLabelValues(string(tx.Kind), "create").Inc()
	s.audit.Record(ctx, models.EntityTransaction, tx.ID, "created", snapshot(tx))
	return tx, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (models.Transaction, error) {
	return s.trx.GetByID(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, &ledger.ValidationError{Field: "kind", Reason: "must be one of sale, expense, purchase"}
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.trx.List(ctx, f)
}

// ReplaceTenders overwrites the whole split. A positive expectedVersion
// makes the write conditional on the caller's copy being current.
func (s *TransactionService) ReplaceTenders(ctx context.Context, id string, tenders ledger.Tenders, expectedVersion int64) (models.Transaction, error) {
	return s.mutate(ctx, id, "replace", func(tx models.Transaction) (models.Transaction, error) {
		if expectedVersion > 0 && tx.Version != expectedVersion {
			return tx, repo.ErrConflict
		}
		tx.Tenders = tenders
		return tx, nil
	})
}

// RecordPayment adds amount to a settled tender, converting outstanding
// credit first.
func (s *TransactionService) RecordPayment(ctx context.Context, id string, tender ledger.Tender, amount decimal.Decimal) (models.Transaction, error) {
	if err := ledger.CheckAmount("amount", amount); err != nil {
		return models.Transaction{}, err
	}
	return s.mutate(ctx, id, "payment", func(tx models.Transaction) (models.Transaction, error) {
		next, err := tx.Tenders.Apply(tender, amount)
		if err != nil {
			return tx, err
		}
		tx.Tenders = next
		return tx, nil
	})
}

func (s *TransactionService) mutate(ctx context.Context, id, op string, fn func(models.Transaction) (models.Transaction, error)) (models.Transaction, error) {
	unlock, err := s.locks.Lock(ctx, txnLockKey(id))
	if err != nil {
		return models.Transaction{}, err
	}
	defer unlock()

	cur, err := s.trx.GetByID(ctx, id)
	if err != nil {
		return models.Transaction{}, err
	}
	if err := s.checkoutPending(ctx, id); err != nil {
		return models.Transaction{}, err
	}
	next, err := fn(cur)
	if err != nil {
		return models.Transaction{}, err
	}
	totals, err := prepare(next.Allocation())
	if err != nil {
		return models.Transaction{}, err
	}
	out, err := s.trx.UpdateTenders(ctx, next.WithTotals(totals))
	if err != nil {
		return models.Transaction{}, err
	}
	metrics.AllocationsTotal.WithLabelValues(string(out.Kind), op).Inc()
	details := snapshot(out)
	details["previous"] = snapshot(cur)
	s.audit.Record(ctx, models.EntityTransaction, out.ID, "tenders_"+op, details)
	return out, nil
}

// checkoutPending must run under the transaction lock; BeginCheckout
// records intents under the same lock.
func (s *TransactionService) checkoutPending(ctx context.Context, id string) error {
	if s.intents == nil || s.window < 0 {
		return nil
	}
	open, err := s.intents.HasOpen(ctx, id, s.now().Add(-s.window))
	if err != nil {
		return err
	}
	if open {
		metrics.AllocationsRejected.WithLabelValues("checkout_pending").Inc()
		return ErrCheckoutPending
	}
	return nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	unlock, err := s.locks.Lock(ctx, txnLockKey(id))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.trx.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, models.EntityTransaction, id, "deleted", nil)
	return nil
}

func (s *TransactionService) History(ctx context.Context, id string, limit int) ([]models.AuditLog, error) {
	if _, err := s.trx.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, models.EntityTransaction, id, limit)
}

func txnLockKey(id string) string { return "txn:" + id }

func snapshot(tx models.Transaction) map[string]any {
	return map[string]any{
		"total_amount":   tx.TotalAmount.StringFixed(ledger.Scale),
		"amount_cash":    tx.Cash.StringFixed(ledger.Scale),
		"amount_upi":     tx.UPI.StringFixed(ledger.Scale),
		"amount_card":    tx.Card.StringFixed(ledger.Scale),
		"amount_credit":  tx.Credit.StringFixed(ledger.Scale),
		"balance_due":    tx.BalanceDue.StringFixed(ledger.Scale),
		"payment_status": string(tx.PaymentStatus),
		"version":        tx.Version,
	}
}
