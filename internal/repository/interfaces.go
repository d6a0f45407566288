package repository

import (
	"context"
	"errors"
	"time"

	"github.com/baharkarakas/tender-backend/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the row changed underneath the caller (stale
	// version) or a unique key already exists.
	ErrConflict = errors.New("conflict")
	// ErrIntentClosed means the intent already reached a terminal status
	// that the requested transition does not match.
	ErrIntentClosed = errors.New("payment intent already resolved")
)

type Transactions interface {
	Create(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error)
	// UpdateTenders stores tenders and derived totals only if the stored
	// version still equals tx.Version, then bumps the version.
	UpdateTenders(ctx context.Context, tx models.Transaction) (models.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// SettleFunc returns the transaction as it should look once the intent's
// payment has been applied.
type SettleFunc func(tx models.Transaction, in models.PaymentIntent) (models.Transaction, error)

type PaymentIntents interface {
	Create(ctx context.Context, in models.PaymentIntent) (models.PaymentIntent, error)
	GetByOrderID(ctx context.Context, orderID string) (models.PaymentIntent, error)
	// HasOpen reports whether transactionID has an intent still in created
	// status that was opened after since.
	HasOpen(ctx context.Context, transactionID string, since time.Time) (bool, error)
	// Settle locks the transaction and the intent in one DB transaction.
	// A created intent is marked verified with paymentID and the result of
	// fn is written back; applied reports whether that happened. An intent
	// already verified with the same paymentID is returned with
	// applied=false. An intent verified with another payment yields
	// ErrIntentClosed.
	Settle(ctx context.Context, orderID, paymentID string, fn SettleFunc) (in models.PaymentIntent, tx models.Transaction, applied bool, err error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
	ListByEntity(ctx context.Context, entityType, entityID string, limit int) ([]models.AuditLog, error)
}
