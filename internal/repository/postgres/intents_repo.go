package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/tender-backend/internal/models"
	"github.com/baharkarakas/tender-backend/internal/repository"
)

type intentsRepo struct{ pool *pgxpool.Pool }

const intentCols = `order_id, transaction_id, tender, amount, amount_minor, currency,
  status, coalesce(payment_id, ''), created_at, resolved_at`

func scanIntent(row pgx.Row) (models.PaymentIntent, error) {
	var in models.PaymentIntent
	err := row.Scan(&in.OrderID, &in.TransactionID, &in.Tender, &in.Amount, &in.AmountMinor, &in.Currency,
		&in.Status, &in.PaymentID, &in.CreatedAt, &in.ResolvedAt)
	return in, err
}

func (r *intentsRepo) Create(ctx context.Context, in models.PaymentIntent) (models.PaymentIntent, error) {
	out, err := scanIntent(r.pool.QueryRow(ctx, `
INSERT INTO payment_intents (order_id, transaction_id, tender, amount, amount_minor, currency, status)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+intentCols,
		in.OrderID, in.TransactionID, in.Tender, in.Amount, in.AmountMinor, in.Currency, models.IntentCreated,
	))
	return out, mapErr(err)
}

func (r *intentsRepo) GetByOrderID(ctx context.Context, orderID string) (models.PaymentIntent, error) {
	in, err := scanIntent(r.pool.QueryRow(ctx, `SELECT `+intentCols+` FROM payment_intents WHERE order_id=$1`, orderID))
	return in, mapErr(err)
}

func (r *intentsRepo) HasOpen(ctx context.Context, transactionID string, since time.Time) (bool, error) {
	var open bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM payment_intents
  WHERE transaction_id=$1 AND status=$2 AND created_at > $3
)`, transactionID, models.IntentCreated, since).Scan(&open)
	return open, mapErr(err)
}

func (r *intentsRepo) Settle(ctx context.Context, orderID, paymentID string, fn repository.SettleFunc) (in models.PaymentIntent, txn models.Transaction, applied bool, err error) {
	// Lock order is transaction then intent, same as the ON DELETE CASCADE
	// path, so a concurrent delete cannot deadlock with a settlement.
	in, err = r.GetByOrderID(ctx, orderID)
	if err != nil {
		return in, txn, false, err
	}
	err = withTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		txn, err = scanTxn(tx.QueryRow(ctx, `SELECT `+txnCols+` FROM transactions WHERE id=$1 FOR UPDATE`, in.TransactionID))
		if err != nil {
			return mapErr(err)
		}
		in, err = scanIntent(tx.QueryRow(ctx, `SELECT `+intentCols+` FROM payment_intents WHERE order_id=$1 FOR UPDATE`, orderID))
		if err != nil {
			return mapErr(err)
		}
		switch {
		case in.Status == models.IntentVerified && in.PaymentID == paymentID:
			return nil
		case in.Status != models.IntentCreated:
			return repository.ErrIntentClosed
		}

		next, err := fn(txn, in)
		if err != nil {
			return err
		}
		if txn, err = updateTenders(ctx, tx, next); err != nil {
			return mapErr(err)
		}
		in, err = scanIntent(tx.QueryRow(ctx, `
UPDATE payment_intents
   SET status=$2, payment_id=$3, resolved_at=now()
 WHERE order_id=$1 AND status=$4
RETURNING `+intentCols,
			orderID, models.IntentVerified, paymentID, models.IntentCreated))
		if err != nil {
			return mapErr(err)
		}
		applied = true
		return nil
	})
	return in, txn, applied, err
}
