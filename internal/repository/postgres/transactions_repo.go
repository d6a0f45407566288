package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/tender-backend/internal/models"
	"github.com/baharkarakas/tender-backend/internal/repository"
)

type transactionsRepo struct{ pool *pgxpool.Pool }

const txnCols = `id, kind, reference, currency, total_amount,
  amount_cash, amount_upi, amount_card, amount_credit,
  total_paid, balance_due, payment_status, version, created_at, updated_at`

func scanTxn(row pgx.Row) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.Kind, &t.Reference, &t.Currency, &t.TotalAmount,
		&t.Cash, &t.UPI, &t.Card, &t.Credit,
		&t.TotalPaid, &t.BalanceDue, &t.PaymentStatus, &t.Version, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *transactionsRepo) Create(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	const q = `
INSERT INTO transactions (
  id, kind, reference, currency, total_amount,
  amount_cash, amount_upi, amount_card, amount_credit,
  total_paid, balance_due, payment_status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
RETURNING ` + txnCols
	out, err := scanTxn(r.pool.QueryRow(ctx, q,
		tx.ID, tx.Kind, tx.Reference, tx.Currency, tx.TotalAmount,
		tx.Cash, tx.UPI, tx.Card, tx.Credit,
		tx.TotalPaid, tx.BalanceDue, tx.PaymentStatus,
	))
	return out, mapErr(err)
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	t, err := scanTxn(r.pool.QueryRow(ctx, `SELECT `+txnCols+` FROM transactions WHERE id=$1`, id))
	return t, mapErr(err)
}

func (r *transactionsRepo) List(ctx context.Context, f models.TransactionFilter) ([]models.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.Kind != "" {
		add("kind = ?", f.Kind)
	}
	if f.From != nil {
		add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		add("created_at <= ?", *f.To)
	}

	q := `SELECT ` + txnCols + ` FROM transactions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	q += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Transaction{}
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *transactionsRepo) UpdateTenders(ctx context.Context, tx models.Transaction) (models.Transaction, error) {
	out, err := updateTenders(ctx, r.pool, tx)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetByID(ctx, tx.ID); gerr != nil {
			return models.Transaction{}, gerr
		}
		return models.Transaction{}, repository.ErrConflict
	}
	return out, mapErr(err)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// updateTenders is the conditional write shared by tender replacement and
// gateway settlement.
func updateTenders(ctx context.Context, q querier, tx models.Transaction) (models.Transaction, error) {
	return scanTxn(q.QueryRow(ctx, `
UPDATE transactions
   SET amount_cash=$3, amount_upi=$4, amount_card=$5, amount_credit=$6,
       total_paid=$7, balance_due=$8, payment_status=$9,
       version = version + 1, updated_at = now()
 WHERE id=$1 AND version=$2
RETURNING `+txnCols,
		tx.ID, tx.Version,
		tx.Cash, tx.UPI, tx.Card, tx.Credit,
		tx.TotalPaid, tx.BalanceDue, tx.PaymentStatus,
	))
}

func (r *transactionsRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id=$1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
