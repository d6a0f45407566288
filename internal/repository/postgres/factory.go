package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/tender-backend/internal/ledger"
	repo "github.com/baharkarakas/tender-backend/internal/repository"
)

type Repositories struct {
	Transactions repo.Transactions
	Intents      repo.PaymentIntents
	AuditLogs    repo.AuditLogs
}

func NewRepositories(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Transactions: &transactionsRepo{pool},
		Intents:      &intentsRepo{pool},
		AuditLogs:    &auditLogsRepo{pool},
	}
}

// withTx runs fn inside one read-committed transaction. Row locks taken
// with FOR UPDATE provide the isolation settlement needs.
func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// mapErr turns driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return repo.ErrConflict
		case "23503", "22P02": // foreign_key_violation, invalid_text_representation (bad uuid)
			return repo.ErrNotFound
		case "22003": // numeric_value_out_of_range
			return &ledger.ValidationError{Field: "amount", Reason: "out of range"}
		}
	}
	return err
}
