package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/tender-backend/internal/ledger"
	"github.com/baharkarakas/tender-backend/internal/models"
	"github.com/baharkarakas/tender-backend/internal/repository"
)

func seed(t *testing.T, s *Store) (models.Transaction, models.PaymentIntent) {
	t.Helper()
	ctx := context.Background()
	tx, err := s.Transactions().Create(ctx, models.Transaction{
		Kind: models.KindSale, Currency: "INR", TotalAmount: decimal.NewFromInt(100),
		BalanceDue: decimal.NewFromInt(100), PaymentStatus: ledger.Unpaid,
	})
	if err != nil {
		t.Fatal(err)
	}
	in, err := s.Intents().Create(ctx, models.PaymentIntent{
		OrderID: "order_1", TransactionID: tx.ID, Tender: ledger.Card,
		Amount: decimal.NewFromInt(100), AmountMinor: 10000, Currency: "INR",
	})
	if err != nil {
		t.Fatal(err)
	}
	return tx, in
}

func addCard(tx models.Transaction, in models.PaymentIntent) (models.Transaction, error) {
	tx.Card = tx.Card.Add(in.Amount)
	return tx, nil
}

func TestUpdateTendersChecksVersion(t *testing.T) {
	s := New()
	ctx := context.Background()
	tx, _ := seed(t, s)

	tx.Cash = decimal.NewFromInt(10)
	up, err := s.Transactions().UpdateTenders(ctx, tx)
	if err != nil || up.Version != 2 {
		t.Fatalf("update = %+v, %v", up, err)
	}
	if _, err := s.Transactions().UpdateTenders(ctx, tx); !errors.Is(err, repository.ErrConflict) {
		t.Errorf("stale update err = %v", err)
	}
	tx.ID = "missing"
	if _, err := s.Transactions().UpdateTenders(ctx, tx); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing update err = %v", err)
	}
}

func TestSettleOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s)

	in, tx, applied, err := s.Intents().Settle(ctx, "order_1", "pay_1", addCard)
	if err != nil || !applied || in.Status != models.IntentVerified || !tx.Card.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("settle = %+v %+v %v %v", in, tx, applied, err)
	}

	_, tx, applied, err = s.Intents().Settle(ctx, "order_1", "pay_1", addCard)
	if err != nil || applied || !tx.Card.Equal(decimal.NewFromInt(100)) {
		t.Errorf("replay = %+v %v %v", tx, applied, err)
	}
	if _, _, _, err := s.Intents().Settle(ctx, "order_1", "pay_2", addCard); !errors.Is(err, repository.ErrIntentClosed) {
		t.Errorf("other payment err = %v", err)
	}
}

func TestHasOpen(t *testing.T) {
	s := New()
	ctx := context.Background()
	tx, in := seed(t, s)

	open, err := s.Intents().HasOpen(ctx, tx.ID, in.CreatedAt.Add(-time.Minute))
	if err != nil || !open {
		t.Fatalf("fresh intent: open = %v, %v", open, err)
	}
	if open, _ := s.Intents().HasOpen(ctx, tx.ID, in.CreatedAt.Add(time.Minute)); open {
		t.Error("intent older than since counted as open")
	}
	if open, _ := s.Intents().HasOpen(ctx, "other", in.CreatedAt.Add(-time.Minute)); open {
		t.Error("intent of another transaction counted as open")
	}
	if _, _, _, err := s.Intents().Settle(ctx, "order_1", "pay_1", addCard); err != nil {
		t.Fatal(err)
	}
	if open, _ := s.Intents().HasOpen(ctx, tx.ID, in.CreatedAt.Add(-time.Minute)); open {
		t.Error("verified intent counted as open")
	}
}

func TestSettleFuncErrorLeavesIntentOpen(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s)

	boom := errors.New("boom")
	_, _, applied, err := s.Intents().Settle(ctx, "order_1", "pay_1", func(tx models.Transaction, _ models.PaymentIntent) (models.Transaction, error) {
		return tx, boom
	})
	if !errors.Is(err, boom) || applied {
		t.Fatalf("err = %v applied = %v", err, applied)
	}
	in, _ := s.Intents().GetByOrderID(ctx, "order_1")
	if in.Status != models.IntentCreated {
		t.Errorf("status = %s", in.Status)
	}
}

func TestDeleteCascadesIntents(t *testing.T) {
	s := New()
	ctx := context.Background()
	tx, _ := seed(t, s)

	if err := s.Transactions().Delete(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Intents().GetByOrderID(ctx, "order_1"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("intent survived delete: %v", err)
	}
	if _, err := s.Intents().Create(ctx, models.PaymentIntent{OrderID: "order_2", TransactionID: tx.ID}); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("intent for deleted tx err = %v", err)
	}
}

func TestAuditNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	id := "t1"
	for _, action := range []string{"created", "tenders_replace", "deleted"} {
		if err := s.AuditLogs().Create(ctx, models.AuditLog{EntityType: models.EntityTransaction, EntityID: &id, Action: action}); err != nil {
			t.Fatal(err)
		}
	}
	logs, _ := s.AuditLogs().ListByEntity(ctx, models.EntityTransaction, id, 2)
	if len(logs) != 2 || logs[0].Action != "deleted" || logs[1].Action != "tenders_replace" {
		t.Errorf("logs = %+v", logs)
	}
}
