package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/baharkarakas/tender-backend/internal/gateway"
	"github.com/baharkarakas/tender-backend/internal/ledger"
	"github.com/baharkarakas/tender-backend/internal/lock"
	"github.com/baharkarakas/tender-backend/internal/models"
	repo "github.com/baharkarakas/tender-backend/internal/repository"
	"github.com/baharkarakas/tender-backend/internal/repository/memory"
)

const testSecret = "whsec_test"

type stubGateway struct {
	mu    sync.Mutex
	n     int
	err   error
	calls []gateway.OrderRequest
}

func (g *stubGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return gateway.Order{}, g.err
	}
	g.n++
	return gateway.Order{
		ID:          "order_" + string(rune('A'+g.n-1)),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Status:      "created",
	}, nil
}

func (g *stubGateway) KeyID() string { return "rzp_test_key" }

type fixture struct {
	store *memory.Store
	gw    *stubGateway
	txns  *TransactionService
	pays  *PaymentService
}

func newFixture() *fixture {
	st := memory.New()
	gw := &stubGateway{}
	locks := lock.NewLocal()
	audit := NewAuditor(st.AuditLogs(), nil)
	return &fixture{
		store: st,
		gw:    gw,
		txns: NewTransactionService(TransactionDeps{
			Transactions: st.Transactions(),
			Intents:      st.Intents(),
			Locks:        locks,
			Audit:        audit,
			Currency:     "INR",
		}),
		pays: NewPaymentService(PaymentDeps{
			Gateway:       gw,
			Transactions:  st.Transactions(),
			Intents:       st.Intents(),
			Locks:         locks,
			Audit:         audit,
			Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
			SigningSecret: testSecret,
			Currency:      "INR",
		}),
	}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(v decimal.Decimal) *decimal.Decimal { return &v }

func (f *fixture) sale(t *testing.T, total string, tenders ledger.Tenders) models.Transaction {
	t.Helper()
	tx, err := f.txns.Create(context.Background(), NewTransaction{
		Kind: models.KindSale, TotalAmount: ptr(d(total)), Tenders: tenders,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return tx
}

func TestCreateDerivesTotals(t *testing.T) {
	f := newFixture()
	tx := f.sale(t, "1000", ledger.Tenders{Cash: d("400"), UPI: d("300"), Credit: d("300")})

	if !tx.TotalPaid.Equal(d("700")) || !tx.BalanceDue.Equal(d("300")) {
		t.Errorf("paid/due = %s/%s, want 700/300", tx.TotalPaid, tx.BalanceDue)
	}
	if tx.PaymentStatus != ledger.Partial || tx.Version != 1 || tx.Currency != "INR" {
		t.Errorf("tx = %+v", tx)
	}
	logs, err := f.txns.History(context.Background(), tx.ID, 0)
	if err != nil || len(logs) != 1 || logs[0].Action != "created" {
		t.Fatalf("history = %+v, %v", logs, err)
	}
}

func TestCreateExpenseWithoutTotal(t *testing.T) {
	f := newFixture()
	tx, err := f.txns.Create(context.Background(), NewTransaction{
		Kind: models.KindExpense, Tenders: ledger.Tenders{Cash: d("120.50"), Card: d("79.50")},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !tx.TotalAmount.Equal(d("200")) || tx.PaymentStatus != ledger.Paid {
		t.Errorf("tx = %+v", tx)
	}

	_, err = f.txns.Create(context.Background(), NewTransaction{Kind: models.KindSale})
	var ve *ledger.ValidationError
	if !errors.As(err, &ve) || ve.Field != "total_amount" {
		t.Errorf("sale without total: err = %v", err)
	}
}

func TestCreateRejects(t *testing.T) {
	cases := []struct {
		name       string
		in         NewTransaction
		allocation bool
	}{
		{"negative cash", NewTransaction{Kind: models.KindSale, TotalAmount: ptr(d("100")), Tenders: ledger.Tenders{Cash: d("-1")}}, true},
		{"paid over total", NewTransaction{Kind: models.KindSale, TotalAmount: ptr(d("100")), Tenders: ledger.Tenders{Cash: d("60"), Card: d("50")}}, true},
		{"credit over due", NewTransaction{Kind: models.KindSale, TotalAmount: ptr(d("100")), Tenders: ledger.Tenders{Cash: d("60"), Credit: d("50")}}, true},
		{"negative total", NewTransaction{Kind: models.KindSale, TotalAmount: ptr(d("-5"))}, false},
		{"three decimals", NewTransaction{Kind: models.KindSale, TotalAmount: ptr(d("10.005"))}, false},
		{"bad kind", NewTransaction{Kind: "refund", TotalAmount: ptr(d("10"))}, false},
		{"bad currency", NewTransaction{Kind: models.KindSale, Currency: "RUPEE", TotalAmount: ptr(d("10"))}, false},
		{"total too large", NewTransaction{Kind: models.KindSale, TotalAmount: ptr(d("1e14"))}, false},
		{"huge exponent", NewTransaction{Kind: models.KindSale, TotalAmount: ptr(d("1e999999999"))}, false},
		{"expense tender huge exponent", NewTransaction{Kind: models.KindExpense, Tenders: ledger.Tenders{Cash: d("1e999999999")}}, false},
		{"expense sum too large", NewTransaction{Kind: models.KindExpense, Tenders: ledger.Tenders{Cash: d("999999999999"), Card: d("1")}}, false},
		{"expense negative tender", NewTransaction{Kind: models.KindExpense, Tenders: ledger.Tenders{UPI: d("-1")}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newFixture().txns.Create(context.Background(), tc.in)
			var ae *ledger.AllocationError
			var ve *ledger.ValidationError
			switch {
			case tc.allocation && !errors.As(err, &ae):
				t.Errorf("err = %v, want AllocationError", err)
			case !tc.allocation && !errors.As(err, &ve):
				t.Errorf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestReplaceTendersVersioning(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx := f.sale(t, "500", ledger.Tenders{})
	if tx.PaymentStatus != ledger.Unpaid {
		t.Fatalf("status = %s, want unpaid", tx.PaymentStatus)
	}

	up, err := f.txns.ReplaceTenders(ctx, tx.ID, ledger.Tenders{Card: d("500")}, tx.Version)
	if err != nil {
		t.Fatalf("ReplaceTenders: %v", err)
	}
	if up.Version != 2 || up.PaymentStatus != ledger.Paid || !up.BalanceDue.IsZero() {
		t.Errorf("up = %+v", up)
	}

	if _, err := f.txns.ReplaceTenders(ctx, tx.ID, ledger.Tenders{Cash: d("1")}, tx.Version); !errors.Is(err, repo.ErrConflict) {
		t.Errorf("stale version: err = %v, want ErrConflict", err)
	}
	if _, err := f.txns.ReplaceTenders(ctx, "missing", ledger.Tenders{}, 0); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("missing: err = %v, want ErrNotFound", err)
	}
}

func TestRecordPaymentConvertsCredit(t *testing.T) {
	f := newFixture()
	tx := f.sale(t, "1000", ledger.Tenders{Cash: d("400"), UPI: d("300"), Credit: d("300")})

	up, err := f.txns.RecordPayment(context.Background(), tx.ID, ledger.Card, d("300"))
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if !up.Card.Equal(d("300")) || !up.Credit.IsZero() || up.PaymentStatus != ledger.Paid {
		t.Errorf("up = %+v", up)
	}

	_, err = f.txns.RecordPayment(context.Background(), tx.ID, ledger.Cash, d("1"))
	var ae *ledger.AllocationError
	if !errors.As(err, &ae) {
		t.Errorf("payment past total: err = %v, want AllocationError", err)
	}
	if _, err := f.txns.RecordPayment(context.Background(), tx.ID, ledger.Credit, d("1")); !errors.As(err, &ae) {
		t.Errorf("credit payment: err = %v, want AllocationError", err)
	}
}

func TestListDefaultsAndFilter(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.sale(t, "10", ledger.Tenders{})
	}
	if _, err := f.txns.Create(ctx, NewTransaction{Kind: models.KindPurchase, TotalAmount: ptr(d("5"))}); err != nil {
		t.Fatal(err)
	}

	all, err := f.txns.List(ctx, models.TransactionFilter{})
	if err != nil || len(all) != 4 {
		t.Fatalf("List = %d, %v", len(all), err)
	}
	sales, _ := f.txns.List(ctx, models.TransactionFilter{Kind: models.KindSale, Limit: 2})
	if len(sales) != 2 {
		t.Errorf("sales page = %d, want 2", len(sales))
	}
	if _, err := f.txns.List(ctx, models.TransactionFilter{Kind: "bogus"}); err == nil {
		t.Error("bogus kind accepted")
	}
}

func TestDeleteTransaction(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx := f.sale(t, "10", ledger.Tenders{})
	if err := f.txns.Delete(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.txns.Get(ctx, tx.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	if err := f.txns.Delete(ctx, tx.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestCreateIntentMinorUnits(t *testing.T) {
	f := newFixture()
	in, err := f.pays.CreateIntent(context.Background(), d("847"), "inr", nil)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if in.AmountMinor != 84700 || in.Currency != "INR" || in.GatewayKeyID != "rzp_test_key" || in.IntentID == "" {
		t.Errorf("intent = %+v", in)
	}
	if got := f.gw.calls[0].AmountMinor; got != 84700 {
		t.Errorf("gateway saw %d", got)
	}

	var ve *ledger.ValidationError
	for _, amt := range []string{"0", "-1", "10.005"} {
		if _, err := f.pays.CreateIntent(context.Background(), d(amt), "INR", nil); !errors.As(err, &ve) {
			t.Errorf("amount %s: err = %v, want ValidationError", amt, err)
		}
	}
}

func TestCreateIntentGatewayDown(t *testing.T) {
	f := newFixture()
	f.gw.err = &gateway.UnavailableError{Op: "create order", StatusCode: 503}
	_, err := f.pays.CreateIntent(context.Background(), d("10"), "INR", nil)
	var ue *gateway.UnavailableError
	if !errors.As(err, &ue) || !ue.Retryable() {
		t.Fatalf("err = %v, want retryable UnavailableError", err)
	}
}

func checkout(t *testing.T, f *fixture, total string, tenders ledger.Tenders) (models.Transaction, Intent) {
	t.Helper()
	tx := f.sale(t, total, tenders)
	in, err := f.pays.BeginCheckout(context.Background(), tx.ID, ledger.UPI)
	if err != nil {
		t.Fatalf("BeginCheckout: %v", err)
	}
	return tx, in
}

func signed(in Intent, paymentID string) Callback {
	return Callback{OrderID: in.IntentID, PaymentID: paymentID, Signature: gateway.Sign(testSecret, in.IntentID, paymentID)}
}

func TestBeginCheckoutUsesBalanceDue(t *testing.T) {
	f := newFixture()
	tx, in := checkout(t, f, "1000", ledger.Tenders{Cash: d("400"), Credit: d("200")})
	if in.AmountMinor != 60000 || in.TransactionID != tx.ID || in.Tender != ledger.UPI {
		t.Errorf("intent = %+v", in)
	}
	if f.gw.calls[0].Notes["transaction_id"] != tx.ID {
		t.Errorf("notes = %v", f.gw.calls[0].Notes)
	}

	paid := f.sale(t, "10", ledger.Tenders{Cash: d("10")})
	var ae *ledger.AllocationError
	if _, err := f.pays.BeginCheckout(context.Background(), paid.ID, ledger.Card); !errors.As(err, &ae) {
		t.Errorf("paid transaction: err = %v", err)
	}
	if _, err := f.pays.BeginCheckout(context.Background(), tx.ID, ledger.Credit); !errors.As(err, &ae) {
		t.Errorf("credit tender: err = %v", err)
	}
	if _, err := f.pays.BeginCheckout(context.Background(), "nope", ledger.Card); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("missing transaction: err = %v", err)
	}
}

func TestVerifyCreditsOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, in := checkout(t, f, "1000", ledger.Tenders{Cash: d("400"), Credit: d("200")})
	cb := signed(in, "pay_1")

	v, err := f.pays.VerifyCallback(ctx, cb)
	if err != nil || v.Outcome != Verified || v.Replayed {
		t.Fatalf("first verify = %+v, %v", v, err)
	}
	if !v.Transaction.UPI.Equal(d("600")) || !v.Transaction.Credit.IsZero() || v.Transaction.PaymentStatus != ledger.Paid {
		t.Errorf("settled tx = %+v", v.Transaction)
	}

	again, err := f.pays.VerifyCallback(ctx, cb)
	if err != nil || again.Outcome != Verified || !again.Replayed {
		t.Fatalf("replay = %+v, %v", again, err)
	}
	got, _ := f.txns.Get(ctx, tx.ID)
	if !got.UPI.Equal(d("600")) || got.Version != 2 {
		t.Errorf("replay changed tx: %+v", got)
	}

	other, err := f.pays.VerifyCallback(ctx, signed(in, "pay_2"))
	if err != nil || other.Outcome != VerificationFailed || other.Reason != ReasonIntentClosed {
		t.Errorf("second payment id = %+v, %v", other, err)
	}
}

func TestVerifyConcurrentCallbacks(t *testing.T) {
	f := newFixture()
	tx, in := checkout(t, f, "250", ledger.Tenders{})
	cb := signed(in, "pay_race")

	var (
		wg       sync.WaitGroup
		verified atomic.Int32
		replays  atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := f.pays.VerifyCallback(context.Background(), cb)
			if err != nil || v.Outcome != Verified {
				t.Errorf("verify = %+v, %v", v, err)
				return
			}
			if v.Replayed {
				replays.Add(1)
			} else {
				verified.Add(1)
			}
		}()
	}
	wg.Wait()

	if verified.Load() != 1 || replays.Load() != 15 {
		t.Errorf("verified=%d replays=%d", verified.Load(), replays.Load())
	}
	got, _ := f.txns.Get(context.Background(), tx.ID)
	if !got.UPI.Equal(d("250")) || got.PaymentStatus != ledger.Paid {
		t.Errorf("tx = %+v", got)
	}
}

func TestVerifyRejections(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, in := checkout(t, f, "100", ledger.Tenders{})

	cases := []struct {
		name   string
		cb     Callback
		reason string
	}{
		{"missing signature", Callback{OrderID: in.IntentID, PaymentID: "pay_1"}, ReasonMissingFields},
		{"blank order", Callback{OrderID: "  ", PaymentID: "pay_1", Signature: "ab"}, ReasonMissingFields},
		{"unknown order", signed(Intent{IntentID: "order_ZZ"}, "pay_1"), ReasonUnknownIntent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := f.pays.VerifyCallback(ctx, tc.cb)
			if err != nil || v.Outcome != VerificationFailed || v.Reason != tc.reason {
				t.Errorf("verify = %+v, %v", v, err)
			}
		})
	}

	tampered := signed(in, "pay_1")
	tampered.PaymentID = "pay_2"
	v, err := f.pays.VerifyCallback(ctx, tampered)
	if err != nil || v.Reason != ReasonSignatureMismatch {
		t.Fatalf("tampered = %+v, %v", v, err)
	}
	stored, _ := f.store.Intents().GetByOrderID(ctx, in.IntentID)
	if stored.Status != models.IntentCreated || stored.PaymentID != "" {
		t.Errorf("intent changed by bad signature: %+v", stored)
	}
	got, _ := f.txns.Get(ctx, tx.ID)
	if !got.TotalPaid.IsZero() || got.Version != 1 {
		t.Errorf("tx changed: %+v", got)
	}
}

func TestForgedCallbackDoesNotBlockGenuine(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, in := checkout(t, f, "100", ledger.Tenders{})

	forged := Callback{OrderID: in.IntentID, PaymentID: "pay_attacker", Signature: "00"}
	v, err := f.pays.VerifyCallback(ctx, forged)
	if err != nil || v.Outcome != VerificationFailed || v.Reason != ReasonSignatureMismatch {
		t.Fatalf("forged = %+v, %v", v, err)
	}
	// The same forged pair stays rejected.
	if v, _ := f.pays.VerifyCallback(ctx, forged); v.Outcome != VerificationFailed {
		t.Errorf("forged replay = %+v", v)
	}

	v, err = f.pays.VerifyCallback(ctx, signed(in, "pay_real"))
	if err != nil || v.Outcome != Verified || v.Replayed {
		t.Fatalf("genuine = %+v, %v", v, err)
	}
	got, _ := f.txns.Get(ctx, tx.ID)
	if !got.TotalPaid.Equal(d("100")) || got.PaymentStatus != ledger.Paid {
		t.Errorf("tx = %+v", got)
	}
	stored, _ := f.store.Intents().GetByOrderID(ctx, in.IntentID)
	if stored.Status != models.IntentVerified || stored.PaymentID != "pay_real" {
		t.Errorf("intent = %+v", stored)
	}
}

func TestVerifyAfterTransactionDeleted(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, in := checkout(t, f, "100", ledger.Tenders{})
	if err := f.txns.Delete(ctx, tx.ID); err != nil {
		t.Fatal(err)
	}
	v, err := f.pays.VerifyCallback(ctx, signed(in, "pay_1"))
	if err != nil || v.Reason != ReasonUnknownIntent {
		t.Errorf("verify = %+v, %v", v, err)
	}
}

func TestPendingCheckoutBlocksManualEdits(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, in := checkout(t, f, "100", ledger.Tenders{})

	if _, err := f.txns.RecordPayment(ctx, tx.ID, ledger.Cash, d("40")); !errors.Is(err, ErrCheckoutPending) {
		t.Errorf("RecordPayment err = %v, want ErrCheckoutPending", err)
	}
	if _, err := f.txns.ReplaceTenders(ctx, tx.ID, ledger.Tenders{Cash: d("100")}, 0); !errors.Is(err, ErrCheckoutPending) {
		t.Errorf("ReplaceTenders err = %v, want ErrCheckoutPending", err)
	}
	v, err := f.pays.VerifyCallback(ctx, signed(in, "pay_1"))
	if err != nil || v.Outcome != Verified {
		t.Fatalf("verify = %+v, %v", v, err)
	}
	if v.Transaction.PaymentStatus != ledger.Paid || !v.Transaction.BalanceDue.IsZero() {
		t.Errorf("tx = %+v", v.Transaction)
	}

	// Verified intents no longer block; the paid bound applies again.
	var ae *ledger.AllocationError
	if _, err := f.txns.RecordPayment(ctx, tx.ID, ledger.Cash, d("1")); !errors.As(err, &ae) {
		t.Errorf("RecordPayment after verify err = %v, want AllocationError", err)
	}
}

func TestAbandonedCheckoutMayOverpay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tx, in := checkout(t, f, "100", ledger.Tenders{})

	// Past the window the checkout counts as abandoned.
	f.txns.now = func() time.Time { return time.Now().Add(DefaultCheckoutWindow + time.Minute) }
	if _, err := f.txns.RecordPayment(ctx, tx.ID, ledger.Cash, d("40")); err != nil {
		t.Fatal(err)
	}
	v, err := f.pays.VerifyCallback(ctx, signed(in, "pay_1"))
	if err != nil || v.Outcome != Verified {
		t.Fatalf("verify = %+v, %v", v, err)
	}
	if v.Transaction.PaymentStatus != ledger.Overpaid || !v.Transaction.BalanceDue.Equal(d("-40")) {
		t.Errorf("tx = %+v", v.Transaction)
	}
}
