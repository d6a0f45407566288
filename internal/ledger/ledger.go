// Package ledger computes and validates how a transaction total is split
// across payment tenders. Everything here is pure; callers persist results.
package ledger

import (
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every stored amount carries.
const Scale = 2

type Tender string

const (
	Cash   Tender = "cash"
	UPI    Tender = "upi"
	Card   Tender = "card"
	Credit Tender = "credit"
)

// Settled reports whether money recorded on t has actually been received.
func (t Tender) Settled() bool { return t == Cash || t == UPI || t == Card }

func ParseTender(s string) (Tender, error) {
	switch t := Tender(s); t {
	case Cash, UPI, Card, Credit:
		return t, nil
	}
	return "", invalid("tender", "must be one of cash, upi, card, credit")
}

// Tenders holds the per-method amounts of a single transaction.
type Tenders struct {
	Cash   decimal.Decimal `json:"amount_cash"`
	UPI    decimal.Decimal `json:"amount_upi"`
	Card   decimal.Decimal `json:"amount_card"`
	Credit decimal.Decimal `json:"amount_credit"`
}

func (t Tenders) Get(tender Tender) decimal.Decimal {
	switch tender {
	case Cash:
		return t.Cash
	case UPI:
		return t.UPI
	case Card:
		return t.Card
	case Credit:
		return t.Credit
	}
	return decimal.Zero
}

func (t *Tenders) set(tender Tender, v decimal.Decimal) {
	switch tender {
	case Cash:
		t.Cash = v
	case UPI:
		t.UPI = v
	case Card:
		t.Card = v
	case Credit:
		t.Credit = v
	}
}

// Paid is the settled portion; credit is money not yet received.
func (t Tenders) Paid() decimal.Decimal { return t.Cash.Add(t.UPI).Add(t.Card) }

// Sum includes credit.
func (t Tenders) Sum() decimal.Decimal { return t.Paid().Add(t.Credit) }

// Apply records a follow-up payment of amount on a settled tender and
// converts up to amount of outstanding credit into it.
func (t Tenders) Apply(tender Tender, amount decimal.Decimal) (Tenders, error) {
	if !tender.Settled() {
		return t, &AllocationError{Tender: tender, Amount: amount, Reason: "payments must target a settled tender"}
	}
	if !amount.IsPositive() {
		return t, invalid("amount", "must be greater than zero")
	}
	out := t
	out.set(tender, t.Get(tender).Add(amount))
	out.Credit = decimal.Max(decimal.Zero, t.Credit.Sub(amount))
	return out, nil
}

// Totals are the derived payment-state fields stored on a transaction.
type Totals struct {
	TotalPaid  decimal.Decimal `json:"total_paid"`
	BalanceDue decimal.Decimal `json:"balance_due"`
	// Unallocated is total - paid - credit. Non-zero values are accepted.
	Unallocated decimal.Decimal `json:"unallocated"`
}

// ComputeTotals derives paid and balance due. Balance due keeps its sign:
// a negative value means the tenders exceed the total.
func ComputeTotals(totalAmount, cash, upi, card, credit decimal.Decimal) (Totals, error) {
	for _, in := range []struct {
		field string
		v     decimal.Decimal
	}{
		{"total_amount", totalAmount},
		{"amount_cash", cash},
		{"amount_upi", upi},
		{"amount_card", card},
		{"amount_credit", credit},
	} {
		if in.v.IsNegative() {
			return Totals{}, invalid(in.field, "must not be negative")
		}
		if err := checkMagnitude(in.field, in.v); err != nil {
			return Totals{}, err
		}
	}
	paid := cash.Add(upi).Add(card)
	return Totals{
		TotalPaid:   paid,
		BalanceDue:  totalAmount.Sub(paid),
		Unallocated: totalAmount.Sub(paid).Sub(credit),
	}, nil
}

// Allocation is a transaction total together with its tender split.
type Allocation struct {
	TotalAmount decimal.Decimal
	Tenders
}

func (a Allocation) Totals() (Totals, error) {
	return ComputeTotals(a.TotalAmount, a.Cash, a.UPI, a.Card, a.Credit)
}

// ValidateAllocation rejects negative and out-of-range tenders. It
// intentionally does not require the tenders to add up to the total.
func ValidateAllocation(a Allocation) error {
	for _, tender := range []Tender{Cash, UPI, Card, Credit} {
		v := a.Get(tender)
		if err := checkMagnitude("amount_"+string(tender), v); err != nil {
			return err
		}
		if v.IsNegative() {
			return &AllocationError{Tender: tender, Amount: v, Reason: "must not be negative"}
		}
	}
	return nil
}

// CheckTenders applies CheckAmount to each tender field.
func CheckTenders(t Tenders) error {
	for _, f := range []struct {
		name string
		v    decimal.Decimal
	}{
		{"amount_cash", t.Cash},
		{"amount_upi", t.UPI},
		{"amount_card", t.Card},
		{"amount_credit", t.Credit},
	} {
		if err := CheckAmount(f.name, f.v); err != nil {
			return err
		}
	}
	return nil
}

// CheckAllocation applies CheckAmount to the total and every tender.
func CheckAllocation(a Allocation) error {
	if err := CheckAmount("total_amount", a.TotalAmount); err != nil {
		return err
	}
	return CheckTenders(a.Tenders)
}

// CheckInvariants enforces paid <= total and that credit does not exceed
// what remains unpaid after the settled tenders.
func CheckInvariants(a Allocation) error {
	paid := a.Paid()
	if paid.GreaterThan(a.TotalAmount) {
		return &AllocationError{Amount: paid, Reason: "settled tenders exceed total amount " + a.TotalAmount.StringFixed(Scale)}
	}
	if remaining := a.TotalAmount.Sub(paid); a.Credit.GreaterThan(remaining) {
		return &AllocationError{Tender: Credit, Amount: a.Credit, Reason: "exceeds balance due " + remaining.StringFixed(Scale)}
	}
	return nil
}

type PaymentStatus string

const (
	Unpaid   PaymentStatus = "unpaid"
	Partial  PaymentStatus = "partial"
	Paid     PaymentStatus = "paid"
	Overpaid PaymentStatus = "overpaid"
)

func StatusOf(total decimal.Decimal, t Totals) PaymentStatus {
	switch {
	case t.BalanceDue.IsNegative():
		return Overpaid
	case t.BalanceDue.IsZero():
		return Paid
	case t.TotalPaid.IsZero() && total.IsPositive():
		return Unpaid
	default:
		return Partial
	}
}
