package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/baharkarakas/tender-backend/internal/ledger"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := rootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTotals(t *testing.T) {
	out, err := run(t, "totals", "--total", "1000", "--cash", "400", "--upi", "300", "--credit", "300")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"total paid:   700.00", "balance due:  300.00", "status:       partial"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTotalsJSON(t *testing.T) {
	out, err := run(t, "totals", "--total", "500", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("bad json %q: %v", out, err)
	}
	if got["balance_due"] != "500" || got["payment_status"] != "unpaid" {
		t.Errorf("got %v", got)
	}
}

func TestTotalsStrict(t *testing.T) {
	if _, err := run(t, "totals", "--total", "500", "--card", "600"); err != nil {
		t.Fatalf("lax mode rejected overpayment: %v", err)
	}
	_, err := run(t, "totals", "--total", "500", "--card", "600", "--strict")
	var ae *ledger.AllocationError
	if !errors.As(err, &ae) {
		t.Errorf("err = %v, want AllocationError", err)
	}
	_, err = run(t, "totals", "--total", "500", "--cash", "-1")
	var ve *ledger.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("err = %v, want ValidationError", err)
	}
}

func TestMinor(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"minor", "847"}, "84700"},
		{[]string{"minor", "1200", "-c", "jpy"}, "1200"},
		{[]string{"minor", "1.23", "--currency", "KWD"}, "1230"},
	}
	for _, tc := range cases {
		out, err := run(t, tc.args...)
		if err != nil || strings.TrimSpace(out) != tc.want {
			t.Errorf("%v = %q, %v; want %s", tc.args, out, err, tc.want)
		}
	}
	if _, err := run(t, "minor", "1.5", "-c", "JPY"); err == nil {
		t.Error("fractional yen accepted")
	}
}

func TestSignThenVerify(t *testing.T) {
	sig, err := run(t, "sign", "order_1", "pay_1", "--secret", "s")
	if err != nil {
		t.Fatal(err)
	}
	sig = strings.TrimSpace(sig)
	if out, err := run(t, "verify", "order_1", "pay_1", sig, "--secret", "s"); err != nil || strings.TrimSpace(out) != "ok" {
		t.Errorf("verify = %q, %v", out, err)
	}
	if _, err := run(t, "verify", "order_1", "pay_2", sig, "--secret", "s"); !errors.Is(err, errBadSignature) {
		t.Errorf("tampered verify err = %v", err)
	}
}

func TestSignNeedsSecret(t *testing.T) {
	t.Setenv("GATEWAY_KEY_SECRET", "")
	if _, err := run(t, "sign", "order_1", "pay_1"); err == nil {
		t.Error("sign without secret succeeded")
	}
}
