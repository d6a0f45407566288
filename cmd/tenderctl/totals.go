package main

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/baharkarakas/tender-backend/internal/ledger"
)

func totalsCmd() *cobra.Command {
	var (
		total, cash, upi, card, credit string
		strict, asJSON                 bool
	)
	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Compute paid and balance due for a tender split",
		Example: `  tenderctl totals --total 1000 --cash 400 --upi 300 --credit 300
  tenderctl totals --total 500 --card 600 --strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var a ledger.Allocation
			for _, f := range []struct {
				name, raw string
				dst       *decimal.Decimal
			}{
				{"total", total, &a.TotalAmount},
				{"cash", cash, &a.Cash},
				{"upi", upi, &a.UPI},
				{"card", card, &a.Card},
				{"credit", credit, &a.Credit},
			} {
				d, err := ledger.ParseAmount(f.name, f.raw)
				if err != nil {
					return err
				}
				*f.dst = d
			}
			if strict {
				if err := ledger.CheckInvariants(a); err != nil {
					return err
				}
			}
			t, err := a.Totals()
			if err != nil {
				return err
			}
			status := ledger.StatusOf(a.TotalAmount, t)

			out := cmd.OutOrStdout()
			if asJSON {
				return json.NewEncoder(out).Encode(map[string]any{
					"total_paid":     t.TotalPaid,
					"balance_due":    t.BalanceDue,
					"unallocated":    t.Unallocated,
					"payment_status": status,
				})
			}
			fmt.Fprintf(out, "total paid:   %s\n", t.TotalPaid.StringFixed(ledger.Scale))
			fmt.Fprintf(out, "balance due:  %s\n", t.BalanceDue.StringFixed(ledger.Scale))
			fmt.Fprintf(out, "unallocated:  %s\n", t.Unallocated.StringFixed(ledger.Scale))
			fmt.Fprintf(out, "status:       %s\n", status)
			return nil
		},
	}
	cmd.Flags().StringVar(&total, "total", "", "transaction total (required)")
	cmd.Flags().StringVar(&cash, "cash", "0", "cash tender")
	cmd.Flags().StringVar(&upi, "upi", "0", "UPI tender")
	cmd.Flags().StringVar(&card, "card", "0", "card tender")
	cmd.Flags().StringVar(&credit, "credit", "0", "credit tender")
	cmd.Flags().BoolVar(&strict, "strict", false, "also enforce paid <= total and credit <= balance due")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}
