package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baharkarakas/tender-backend/internal/ledger"
)

func minorCmd() *cobra.Command {
	var currency string
	cmd := &cobra.Command{
		Use:   "minor AMOUNT",
		Short: "Convert a major-unit amount to gateway minor units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := ledger.ParseAmount("amount", args[0])
			if err != nil {
				return err
			}
			n, err := ledger.ToMinorUnits(amount, strings.ToUpper(currency))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&currency, "currency", "c", "INR", "ISO 4217 currency code")
	return cmd
}
