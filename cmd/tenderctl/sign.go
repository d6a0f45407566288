package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baharkarakas/tender-backend/internal/gateway"
)

func signCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign ORDER_ID PAYMENT_ID",
		Short: "Produce the callback signature the gateway would send",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secretFrom(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), gateway.Sign(secret, args[0], args[1]))
			return nil
		},
	}
	cmd.Flags().String("secret", "", "gateway key secret (default $GATEWAY_KEY_SECRET)")
	return cmd
}
