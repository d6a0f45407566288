package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baharkarakas/tender-backend/internal/gateway"
)

var errBadSignature = errors.New("signature does not match")

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify ORDER_ID PAYMENT_ID SIGNATURE",
		Short: "Check a callback signature offline",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secretFrom(cmd)
			if err != nil {
				return err
			}
			if !gateway.VerifySignature(secret, args[0], args[1], args[2]) {
				return errBadSignature
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
	cmd.Flags().String("secret", "", "gateway key secret (default $GATEWAY_KEY_SECRET)")
	return cmd
}
