// Command tenderctl is an operator tool for the tender ledger: it previews
// splits, converts amounts for the gateway and checks callback signatures.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tenderctl",
		Short:         "Tender ledger and gateway tooling",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(totalsCmd())
	root.AddCommand(minorCmd())
	root.AddCommand(signCmd())
	root.AddCommand(verifyCmd())
	root.AddCommand(migrateCmd())
	return root
}

// secretFrom prefers the flag and falls back to GATEWAY_KEY_SECRET.
func secretFrom(cmd *cobra.Command) (string, error) {
	s, _ := cmd.Flags().GetString("secret")
	if s == "" {
		s = os.Getenv("GATEWAY_KEY_SECRET")
	}
	if s == "" {
		return "", fmt.Errorf("no signing secret: pass --secret or set GATEWAY_KEY_SECRET")
	}
	return s, nil
}
