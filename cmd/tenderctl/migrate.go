package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baharkarakas/tender-backend/internal/config"
	"github.com/baharkarakas/tender-backend/internal/db"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded schema migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			pool, err := db.NewPool(cmd.Context(), cfg.DatabaseURL, 2)
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer pool.Close()
			if err := db.RunMigrations(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
