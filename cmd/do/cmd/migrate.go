package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/utellme/utellme/internal/config"
	"github.com/utellme/utellme/internal/db"
)

func MigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(conn *sqlx.DB, driver string) error {
				return db.RunMigrations(conn.DB, driver)
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(conn *sqlx.DB, driver string) error {
				return db.MigrateDown(conn.DB, driver)
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(conn *sqlx.DB, driver string) error {
				return db.MigrationStatus(conn.DB, driver)
			})
		},
	})

	return migrateCmd
}

func withDB(ctx context.Context, fn func(conn *sqlx.DB, driver string) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	driver, connection := config.LoadDatabase()
	conn, err := db.Init(ctx, driver, connection)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return fn(conn, driver)
}
