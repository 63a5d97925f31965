package cmd

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/utellme/utellme/internal/repository"
)

func CleanupCmd() *cobra.Command {
	var tokenAge time.Duration

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired sessions and verification tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(conn *sqlx.DB, _ string) error {
				ctx := cmd.Context()

				sessions, err := repository.NewSessionRepository(conn).DeleteExpired(ctx)
				if err != nil {
					return fmt.Errorf("failed to delete expired sessions: %w", err)
				}

				tokens, err := repository.NewTokenRepository(conn).CleanupExpired(ctx, tokenAge)
				if err != nil {
					return fmt.Errorf("failed to delete expired tokens: %w", err)
				}

				fmt.Printf("Deleted %d expired sessions and %d verification tokens\n", sessions, tokens)
				return nil
			})
		},
	}

	cleanupCmd.Flags().DurationVar(&tokenAge, "token-age", 24*time.Hour, "delete tokens expired for longer than this")
	return cleanupCmd
}
