package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mastercom/internal/platform/postgres"
)

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations to DATABASE_URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !opts.cfg.UsesPostgres() {
				return errors.New("DATABASE_URL is not set")
			}
			ctx := cmd.Context()
			db, err := postgres.Open(ctx, opts.cfg.Database)
			if err != nil {
				return fmt.Errorf("open postgres: %w", err)
			}
			defer db.Close()

			if err := postgres.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	}
}
