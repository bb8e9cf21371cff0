package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Agossa1/marketauth/store/sqlstore"
)

func newMigrateCmd(a *app) *cobra.Command {
	var driver, dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the users and otps tables in the configured SQL database",
		Long: `Create the credential store schema. Statements are idempotent, so the
command can run on every deploy.

Drivers: postgres (lib/pq), pgx, mysql, sqlite.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if driver == "" {
				driver = a.settings.Database.Driver
			}
			if dsn == "" {
				dsn = a.settings.Database.DSN
			}
			if driver == "" || dsn == "" {
				return errors.New("database driver and dsn are required")
			}

			store, err := sqlstore.Open(driver, dsn)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			a.logger.Info("schema migrated", zap.String("driver", driver))
			fmt.Fprintf(a.stdout, "schema ready (%s)\n", driver)
			return nil
		},
	}
	cmd.Flags().StringVar(&driver, "driver", "", "database driver (default: database.driver from config)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "data source name (default: database.dsn from config)")
	return cmd
}
