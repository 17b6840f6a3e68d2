package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/99minutos/auth-service/internal/app"
	"github.com/99minutos/auth-service/internal/infrastructure/config"
	"github.com/99minutos/auth-service/internal/infrastructure/db/postgres"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops the users table)",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("Migrations rolled back")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: withMigrator(func(cmd *cobra.Command, m *postgres.Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			cmd.Printf("version %d", version)
			if dirty {
				cmd.Print(" (dirty)")
			}
			cmd.Println()
			return nil
		}),
	})

	return cmd
}

func withMigrator(fn func(*cobra.Command, *postgres.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		if cfg.Store.Driver != config.DriverPostgres {
			return oops.Code("CONFIG_INVALID").Errorf("migrations apply only to the postgres store, STORE_DRIVER is %q", cfg.Store.Driver)
		}
		return app.Migrate(app.PostgresDSN(cfg), func(m *postgres.Migrator) error {
			return fn(cmd, m)
		})
	}
}
