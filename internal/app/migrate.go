package app

import (
	"errors"

	"github.com/99minutos/auth-service/internal/infrastructure/config"
	"github.com/99minutos/auth-service/internal/infrastructure/db/postgres"
)

// PostgresDSN builds the connection URL from the store settings.
func PostgresDSN(cfg *config.Config) string {
	s := cfg.Store
	return postgres.DSN(s.DBHost, s.DBPort, s.DBUser, s.DBPassword.Reveal(), s.DBName, s.DBSSLMode)
}

// Migrate opens a migrator against dsn, runs fn and closes it.
func Migrate(dsn string, fn func(*postgres.Migrator) error) error {
	m, err := postgres.NewMigrator(dsn)
	if err != nil {
		return err
	}
	return errors.Join(fn(m), m.Close())
}
