package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/99minutos/auth-service/internal/infrastructure/config"
	"github.com/99minutos/auth-service/pkg/logger"
)

// NewRootCmd creates the root command for the auth service CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "auth-service",
		Short:         "Authentication microservice",
		Long:          `Registers users, authenticates logins and issues cookie-based session tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// bootstrap loads configuration and initialises the process logger.
func bootstrap(ctx context.Context) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		// The logger level comes from config, so fall back to defaults here.
		log := logger.Init(logger.Options{Service: "auth-service"})
		log.Error().Err(err).Msg("failed to load configuration")
		return nil, log, err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "auth-service",
	})
	return cfg, log, nil
}
