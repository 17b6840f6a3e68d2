// Package app wires configuration, storage and the HTTP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/auth-service/internal/api"
	"github.com/99minutos/auth-service/internal/api/handler"
	"github.com/99minutos/auth-service/internal/core/ports"
	"github.com/99minutos/auth-service/internal/core/service"
	"github.com/99minutos/auth-service/internal/infrastructure/config"
	"github.com/99minutos/auth-service/internal/infrastructure/db/memory"
	mongostore "github.com/99minutos/auth-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/auth-service/internal/infrastructure/db/postgres"
	rediscache "github.com/99minutos/auth-service/internal/infrastructure/db/redis"
	"github.com/99minutos/auth-service/internal/infrastructure/queue"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
	shutdownTimeout = 10 * time.Second
)

// App is a fully wired service ready to Run.
type App struct {
	cfg      *config.Config
	log      zerolog.Logger
	echo     *echo.Echo
	hashPool *queue.HashPool
	closers  []func(context.Context) error
}

// New connects to the configured store (and cache), then builds the router.
// Postgres schema migrations are applied before the store is used.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	store, err := a.openStore(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	readiness := map[string]handler.Pinger{"store": store}

	if cfg.Redis.Addr != "" {
		client, err := connect(ctx, log, "redis", func(ctx context.Context) (*goredis.Client, error) {
			return rediscache.Connect(ctx, rediscache.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		})
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		store = rediscache.NewCachedUserStore(store, client, cfg.Redis.CacheTTL, log)
		readiness["redis"] = rediscache.NewChecker(client)
	}

	a.hashPool = queue.NewHashPool(cfg.HashWorkers, service.NewBcryptHasher(), log)
	tokens := service.NewTokenService([]byte(cfg.JWTSecret.Reveal()), service.CookiePolicy{
		Secure:   cfg.Cookie.Secure,
		SameSite: cfg.Cookie.SameSiteMode(),
	})
	if !cfg.Cookie.Secure {
		log.Warn().Msg("session cookies are not marked Secure; use only for local plain-HTTP development")
	}

	a.echo = api.NewRouter(api.Dependencies{
		AuthService: service.NewAuthService(store, a.hashPool, log),
		Tokens:      tokens,
		Readiness:   readiness,
		Log:         log,
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context) (ports.UserStore, error) {
	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		a.log.Warn().Msg("using in-memory user store; accounts are lost on restart")
		return memory.NewUserStore(), nil

	case config.DriverMongo:
		db, err := connect(ctx, a.log, "mongo", func(ctx context.Context) (*mongo.Database, error) {
			client, db, err := mongostore.Connect(ctx, mongostore.Config{
				URI:      a.cfg.Store.MongoURI.Reveal(),
				Database: a.cfg.Store.MongoDatabase,
			})
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, client.Disconnect)
			return db, nil
		})
		if err != nil {
			return nil, err
		}
		store := mongostore.NewUserStore(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil

	default:
		dsn := PostgresDSN(a.cfg)
		pool, err := connect(ctx, a.log, "postgres", func(ctx context.Context) (*pgxpool.Pool, error) {
			if err := Migrate(dsn, func(m *postgres.Migrator) error { return m.Up() }); err != nil {
				return nil, err
			}
			return postgres.Connect(ctx, dsn)
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		return postgres.NewUserStore(pool), nil
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests and
// stops the hash workers.
func (a *App) Run(ctx context.Context) error {
	poolCtx, stopPool := context.WithCancel(context.Background())
	a.hashPool.Start(poolCtx)
	defer func() {
		stopPool()
		a.hashPool.Wait()
	}()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("port", a.cfg.Port).Str("store", a.cfg.Store.Driver).Msg("auth service listening")
		if err := a.echo.Start(":" + a.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("http shutdown")
	}
	a.close(shutdownCtx)
	return nil
}

func (a *App) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.log.Warn().Err(err).Msg("closing dependency")
		}
	}
	a.closers = nil
}

// connect retries dial with exponential backoff, giving up after
// connectAttempts tries.
func connect[T any](ctx context.Context, log zerolog.Logger, name string, dial func(context.Context) (T, error)) (T, error) {
	var (
		result  T
		attempt int
	)
	backoff := retry.WithMaxRetries(connectAttempts-1, retry.NewExponential(connectBackoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		v, err := dial(ctx)
		if err != nil {
			log.Warn().Err(err).Str("dependency", name).Int("attempt", attempt).Msg("connect failed")
			return retry.RetryableError(err)
		}
		result = v
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("connect %s: %w", name, err)
	}
	return result, nil
}
