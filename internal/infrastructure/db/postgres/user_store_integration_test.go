//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/infrastructure/db/postgres"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:18-alpine",
		tcpostgres.WithDatabase("auth_test"),
		tcpostgres.WithUsername("auth"),
		tcpostgres.WithPassword("auth"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := postgres.NewMigrator(connStr)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	require.NoError(t, migrator.Close())
	return connStr
}

func TestUserStore_Integration(t *testing.T) {
	connStr := startPostgres(t)
	ctx := context.Background()

	pool, err := postgres.Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	store := postgres.NewUserStore(pool)

	t.Run("round trip", func(t *testing.T) {
		id, err := store.InsertUser(ctx, "alice", "alice@x.com", "hash", "avatar")
		require.NoError(t, err)

		u, err := store.GetUserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Username)
		assert.Equal(t, "alice@x.com", u.Email)

		_, err = store.GetUserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("duplicate email names the field", func(t *testing.T) {
		_, err := store.InsertUser(ctx, "alice2", "alice@x.com", "hash", "")
		var dup *domain.DuplicateKeyError
		require.ErrorAs(t, err, &dup)
		assert.Equal(t, domain.FieldEmail, dup.Field)
	})

	t.Run("concurrent same username has one winner", func(t *testing.T) {
		const writers = 8
		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = store.InsertUser(ctx, "racer", fmt.Sprintf("racer%d@x.com", i), "hash", "")
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
				continue
			}
			var dup *domain.DuplicateKeyError
			require.True(t, errors.As(err, &dup), "unexpected error: %v", err)
			assert.Equal(t, domain.FieldUsername, dup.Field)
		}
		assert.Equal(t, 1, wins)
	})
}
