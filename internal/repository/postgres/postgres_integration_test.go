//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shestoi/GoBigTech/storefront/internal/repository"
)

func TestStore_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("storefront"),
		postgres.WithUsername("storefront_user"),
		postgres.WithPassword("storefront_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, container.Terminate(ctx))
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, dsn))
	// повторный прогон ничего не ломает
	require.NoError(t, Migrate(ctx, dsn))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	store := NewStore(pool)

	t.Run("Set and Get", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, repository.KeyFavorites, `{"ids":[3],"byId":{}}`))
		require.NoError(t, store.Set(ctx, repository.KeyFavorites, `{"ids":[3,4],"byId":{}}`))

		got, err := store.Get(ctx, repository.KeyFavorites)
		require.NoError(t, err)
		require.Equal(t, `{"ids":[3,4],"byId":{}}`, got)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("RemoveMany", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, repository.KeyCart, `[]`))
		require.NoError(t, store.RemoveMany(ctx, repository.AllKeys()...))

		_, err := store.Get(ctx, repository.KeyCart)
		require.ErrorIs(t, err, repository.ErrNotFound)
		_, err = store.Get(ctx, repository.KeyFavorites)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}
