package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shestoi/GoBigTech/storefront/internal/repository"
)

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "storefront.db")

	s, err := NewStore(ctx, path)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, repository.KeyCart, `[{"id":1,"quantity":2}]`))
	require.NoError(t, s.Set(ctx, repository.KeyCart, `[{"id":1,"quantity":3}]`))
	require.NoError(t, s.Close())

	s, err = NewStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, repository.KeyCart)
	require.NoError(t, err)
	require.Equal(t, `[{"id":1,"quantity":3}]`, got)
}

func TestStore_RemoveMany(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(ctx, filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, repository.KeyCart, "[]"))
	require.NoError(t, s.Set(ctx, repository.KeyFavorites, "{}"))
	require.NoError(t, s.Set(ctx, "unrelated", "keep"))

	require.NoError(t, s.RemoveMany(ctx, repository.AllKeys()...))
	require.NoError(t, s.RemoveMany(ctx))

	_, err = s.Get(ctx, repository.KeyCart)
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Get(ctx, repository.KeyFavorites)
	require.ErrorIs(t, err, repository.ErrNotFound)

	got, err := s.Get(ctx, "unrelated")
	require.NoError(t, err)
	require.Equal(t, "keep", got)
}
