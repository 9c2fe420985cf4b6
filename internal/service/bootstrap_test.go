package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/storefront/internal/catalog"
	"github.com/shestoi/GoBigTech/storefront/internal/repository"
	"github.com/shestoi/GoBigTech/storefront/internal/repository/memory"
	repoMocks "github.com/shestoi/GoBigTech/storefront/internal/repository/mocks"
)

func TestHydrate(t *testing.T) {
	tests := []struct {
		name      string
		stored    map[string]string
		wantCart  []int
		wantQty   map[int]int
		wantFavs  []int
		wantSnaps []int
	}{
		{
			name:     "nothing stored",
			wantCart: []int{},
			wantFavs: []int{},
		},
		{
			name: "v2 favorites and cart",
			stored: map[string]string{
				repository.KeyCart:      `[{"id":3,"title":"Lamp","price":10,"stock":5,"quantity":2},{"id":1,"price":1,"stock":9,"quantity":1}]`,
				repository.KeyFavorites: `{"ids":[5,2],"byId":{"5":{"id":5,"title":"Sofa"}}}`,
			},
			wantCart:  []int{3, 1},
			wantQty:   map[int]int{3: 2, 1: 1},
			wantFavs:  []int{5, 2},
			wantSnaps: []int{5},
		},
		{
			name: "legacy favorites when v2 is absent",
			stored: map[string]string{
				repository.KeyFavoritesLegacy: `[4,8,15]`,
			},
			wantCart: []int{},
			wantFavs: []int{4, 8, 15},
		},
		{
			name: "v2 wins over legacy",
			stored: map[string]string{
				repository.KeyFavorites:       `{"ids":[1],"byId":{}}`,
				repository.KeyFavoritesLegacy: `[4,8,15]`,
			},
			wantCart: []int{},
			wantFavs: []int{1},
		},
		{
			name: "malformed values mean empty state",
			stored: map[string]string{
				repository.KeyCart:      `{not json`,
				repository.KeyFavorites: `[1,2,3]`,
			},
			wantCart: []int{},
			wantFavs: []int{},
		},
		{
			name: "invalid cart lines are dropped and clamped",
			stored: map[string]string{
				repository.KeyCart: `[{"id":1,"stock":5,"quantity":0},{"id":2,"stock":0,"quantity":1},{"id":3,"stock":2,"quantity":9},{"id":3,"stock":9,"quantity":1}]`,
			},
			wantCart: []int{3},
			wantQty:  map[int]int{3: 2},
			wantFavs: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewStore()
			for k, v := range tt.stored {
				require.NoError(t, store.Set(ctx, k, v))
			}

			cart := NewCartStore(zap.NewNop(), nil)
			fav := NewFavoritesStore(zap.NewNop(), nil)
			Hydrate(ctx, store, cart, fav, zap.NewNop())

			require.True(t, cart.Hydrated())
			require.True(t, fav.Hydrated())

			ids := []int{}
			for _, it := range cart.Snapshot().Items {
				ids = append(ids, it.ID)
			}
			require.Equal(t, tt.wantCart, ids)
			for id, q := range tt.wantQty {
				require.Equal(t, q, cart.GetQuantity(id))
			}

			snap := fav.Snapshot()
			require.Equal(t, tt.wantFavs, snap.IDs)
			require.Len(t, snap.ByID, len(tt.wantSnaps))
			for _, id := range tt.wantSnaps {
				require.Contains(t, snap.ByID, id)
			}
		})
	}
}

func TestHydrate_ReadFailureMeansEmptyState(t *testing.T) {
	store := repoMocks.NewKVStore(t)
	store.On("Get", mock.Anything, repository.KeyCart).Return("", errors.New("connection refused"))
	store.On("Get", mock.Anything, repository.KeyFavorites).Return("", errors.New("connection refused"))

	cart := NewCartStore(zap.NewNop(), nil)
	fav := NewFavoritesStore(zap.NewNop(), nil)
	Hydrate(context.Background(), store, cart, fav, zap.NewNop())

	require.True(t, cart.Hydrated())
	require.True(t, fav.Hydrated())
	require.Empty(t, cart.Snapshot().Items)
	require.Empty(t, fav.Snapshot().IDs)
}

func TestFavoritesCodec(t *testing.T) {
	raw, err := EncodeFavorites(nil, nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"ids":[],"byId":{}}`, raw)

	raw, err = EncodeFavorites([]int{2, 1}, map[int]catalog.Product{2: {ID: 2, Title: "Chair"}})
	require.NoError(t, err)

	ids, byID, err := DecodeFavorites(raw)
	require.NoError(t, err)
	require.Equal(t, []int{2, 1}, ids)
	require.Equal(t, "Chair", byID[2].Title)

	raw, err = EncodeCart(nil)
	require.NoError(t, err)
	require.Equal(t, "[]", raw)
}

func TestCartCodec_FlatJSON(t *testing.T) {
	raw, err := EncodeCart([]CartLineItem{{Product: catalog.Product{ID: 1, Title: "Lamp", Price: 10, Stock: 3}, Quantity: 2}})
	require.NoError(t, err)
	// позиция хранится плоским объектом: поля товара плюс quantity
	require.JSONEq(t,
		`[{"id":1,"title":"Lamp","description":"","price":10,"discountPercentage":0,"rating":0,"stock":3,"category":"","thumbnail":"","quantity":2}]`,
		raw)
}
