package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/storefront/internal/catalog"
	"github.com/shestoi/GoBigTech/storefront/internal/repository"
	"github.com/shestoi/GoBigTech/storefront/internal/repository/memory"
	"github.com/shestoi/GoBigTech/storefront/internal/service"
	"github.com/shestoi/GoBigTech/storefront/internal/service/mocks"
	platformhealth "github.com/shestoi/GoBigTech/storefront/platform/health/http"
)

type testEnv struct {
	router    chi.Router
	catalog   *mocks.CatalogClient
	cart      *service.CartStore
	favorites *service.FavoritesStore
	listing   *service.ListingController
	persister *service.Persister
	store     *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	client := mocks.NewCatalogClient(t)
	cart := service.NewCartStore(logger, nil)
	favorites := service.NewFavoritesStore(logger, nil)
	listing := service.NewListingController(client, service.ListingConfig{PageLimit: 12}, logger, nil)
	t.Cleanup(listing.Close)

	store := memory.NewStore()
	persister := service.NewPersister(store, 8, logger, nil)
	persister.BindCart(cart)
	persister.BindFavorites(favorites)
	t.Cleanup(persister.Close)

	cats, err := catalog.Categories()
	require.NoError(t, err)

	handler := NewHandler(logger, client, cart, favorites, listing, persister, cats)
	router := NewRouter(handler, RouterDeps{
		Checks: []platformhealth.Check{
			{Name: "cart", Ready: cart.Hydrated},
			{Name: "favorites", Ready: favorites.Hydrated},
		},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	}, logger)

	return &testEnv{
		router:    router,
		catalog:   client,
		cart:      cart,
		favorites: favorites,
		listing:   listing,
		persister: persister,
		store:     store,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func lipstick(id int) catalog.Product {
	return catalog.Product{ID: id, Title: "Lipstick", Category: "beauty", Price: 20, DiscountPercentage: 20, Stock: 3}
}

func TestHandler_CartFlow(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.On("GetProductByID", mock.Anything, 1).Return(lipstick(1), nil)

	rec := env.do(http.MethodPost, "/cart/items", `{"product_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodPost, "/cart/items", `{"product_id":1}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		Items         []service.CartLineItem `json:"items"`
		ItemCount     int                    `json:"itemCount"`
		TotalPrice    string                 `json:"totalPrice"`
		TotalDiscount string                 `json:"totalDiscount"`
		Subtotal      string                 `json:"subtotal"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.ItemCount)
	assert.Equal(t, "40", summary.TotalPrice)
	assert.Equal(t, "10", summary.TotalDiscount)
	assert.Equal(t, "50", summary.Subtotal)

	// выше остатка не поднимается, ответ содержит неизменённую сводку
	rec = env.do(http.MethodPut, "/cart/items/1", `{"quantity":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, env.cart.GetQuantity(1))

	rec = env.do(http.MethodPut, "/cart/items/1", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, env.cart.GetQuantity(1))

	rec = env.do(http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.ItemCount)

	rec = env.do(http.MethodDelete, "/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.cart.IsInCart(1))

	env.do(http.MethodPost, "/cart/items", `{"product_id":1}`)
	rec = env.do(http.MethodDelete, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.cart.Snapshot().Items)
}

func TestHandler_AddToCartErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		catalogErr error
		wantStatus int
	}{
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "missing product id", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "not found", body: `{"product_id":9}`, catalogErr: catalog.ErrNotFound, wantStatus: http.StatusNotFound},
		{
			name:       "catalog unavailable",
			body:       `{"product_id":9}`,
			catalogErr: fmt.Errorf("%w: connection refused", catalog.ErrUnavailable),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if tt.catalogErr != nil {
				env.catalog.On("GetProductByID", mock.Anything, 9).Return(catalog.Product{}, tt.catalogErr)
			}

			rec := env.do(http.MethodPost, "/cart/items", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, decodeBody[errorResponse](t, rec).Error)
			assert.Empty(t, env.cart.Snapshot().Items)
		})
	}
}

func TestHandler_InvalidProductID(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/products/abc", "/products/0", "/favorites/x", "/favorites/-1"} {
		rec := env.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	rec := env.do(http.MethodPut, "/cart/items/1", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_GetProduct(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.On("GetProductByID", mock.Anything, 5).Return(lipstick(5), nil)
	env.catalog.On("GetProductByID", mock.Anything, 6).Return(catalog.Product{}, catalog.ErrNotFound)
	env.catalog.On("GetProductByID", mock.Anything, 7).Return(catalog.Product{}, catalog.ErrUnavailable)

	rec := env.do(http.MethodGet, "/products/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lipstick", decodeBody[catalog.Product](t, rec).Title)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/products/6", "").Code)
	assert.Equal(t, http.StatusBadGateway, env.do(http.MethodGet, "/products/7", "").Code)
}

func TestHandler_FavoritesFlow(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.On("GetProductByID", mock.Anything, 3).Return(lipstick(3), nil).Once()
	env.catalog.On("GetProductByID", mock.Anything, 4).Return(catalog.Product{}, catalog.ErrUnavailable).Once()

	rec := env.do(http.MethodPost, "/favorites/3/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, FavoriteResponse{ID: 3, Favorite: true, Count: 1}, decodeBody[FavoriteResponse](t, rec))

	// снапшот недоступен, но переключение всё равно происходит
	rec = env.do(http.MethodPost, "/favorites/4/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[FavoriteResponse](t, rec).Favorite)

	rec = env.do(http.MethodGet, "/favorites/4", "")
	assert.True(t, decodeBody[FavoriteResponse](t, rec).Favorite)

	rec = env.do(http.MethodGet, "/favorites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	favs := decodeBody[FavoritesResponse](t, rec)
	assert.Equal(t, []int{4, 3}, favs.IDs)
	assert.Equal(t, 2, favs.Count)
	require.Len(t, favs.Products, 1)
	assert.Equal(t, 3, favs.Products[0].ID)

	// снятие с избранного не ходит в каталог
	rec = env.do(http.MethodPost, "/favorites/3/toggle", "")
	assert.Equal(t, FavoriteResponse{ID: 3, Favorite: false, Count: 1}, decodeBody[FavoriteResponse](t, rec))

	rec = env.do(http.MethodDelete, "/favorites", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.favorites.Snapshot().IDs)
}

func TestHandler_FavoritesPreferListingProducts(t *testing.T) {
	env := newTestEnv(t)
	fresh := lipstick(1)
	fresh.Price = 15
	env.catalog.On("ListProducts", mock.Anything, catalog.ListParams{Limit: 12}).
		Return(catalog.ProductPage{Products: []catalog.Product{fresh}, Total: 1, Limit: 12}, nil)

	stale := lipstick(1)
	env.favorites.Hydrate([]int{1}, map[int]catalog.Product{1: stale})

	env.listing.Start()
	env.listing.Wait()

	rec := env.do(http.MethodGet, "/favorites", "")
	favs := decodeBody[FavoritesResponse](t, rec)
	require.Len(t, favs.Products, 1)
	assert.Equal(t, 15.0, favs.Products[0].Price)
	assert.True(t, favs.Hydrated)

	// toggle берёт снапшот из выдачи без запроса в каталог
	env.do(http.MethodPost, "/favorites/1/toggle", "")
	rec = env.do(http.MethodPost, "/favorites/1/toggle", "")
	assert.True(t, decodeBody[FavoriteResponse](t, rec).Favorite)
	env.catalog.AssertNotCalled(t, "GetProductByID", mock.Anything, 1)
}

func TestHandler_ToggleFavoriteRemovedDuringSnapshotFetch(t *testing.T) {
	env := newTestEnv(t)
	// пока каталог отвечает, другой запрос снимает товар с избранного
	env.catalog.On("GetProductByID", mock.Anything, 7).
		Run(func(mock.Arguments) { env.favorites.Toggle(7, nil) }).
		Return(lipstick(7), nil).Once()

	rec := env.do(http.MethodPost, "/favorites/7/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, FavoriteResponse{ID: 7, Favorite: true, Count: 0}, decodeBody[FavoriteResponse](t, rec))

	snap := env.favorites.Snapshot()
	assert.Empty(t, snap.IDs)
	assert.Empty(t, snap.ByID)
}

func TestHandler_Listing(t *testing.T) {
	env := newTestEnv(t)
	page := catalog.ProductPage{Total: 30, Limit: 12}
	for i := 1; i <= 12; i++ {
		page.Products = append(page.Products, catalog.Product{ID: i, Title: "item", Category: "beauty", Price: float64(i), Rating: 4})
	}
	env.catalog.On("ListProducts", mock.Anything, catalog.ListParams{Limit: 12}).Return(page, nil)

	env.listing.Start()
	env.listing.Wait()

	rec := env.do(http.MethodGet, "/listing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[service.ListingView](t, rec)
	assert.Len(t, view.Products, 12)
	assert.True(t, view.HasMore)
	assert.Equal(t, service.ListingAccumulating, view.State)

	rec = env.do(http.MethodPost, "/listing/sort", `{"sort":"price-desc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeBody[service.ListingView](t, rec)
	assert.Equal(t, 12, view.Products[0].ID)

	rec = env.do(http.MethodPost, "/listing/sort", `{"sort":"cheapest"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/listing/category", `{"category":"groceries"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[service.ListingView](t, rec).Products)

	rec = env.do(http.MethodPost, "/listing/category", `{"category":"spaceships"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// retry без ошибки ничего не делает
	rec = env.do(http.MethodPost, "/listing/retry", "")
	assert.False(t, decodeBody[ListingActionResponse](t, rec).Accepted)

	next := catalog.ProductPage{Total: 30, Skip: 12, Limit: 12}
	env.catalog.On("ListProducts", mock.Anything, catalog.ListParams{Limit: 12, Skip: 12}).Return(next, nil)
	rec = env.do(http.MethodPost, "/listing/more", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[ListingActionResponse](t, rec).Accepted)
	env.listing.Wait()

	// пустая страница завершает выдачу
	assert.Equal(t, service.ListingExhausted, env.listing.View().State)
}

func TestHandler_Categories(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decodeBody[[]catalog.Category](t, rec)
	require.NotEmpty(t, cats)
	assert.Equal(t, catalog.CategoryAll, cats[0].ID)
}

func TestHandler_ClearStorage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.store.Set(ctx, repository.KeyProductsCache, "[]"))
	require.NoError(t, env.store.Set(ctx, repository.KeyFavoritesLegacy, "[1]"))

	env.catalog.On("GetProductByID", mock.Anything, 1).Return(lipstick(1), nil)
	env.do(http.MethodPost, "/cart/items", `{"product_id":1}`)
	env.do(http.MethodPost, "/favorites/1/toggle", "")

	rec := env.do(http.MethodDelete, "/storage", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Empty(t, env.cart.Snapshot().Items)
	assert.Empty(t, env.favorites.Snapshot().IDs)
	for _, key := range repository.AllKeys() {
		_, err := env.store.Get(ctx, key)
		assert.ErrorIs(t, err, repository.ErrNotFound, key)
	}
}

func TestHandler_Health(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.cart.Hydrate(nil)
	env.favorites.Hydrate(nil, nil)

	rec = env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}
