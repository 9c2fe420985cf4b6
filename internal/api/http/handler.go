package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformobservability "github.com/shestoi/GoBigTech/storefront/platform/observability"

	"github.com/shestoi/GoBigTech/storefront/internal/catalog"
	"github.com/shestoi/GoBigTech/storefront/internal/service"
)

// Handler HTTP обработчики storefront.
// Состояние живёт в stores и listing контроллере, handler только переводит HTTP в их операции.
type Handler struct {
	logger     *zap.Logger
	catalog    service.CatalogClient
	cart       *service.CartStore
	favorites  *service.FavoritesStore
	listing    *service.ListingController
	persister  *service.Persister
	categories []catalog.Category
}

// NewHandler создаёт handler
func NewHandler(
	logger *zap.Logger,
	catalogClient service.CatalogClient,
	cart *service.CartStore,
	favorites *service.FavoritesStore,
	listing *service.ListingController,
	persister *service.Persister,
	categories []catalog.Category,
) *Handler {
	return &Handler{
		logger:     logger,
		catalog:    catalogClient,
		cart:       cart,
		favorites:  favorites,
		listing:    listing,
		persister:  persister,
		categories: categories,
	}
}

type addToCartRequest struct {
	ProductID *int `json:"product_id"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type categoryRequest struct {
	Category string `json:"category"`
}

type sortRequest struct {
	Sort string `json:"sort"`
}

// FavoritesResponse ответ GET /favorites
type FavoritesResponse struct {
	IDs      []int             `json:"ids"`
	Products []catalog.Product `json:"products"`
	Count    int               `json:"count"`
	Hydrated bool              `json:"hydrated"`
}

// FavoriteResponse ответ на проверку/переключение одного товара
type FavoriteResponse struct {
	ID       int  `json:"id"`
	Favorite bool `json:"favorite"`
	Count    int  `json:"count"`
}

// ListingActionResponse ответ на loadMore/retry: accepted=false значит запрос не выполнялся
type ListingActionResponse struct {
	Accepted bool                `json:"accepted"`
	View     service.ListingView `json:"view"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetCart GET /cart
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.cart.Summary())
}

// AddToCart POST /cart/items - товар берётся из каталога, затем добавляется в корзину
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.ProductID == nil || *req.ProductID <= 0 {
		h.writeError(w, r, http.StatusBadRequest, "product_id is required")
		return
	}

	product, err := h.catalog.GetProductByID(r.Context(), *req.ProductID)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}

	snap := h.cart.AddItem(product)
	h.writeJSON(w, r, http.StatusOK, service.Summarize(snap))
}

// UpdateCartItem PUT /cart/items/{id}; quantity <= 0 удаляет позицию
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Quantity == nil {
		h.writeError(w, r, http.StatusBadRequest, "quantity is required")
		return
	}

	snap := h.cart.UpdateQuantity(id, *req.Quantity)
	h.writeJSON(w, r, http.StatusOK, service.Summarize(snap))
}

// RemoveCartItem DELETE /cart/items/{id}
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	snap := h.cart.RemoveItem(id)
	h.writeJSON(w, r, http.StatusOK, service.Summarize(snap))
}

// ClearCart DELETE /cart
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	snap := h.cart.Clear()
	h.writeJSON(w, r, http.StatusOK, service.Summarize(snap))
}

// GetFavorites GET /favorites.
// Товар берётся из текущей выдачи, если он там есть, иначе из сохранённого снапшота.
func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	snap := h.favorites.Snapshot()

	products := make([]catalog.Product, 0, len(snap.IDs))
	for _, id := range snap.IDs {
		if p, ok := h.listing.Lookup(id); ok {
			products = append(products, p)
			continue
		}
		if p, ok := snap.ByID[id]; ok {
			products = append(products, p)
		}
	}

	h.writeJSON(w, r, http.StatusOK, FavoritesResponse{
		IDs:      snap.IDs,
		Products: products,
		Count:    len(snap.IDs),
		Hydrated: snap.Hydrated,
	})
}

// IsFavorite GET /favorites/{id}
func (h *Handler) IsFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, r, http.StatusOK, FavoriteResponse{
		ID:       id,
		Favorite: h.favorites.IsFavorite(id),
		Count:    len(h.favorites.Snapshot().IDs),
	})
}

// ToggleFavorite POST /favorites/{id}/toggle.
// Снапшот товара нужен только при добавлении; ошибка каталога не мешает переключению.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var snapshot *catalog.Product
	if p, found := h.listing.Lookup(id); found {
		snapshot = &p
	}

	added := h.favorites.Toggle(id, snapshot)
	// снапшот из каталога дописывается, только пока id остаётся в избранном
	if added && snapshot == nil {
		if p, err := h.catalog.GetProductByID(r.Context(), id); err == nil {
			h.favorites.AttachSnapshot(id, p)
		} else {
			platformobservability.L(r.Context(), h.logger).Warn("favorite snapshot unavailable",
				zap.Int("product_id", id),
				zap.Error(err),
			)
		}
	}

	h.writeJSON(w, r, http.StatusOK, FavoriteResponse{
		ID:       id,
		Favorite: added,
		Count:    len(h.favorites.Snapshot().IDs),
	})
}

// ClearFavorites DELETE /favorites
func (h *Handler) ClearFavorites(w http.ResponseWriter, r *http.Request) {
	h.favorites.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// GetProduct GET /products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	product, err := h.catalog.GetProductByID(r.Context(), id)
	if err != nil {
		h.writeCatalogError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, product)
}

// GetListing GET /listing
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.listing.View())
}

// SearchListing POST /listing/search - запрос применится после паузы debounce
func (h *Handler) SearchListing(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	h.listing.SetSearchInput(req.Query)
	h.writeJSON(w, r, http.StatusAccepted, h.listing.View())
}

// SetListingCategory POST /listing/category
func (h *Handler) SetListingCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Category != "" && !h.knownCategory(req.Category) {
		h.writeError(w, r, http.StatusBadRequest, "unknown category: "+req.Category)
		return
	}
	h.listing.SetCategory(req.Category)
	h.writeJSON(w, r, http.StatusOK, h.listing.View())
}

// SetListingSort POST /listing/sort
func (h *Handler) SetListingSort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := h.listing.SetSort(service.SortOption(req.Sort)); err != nil {
		if errors.Is(err, service.ErrInvalidSort) {
			h.writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.listing.View())
}

// LoadMoreListing POST /listing/more
func (h *Handler) LoadMoreListing(w http.ResponseWriter, r *http.Request) {
	accepted := h.listing.LoadMore()
	h.writeJSON(w, r, http.StatusOK, ListingActionResponse{Accepted: accepted, View: h.listing.View()})
}

// RefreshListing POST /listing/refresh
func (h *Handler) RefreshListing(w http.ResponseWriter, r *http.Request) {
	h.listing.Refresh()
	h.writeJSON(w, r, http.StatusOK, h.listing.View())
}

// RetryListing POST /listing/retry
func (h *Handler) RetryListing(w http.ResponseWriter, r *http.Request) {
	accepted := h.listing.Retry()
	h.writeJSON(w, r, http.StatusOK, ListingActionResponse{Accepted: accepted, View: h.listing.View()})
}

// GetCategories GET /categories
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.categories)
}

// ClearStorage DELETE /storage - сбрасывает обе store и удаляет все ключи из хранилища
func (h *Handler) ClearStorage(w http.ResponseWriter, r *http.Request) {
	if err := service.ClearAll(r.Context(), h.persister, h.cart, h.favorites); err != nil {
		platformobservability.L(r.Context(), h.logger).Error("failed to clear storage", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "failed to clear storage")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) knownCategory(id string) bool {
	for _, c := range h.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		h.writeError(w, r, http.StatusBadRequest, "invalid product id: "+raw)
		return 0, false
	}
	return id, true
}

// writeCatalogError переводит ошибки каталога в HTTP статус
func (h *Handler) writeCatalogError(w http.ResponseWriter, r *http.Request, err error) {
	log := platformobservability.L(r.Context(), h.logger)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		h.writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrUnavailable):
		log.Warn("catalog request failed", zap.Error(err))
		h.writeError(w, r, http.StatusBadGateway, "catalog unavailable")
	default:
		log.Error("catalog request failed", zap.Error(err))
		h.writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, errorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		platformobservability.L(r.Context(), h.logger).Error("failed to encode response", zap.Error(err))
	}
}
