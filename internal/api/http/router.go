package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	platformhealth "github.com/shestoi/GoBigTech/storefront/platform/health/http"
	platformobservability "github.com/shestoi/GoBigTech/storefront/platform/observability"
)

// RouterDeps служебные endpoints, которые собирает app
type RouterDeps struct {
	// Checks проверки готовности для /health (гидратация stores)
	Checks []platformhealth.Check
	// Metrics handler для /metrics; nil - endpoint не регистрируется
	Metrics http.Handler
	// WS handler для /ws; nil - endpoint не регистрируется
	WS http.Handler
}

// NewRouter создаёт chi роутер storefront API.
// logger используется observability middleware (trace_id в логах запроса).
func NewRouter(handler *Handler, deps RouterDeps, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	router.Group(func(r chi.Router) {
		if logger != nil {
			r.Use(platformobservability.HTTPMiddleware("storefront", logger))
		}

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", handler.GetCart)
			r.Delete("/", handler.ClearCart)
			r.Post("/items", handler.AddToCart)
			r.Put("/items/{id}", handler.UpdateCartItem)
			r.Delete("/items/{id}", handler.RemoveCartItem)
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", handler.GetFavorites)
			r.Delete("/", handler.ClearFavorites)
			r.Get("/{id}", handler.IsFavorite)
			r.Post("/{id}/toggle", handler.ToggleFavorite)
		})

		r.Get("/products/{id}", handler.GetProduct)
		r.Get("/categories", handler.GetCategories)

		r.Route("/listing", func(r chi.Router) {
			r.Get("/", handler.GetListing)
			r.Post("/search", handler.SearchListing)
			r.Post("/category", handler.SetListingCategory)
			r.Post("/sort", handler.SetListingSort)
			r.Post("/more", handler.LoadMoreListing)
			r.Post("/refresh", handler.RefreshListing)
			r.Post("/retry", handler.RetryListing)
		})

		r.Delete("/storage", handler.ClearStorage)

		if deps.WS != nil {
			r.Get("/ws", deps.WS.ServeHTTP)
		}
	})

	// служебные endpoints без трассировки
	router.Get("/health", platformhealth.Handler(deps.Checks...))
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics)
	}

	return router
}
