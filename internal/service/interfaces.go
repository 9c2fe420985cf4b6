package service

import (
	"context"

	"github.com/shestoi/GoBigTech/storefront/internal/catalog"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=CatalogClient --dir=. --output=./mocks --outpkg=mocks

// CatalogClient интерфейс каталога товаров.
// Service слой зависит от интерфейса, реализация в internal/catalog.
type CatalogClient interface {
	ListProducts(ctx context.Context, p catalog.ListParams) (catalog.ProductPage, error)
	GetProductByID(ctx context.Context, id int) (catalog.Product, error)
}

// Metrics счётчики, которые пишет service слой.
// Реализация на Prometheus в internal/metrics.
type Metrics interface {
	CartMutation(op string)
	FavoriteToggled(added bool)
	PersistWrite(key string, err error)
	CatalogFetch(op string, err error)
	StaleResponseDiscarded()
}

// NopMetrics ничего не считает; для тестов и запуска без метрик
type NopMetrics struct{}

func (NopMetrics) CartMutation(string) {}
func (NopMetrics) FavoriteToggled(bool) {}
func (NopMetrics) PersistWrite(string, error) {}
func (NopMetrics) CatalogFetch(string, error) {}
func (NopMetrics) StaleResponseDiscarded() {}
