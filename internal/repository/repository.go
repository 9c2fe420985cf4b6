package repository

import (
	"context"
	"errors"
)

// Ключи, под которыми storefront хранит состояние в KV хранилище.
// Значения совместимы с форматом мобильного клиента (AsyncStorage).
const (
	// KeyCart JSON-массив позиций корзины
	KeyCart = "@eco-app:cart"
	// KeyFavorites JSON-объект {"ids": [...], "byId": {...}}
	KeyFavorites = "app:favorites:v2"
	// KeyFavoritesLegacy JSON-массив id; только чтение при гидратации
	KeyFavoritesLegacy = "@eco-app:favorites"
	// KeyProductsCache кэш каталога старого клиента; удаляется при ClearAll
	KeyProductsCache = "@eco-app:products-cache"
)

// AllKeys возвращает все ключи, которыми владеет storefront
func AllKeys() []string {
	return []string{KeyCart, KeyFavorites, KeyFavoritesLegacy, KeyProductsCache}
}

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=KVStore --dir=. --output=./mocks --outpkg=mocks

// KVStore определяет интерфейс персистентного key-value хранилища.
// Service слой зависит от этого интерфейса, а не от конкретной реализации
// (memory, sqlite, redis, postgres).
type KVStore interface {
	// Get возвращает значение по ключу.
	// Возвращает ErrNotFound, если ключа нет.
	Get(ctx context.Context, key string) (string, error)

	// Set сохраняет значение (перезаписывает существующее)
	Set(ctx context.Context, key, value string) error

	// RemoveMany удаляет ключи; отсутствующие ключи не считаются ошибкой
	RemoveMany(ctx context.Context, keys ...string) error
}

// ErrNotFound возвращается, когда ключ не найден в хранилище
var ErrNotFound = errors.New("key not found")
