package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shestoi/GoBigTech/storefront/internal/catalog"
	"github.com/shestoi/GoBigTech/storefront/internal/repository"
)

// favoritesRecord формат ключа app:favorites:v2
type favoritesRecord struct {
	IDs  []int                      `json:"ids"`
	ByID map[string]catalog.Product `json:"byId"`
}

// EncodeCart сериализует позиции корзины в JSON массив
func EncodeCart(items []CartLineItem) (string, error) {
	if items == nil {
		items = []CartLineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode cart: %w", err)
	}
	return string(b), nil
}

// DecodeCart разбирает сохранённую корзину.
// Позиции без количества, без остатка и повторные id отбрасываются,
// количество выше stock урезается до stock.
func DecodeCart(raw string) ([]CartLineItem, error) {
	var items []CartLineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	out := make([]CartLineItem, 0, len(items))
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if it.Quantity < 1 || it.Stock < 1 {
			continue
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		if it.Quantity > it.Stock {
			it.Quantity = it.Stock
		}
		out = append(out, it)
	}
	return out, nil
}

// EncodeFavorites сериализует избранное в формат {"ids": [...], "byId": {...}}
func EncodeFavorites(ids []int, byID map[int]catalog.Product) (string, error) {
	rec := favoritesRecord{
		IDs:  ids,
		ByID: make(map[string]catalog.Product, len(byID)),
	}
	if rec.IDs == nil {
		rec.IDs = []int{}
	}
	for id, p := range byID {
		rec.ByID[strconv.Itoa(id)] = p
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode favorites: %w", err)
	}
	return string(b), nil
}

// DecodeFavorites разбирает app:favorites:v2
func DecodeFavorites(raw string) ([]int, map[int]catalog.Product, error) {
	var rec favoritesRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, nil, fmt.Errorf("decode favorites: %w", err)
	}
	byID := make(map[int]catalog.Product, len(rec.ByID))
	for k, p := range rec.ByID {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		byID[id] = p
	}
	return rec.IDs, byID, nil
}

// DecodeLegacyFavorites разбирает старый формат: массив id
func DecodeLegacyFavorites(raw string) ([]int, error) {
	var ids []int
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode legacy favorites: %w", err)
	}
	return ids, nil
}

// Hydrate загружает корзину и избранное из хранилища и ставит hydrated.
// Любая ошибка чтения или разбора означает пустое состояние, а не отказ старта.
func Hydrate(ctx context.Context, store repository.KVStore, cart *CartStore, favorites *FavoritesStore, logger *zap.Logger) {
	logger = logger.With(zap.String("component", "hydration"))

	var (
		items  []CartLineItem
		favIDs []int
		favBy  map[int]catalog.Product
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := store.Get(gctx, repository.KeyCart)
		if err != nil {
			logReadFailure(logger, repository.KeyCart, err)
			return nil
		}
		if items, err = DecodeCart(raw); err != nil {
			logger.Warn("stored cart is malformed, starting empty", zap.Error(err))
			items = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		favIDs, favBy, err = readFavorites(gctx, store, logger)
		if err != nil {
			logger.Warn("stored favorites unreadable, starting empty", zap.Error(err))
			favIDs, favBy = nil, nil
		}
		return nil
	})
	_ = g.Wait()

	cart.Hydrate(items)
	favorites.Hydrate(favIDs, favBy)

	logger.Info("state hydrated",
		zap.Int("cart_items", len(items)),
		zap.Int("favorites", len(favIDs)),
	)
}

// readFavorites читает v2 ключ, при его отсутствии старый массив id
func readFavorites(ctx context.Context, store repository.KVStore, logger *zap.Logger) ([]int, map[int]catalog.Product, error) {
	raw, err := store.Get(ctx, repository.KeyFavorites)
	if err == nil {
		return DecodeFavorites(raw)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}

	raw, err = store.Get(ctx, repository.KeyFavoritesLegacy)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	ids, err := DecodeLegacyFavorites(raw)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("favorites loaded from legacy key", zap.Int("count", len(ids)))
	return ids, nil, nil
}

func logReadFailure(logger *zap.Logger, key string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		logger.Debug("nothing stored", zap.String("key", key))
		return
	}
	logger.Warn("failed to read stored state, starting empty", zap.String("key", key), zap.Error(err))
}

// ClearAll очищает корзину и избранное и удаляет все ключи storefront из хранилища.
// Удаление идёт через очередь Persister, поэтому выполняется после записей пустого состояния.
func ClearAll(ctx context.Context, persister *Persister, cart *CartStore, favorites *FavoritesStore) error {
	cart.Clear()
	favorites.Clear()
	return persister.Remove(ctx, repository.AllKeys()...)
}
