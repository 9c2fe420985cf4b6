package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Client операции каталога, которыми пользуется storefront
type Client interface {
	ListProducts(ctx context.Context, p ListParams) (ProductPage, error)
	GetProductByID(ctx context.Context, id int) (Product, error)
}

type cacheEntry struct {
	page      ProductPage
	product   Product
	expiresAt time.Time
}

// defaultFlightTimeout ограничивает общий запрос singleflight, который не привязан к ctx вызывающих
const defaultFlightTimeout = time.Minute

// CachedClient кэширует ответы каталога на ttl.
// Одинаковые конкурентные запросы склеиваются через singleflight.
// Страницы списка заодно прогревают кэш отдельных товаров.
type CachedClient struct {
	next Client
	ttl  time.Duration
	now  func() time.Time

	group         singleflight.Group
	flightTimeout time.Duration

	mu       sync.RWMutex
	listGen  uint64
	lists    map[string]cacheEntry
	products map[int]cacheEntry
}

// NewCachedClient оборачивает next кэшем; ttl <= 0 выключает кэширование
func NewCachedClient(next Client, ttl time.Duration) *CachedClient {
	return &CachedClient{
		next:          next,
		ttl:           ttl,
		now:           time.Now,
		flightTimeout: defaultFlightTimeout,
		lists:         make(map[string]cacheEntry),
		products:      make(map[int]cacheEntry),
	}
}

func listKey(p ListParams) string {
	return fmt.Sprintf("%s|%d|%d", strings.ToLower(strings.TrimSpace(p.Query)), p.Limit, p.Skip)
}

// ListProducts возвращает страницу из кэша или из next.
// Отмена ctx прерывает только ожидание этого вызова, общий запрос продолжается.
func (c *CachedClient) ListProducts(ctx context.Context, p ListParams) (ProductPage, error) {
	key := listKey(p)
	if page, ok := c.cachedList(key); ok {
		return page, nil
	}

	// после InvalidateLists новые вызовы не присоединяются к запросам старого поколения
	gen := c.listGeneration()
	flightKey := "list:" + strconv.FormatUint(gen, 10) + ":" + key
	ch := c.group.DoChan(flightKey, func() (interface{}, error) {
		fctx, cancel := c.flightContext(ctx)
		defer cancel()

		page, err := c.next.ListProducts(fctx, p)
		if err != nil {
			return ProductPage{}, err
		}
		c.storeList(gen, key, page)
		return page, nil
	})

	select {
	case <-ctx.Done():
		return ProductPage{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return ProductPage{}, res.Err
		}
		return res.Val.(ProductPage), nil
	}
}

// GetProductByID возвращает товар из кэша или из next; ErrNotFound не кэшируется
func (c *CachedClient) GetProductByID(ctx context.Context, id int) (Product, error) {
	if p, ok := c.cachedProduct(id); ok {
		return p, nil
	}

	ch := c.group.DoChan("product:"+strconv.Itoa(id), func() (interface{}, error) {
		fctx, cancel := c.flightContext(ctx)
		defer cancel()

		p, err := c.next.GetProductByID(fctx, id)
		if err != nil {
			return Product{}, err
		}
		c.storeProduct(p)
		return p, nil
	})

	select {
	case <-ctx.Done():
		return Product{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Product{}, res.Err
		}
		return res.Val.(Product), nil
	}
}

// flightContext отвязывает общий запрос от отмены первого вызывающего, сохраняя его значения (trace)
func (c *CachedClient) flightContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
}

// InvalidateProduct сбрасывает кэш одного товара
func (c *CachedClient) InvalidateProduct(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}

// InvalidateLists сбрасывает все закэшированные страницы.
// Ответы запросов, начатых до сброса, в кэш уже не попадут.
func (c *CachedClient) InvalidateLists() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listGen++
	c.lists = make(map[string]cacheEntry)
}

func (c *CachedClient) listGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listGen
}

func (c *CachedClient) cachedList(key string) (ProductPage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.lists[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return ProductPage{}, false
	}
	return e.page, true
}

func (c *CachedClient) cachedProduct(id int) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.products[id]
	if !ok || !c.now().Before(e.expiresAt) {
		return Product{}, false
	}
	return e.product, true
}

func (c *CachedClient) storeList(gen uint64, key string, page ProductPage) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.listGen {
		return
	}
	exp := c.now().Add(c.ttl)
	c.lists[key] = cacheEntry{page: page, expiresAt: exp}
	for _, p := range page.Products {
		c.products[p.ID] = cacheEntry{product: p, expiresAt: exp}
	}
}

func (c *CachedClient) storeProduct(p Product) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = cacheEntry{product: p, expiresAt: c.now().Add(c.ttl)}
}
