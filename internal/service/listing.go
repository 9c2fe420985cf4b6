package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/storefront/internal/catalog"
)

// ListingState состояние сессии выдачи
type ListingState string

const (
	ListingIdle         ListingState = "idle"
	ListingFetching     ListingState = "fetching"
	ListingAccumulating ListingState = "accumulating"
	ListingExhausted    ListingState = "exhausted"
	ListingFailed       ListingState = "failed"
)

// SortOption клиентская сортировка выдачи
type SortOption string

const (
	SortDefault   SortOption = "default"
	SortPriceAsc  SortOption = "price-asc"
	SortPriceDesc SortOption = "price-desc"
	SortRating    SortOption = "rating"
)

// ErrInvalidSort неизвестный вариант сортировки
var ErrInvalidSort = errors.New("invalid sort option")

// ParseSortOption проверяет строку сортировки; пустая строка значит SortDefault
func ParseSortOption(s string) (SortOption, error) {
	switch opt := SortOption(s); opt {
	case "":
		return SortDefault, nil
	case SortDefault, SortPriceAsc, SortPriceDesc, SortRating:
		return opt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
	}
}

// Filters клиентские фильтры выдачи
type Filters struct {
	Query    string
	Category string
	Sort     SortOption
}

// ListingView производное представление выдачи для UI.
// Version растёт с каждым уведомлением: клиент отбрасывает кадры с меньшей версией.
type ListingView struct {
	Products    []catalog.Product `json:"products"`
	Total       int               `json:"total"`
	Accumulated int               `json:"accumulated"`
	Skip        int               `json:"skip"`
	HasMore     bool              `json:"hasMore"`
	IsFetching  bool              `json:"isFetching"`
	State       ListingState      `json:"state"`
	Error       string            `json:"error,omitempty"`
	SearchInput string            `json:"searchInput"`
	Query       string            `json:"query"`
	Category    string            `json:"category"`
	Sort        SortOption        `json:"sort"`
	Session     uint64            `json:"session"`
	Version     uint64            `json:"version"`
}

// ListingConfig настройки контроллера
type ListingConfig struct {
	PageLimit int
	Debounce  time.Duration
}

// ListingListener получает новое представление после каждого изменения
type ListingListener func(ListingView)

// listInvalidator реализуется catalog.CachedClient
type listInvalidator interface {
	InvalidateLists()
}

// ListingController ведёт сессию постраничной выдачи: debounce поиска,
// накопление страниц без дублей, фильтры и сортировку на клиенте.
// Сессия определяется debounced строкой поиска; ответы прошлых сессий отбрасываются.
type ListingController struct {
	catalog CatalogClient
	limit   int
	logger  *zap.Logger
	metrics Metrics

	debouncer *Debouncer[string]

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu          sync.Mutex
	input       string
	query       string
	category    string
	sort        SortOption
	session     uint64
	version     uint64
	order       []int
	items       map[int]catalog.Product
	total       int
	skip        int
	state       ListingState
	err         error
	pending     catalog.ListParams
	cancelFetch context.CancelFunc
	listeners   []ListingListener
}

// NewListingController создаёт контроллер в состоянии idle.
// Первую страницу запрашивает Start.
func NewListingController(client CatalogClient, cfg ListingConfig, logger *zap.Logger, metrics Metrics) *ListingController {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 12
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &ListingController{
		catalog:  client,
		limit:    cfg.PageLimit,
		logger:   logger.With(zap.String("component", "listing")),
		metrics:  metrics,
		baseCtx:  ctx,
		stop:     cancel,
		category: catalog.CategoryAll,
		sort:     SortDefault,
		items:    make(map[int]catalog.Product),
		state:    ListingIdle,
	}
	c.debouncer = NewDebouncer(cfg.Debounce, c.SetQuery)
	return c
}

// OnChange регистрирует listener представления
func (c *ListingController) OnChange(l ListingListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Start открывает первую сессию с пустым запросом
func (c *ListingController) Start() {
	c.mu.Lock()
	if c.session > 0 {
		c.mu.Unlock()
		return
	}
	c.resetSessionLocked(c.query)
	c.finish()
}

// SetSearchInput обновляет сырой ввод сразу, а запрос после паузы debounce
func (c *ListingController) SetSearchInput(raw string) {
	c.mu.Lock()
	c.input = raw
	c.finish()

	c.debouncer.Push(raw)
}

// SetQuery открывает новую сессию, если запрос изменился
func (c *ListingController) SetQuery(q string) {
	c.mu.Lock()
	if c.session > 0 && q == c.query {
		c.mu.Unlock()
		return
	}
	c.resetSessionLocked(q)
	c.finish()
}

// SetCategory меняет фильтр категории; пустая строка значит "all"
func (c *ListingController) SetCategory(category string) {
	if category == "" {
		category = catalog.CategoryAll
	}
	c.mu.Lock()
	c.category = category
	c.finish()
}

// SetSort меняет сортировку
func (c *ListingController) SetSort(opt SortOption) error {
	opt, err := ParseSortOption(string(opt))
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.sort = opt
	c.finish()
	return nil
}

// LoadMore запрашивает следующую страницу.
// Ничего не делает во время загрузки, после ошибки и когда всё уже получено.
func (c *ListingController) LoadMore() bool {
	c.mu.Lock()
	if c.state != ListingAccumulating || len(c.items) >= c.total {
		c.mu.Unlock()
		return false
	}
	c.skip += c.limit
	c.fetchLocked(catalog.ListParams{Query: c.query, Limit: c.limit, Skip: c.skip})
	c.finish()
	return true
}

// Refresh сбрасывает запрос, категорию и сортировку и заново грузит первую страницу
func (c *ListingController) Refresh() {
	c.debouncer.Cancel()
	if inv, ok := c.catalog.(listInvalidator); ok {
		inv.InvalidateLists()
	}

	c.mu.Lock()
	c.input = ""
	c.category = catalog.CategoryAll
	c.sort = SortDefault
	c.resetSessionLocked("")
	c.finish()
}

// Retry повторяет упавший запрос той же страницы
func (c *ListingController) Retry() bool {
	c.mu.Lock()
	if c.state != ListingFailed {
		c.mu.Unlock()
		return false
	}
	c.fetchLocked(c.pending)
	c.finish()
	return true
}

// View возвращает текущее представление
func (c *ListingController) View() ListingView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// Lookup ищет товар среди накопленных в текущей сессии
func (c *ListingController) Lookup(id int) (catalog.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[id]
	return p, ok
}

// Wait ждёт завершения запросов в полёте
func (c *ListingController) Wait() {
	c.wg.Wait()
}

// Close останавливает debounce, отменяет запросы и ждёт их завершения
func (c *ListingController) Close() {
	c.debouncer.Stop()
	c.stop()
	c.wg.Wait()
}

// resetSessionLocked начинает новую сессию: старые ответы становятся устаревшими
func (c *ListingController) resetSessionLocked(q string) {
	c.session++
	c.query = q
	c.order = nil
	c.items = make(map[int]catalog.Product)
	c.total = 0
	c.skip = 0
	c.err = nil
	c.fetchLocked(catalog.ListParams{Query: q, Limit: c.limit, Skip: 0})
}

func (c *ListingController) fetchLocked(params catalog.ListParams) {
	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancelFetch = cancel
	c.state = ListingFetching
	c.err = nil
	c.pending = params
	session := c.session

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		page, err := c.catalog.ListProducts(ctx, params)
		c.applyPage(session, params, page, err)
	}()
}

func (c *ListingController) applyPage(session uint64, params catalog.ListParams, page catalog.ProductPage, err error) {
	c.mu.Lock()
	if session != c.session {
		c.mu.Unlock()
		c.metrics.StaleResponseDiscarded()
		c.logger.Debug("stale listing response discarded",
			zap.Uint64("session", session),
			zap.String("query", params.Query),
			zap.Int("skip", params.Skip),
		)
		return
	}
	if c.baseCtx.Err() != nil {
		c.mu.Unlock()
		return
	}

	c.metrics.CatalogFetch("list", err)
	if err != nil {
		c.state = ListingFailed
		c.err = err
		c.logger.Warn("listing page fetch failed",
			zap.String("query", params.Query),
			zap.Int("skip", params.Skip),
			zap.Error(err),
		)
		c.finish()
		return
	}

	for _, p := range page.Products {
		if _, seen := c.items[p.ID]; !seen {
			c.order = append(c.order, p.ID)
		}
		c.items[p.ID] = p
	}
	c.total = page.Total
	c.state = ListingAccumulating
	// пустая страница тоже конец: иначе total с дублями зациклит LoadMore
	if len(c.items) >= c.total || len(page.Products) == 0 {
		c.state = ListingExhausted
	}
	c.finish()
}

// finish снимает блокировку и уведомляет listeners; вызывается с захваченным mu
func (c *ListingController) finish() {
	c.version++
	view := c.viewLocked()
	listeners := append([]ListingListener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(view)
	}
}

func (c *ListingController) viewLocked() ListingView {
	accumulated := make([]catalog.Product, 0, len(c.order))
	for _, id := range c.order {
		accumulated = append(accumulated, c.items[id])
	}
	v := ListingView{
		Products:    DeriveView(accumulated, Filters{Query: c.query, Category: c.category, Sort: c.sort}),
		Total:       c.total,
		Accumulated: len(c.items),
		Skip:        c.skip,
		HasMore:     c.state != ListingIdle && len(c.items) < c.total && c.state != ListingExhausted,
		IsFetching:  c.state == ListingFetching,
		State:       c.state,
		SearchInput: c.input,
		Query:       c.query,
		Category:    c.category,
		Sort:        c.sort,
		Session:     c.session,
		Version:     c.version,
	}
	if c.err != nil {
		v.Error = c.err.Error()
	}
	return v
}

// DeriveView фильтрует и сортирует накопленные товары.
// Чистая функция: входной срез не меняется, сортировка стабильная.
func DeriveView(items []catalog.Product, f Filters) []catalog.Product {
	out := make([]catalog.Product, 0, len(items))
	q := strings.ToLower(strings.TrimSpace(f.Query))
	for _, p := range items {
		if f.Category != "" && f.Category != catalog.CategoryAll && p.Category != f.Category {
			continue
		}
		if q != "" && !matchesQuery(p, q) {
			continue
		}
		out = append(out, p)
	}

	switch f.Sort {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	case SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	}
	return out
}

func matchesQuery(p catalog.Product, q string) bool {
	for _, field := range []string{p.Title, p.Description, p.Category, p.Brand} {
		if field != "" && strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
