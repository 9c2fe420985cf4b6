package service

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/storefront/internal/catalog"
)

// Операции корзины; попадают в метрики и события
const (
	CartOpAdd     = "add"
	CartOpRemove  = "remove"
	CartOpUpdate  = "update_quantity"
	CartOpClear   = "clear"
	CartOpHydrate = "hydrate"
)

// maxDiscountPercent верхняя граница скидки, чтобы 100% не давало деление на ноль
var maxDiscountPercent = decimal.RequireFromString("99.999")

// CartLineItem позиция корзины: снапшот товара на момент добавления и количество.
// Stock снапшота служит потолком количества.
type CartLineItem struct {
	catalog.Product
	Quantity int `json:"quantity"`
}

// CartSnapshot неизменяемая копия состояния корзины после коммита
type CartSnapshot struct {
	Op       string
	Items    []CartLineItem
	Hydrated bool
	Version  uint64
}

// CartListener вызывается после каждого коммита, вне блокировки
type CartListener func(CartSnapshot)

// CartStore владеет корзиной. Все изменения идут через его методы,
// каждый метод атомарен относительно остальных.
type CartStore struct {
	logger  *zap.Logger
	metrics Metrics

	mu        sync.Mutex
	items     []CartLineItem
	hydrated  bool
	version   uint64
	listeners []CartListener
}

// NewCartStore создаёт пустую негидратированную корзину
func NewCartStore(logger *zap.Logger, metrics Metrics) *CartStore {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &CartStore{
		logger:  logger.With(zap.String("component", "cart_store")),
		metrics: metrics,
	}
}

// Subscribe регистрирует listener после коммита
func (s *CartStore) Subscribe(l CartListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// AddItem добавляет товар или увеличивает количество на 1, пока оно меньше stock
func (s *CartStore) AddItem(p catalog.Product) CartSnapshot {
	return s.commit(CartOpAdd, func(items []CartLineItem) []CartLineItem {
		return addItem(items, p)
	})
}

// RemoveItem удаляет позицию; отсутствие позиции не ошибка
func (s *CartStore) RemoveItem(id int) CartSnapshot {
	return s.commit(CartOpRemove, func(items []CartLineItem) []CartLineItem {
		return removeItem(items, id)
	})
}

// UpdateQuantity выставляет количество.
// quantity <= 0 удаляет позицию, quantity > stock молча отклоняется.
func (s *CartStore) UpdateQuantity(id, quantity int) CartSnapshot {
	return s.commit(CartOpUpdate, func(items []CartLineItem) []CartLineItem {
		return updateQuantity(items, id, quantity)
	})
}

// Clear очищает корзину
func (s *CartStore) Clear() CartSnapshot {
	return s.commit(CartOpClear, func([]CartLineItem) []CartLineItem {
		return nil
	})
}

// Hydrate заменяет содержимое загруженным из хранилища и ставит hydrated.
// Listeners не вызываются: в хранилище уже лежит это же состояние.
func (s *CartStore) Hydrate(items []CartLineItem) CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = cloneItems(items)
	s.hydrated = true
	s.version++
	s.metrics.CartMutation(CartOpHydrate)
	return s.snapshotLocked(CartOpHydrate)
}

// Snapshot возвращает копию текущего состояния
func (s *CartStore) Snapshot() CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked("")
}

// Hydrated сообщает, загружено ли состояние из хранилища
func (s *CartStore) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// IsInCart есть ли товар в корзине
func (s *CartStore) IsInCart(id int) bool {
	return s.GetQuantity(id) > 0
}

// GetQuantity количество товара в корзине, 0 если его нет
func (s *CartStore) GetQuantity(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i].Quantity
	}
	return 0
}

// Summary считает производные значения корзины
func (s *CartStore) Summary() CartSummary {
	return Summarize(s.Snapshot())
}

func (s *CartStore) commit(op string, reduce func([]CartLineItem) []CartLineItem) CartSnapshot {
	s.mu.Lock()
	s.items = reduce(s.items)
	s.version++
	snap := s.snapshotLocked(op)
	listeners := append([]CartListener(nil), s.listeners...)
	s.mu.Unlock()

	s.metrics.CartMutation(op)
	s.logger.Debug("cart changed",
		zap.String("op", op),
		zap.Int("items", len(snap.Items)),
		zap.Uint64("version", snap.Version),
	)

	for _, l := range listeners {
		l(snap)
	}
	return snap
}

func (s *CartStore) snapshotLocked(op string) CartSnapshot {
	return CartSnapshot{
		Op:       op,
		Items:    cloneItems(s.items),
		Hydrated: s.hydrated,
		Version:  s.version,
	}
}

// Чистые функции переходов. Входной срез не мутируется.

func addItem(items []CartLineItem, p catalog.Product) []CartLineItem {
	i := indexOf(items, p.ID)
	if i < 0 {
		// товар без остатка положить нельзя: quantity 1 превысил бы потолок
		if p.Stock < 1 {
			return items
		}
		out := cloneItems(items)
		return append(out, CartLineItem{Product: p, Quantity: 1})
	}
	if items[i].Quantity >= items[i].Stock {
		return items
	}
	out := cloneItems(items)
	out[i].Quantity++
	return out
}

func removeItem(items []CartLineItem, id int) []CartLineItem {
	i := indexOf(items, id)
	if i < 0 {
		return items
	}
	out := make([]CartLineItem, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

func updateQuantity(items []CartLineItem, id, quantity int) []CartLineItem {
	if quantity <= 0 {
		return removeItem(items, id)
	}
	i := indexOf(items, id)
	if i < 0 || quantity > items[i].Stock {
		return items
	}
	out := cloneItems(items)
	out[i].Quantity = quantity
	return out
}

func indexOf(items []CartLineItem, id int) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneItems(items []CartLineItem) []CartLineItem {
	if items == nil {
		return nil
	}
	out := make([]CartLineItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Images != nil {
			out[i].Images = append([]string(nil), out[i].Images...)
		}
	}
	return out
}

// CartSummary производные значения корзины для UI.
// Subtotal это сумма до скидки: TotalPrice + TotalDiscount.
type CartSummary struct {
	Items         []CartLineItem  `json:"items"`
	ItemCount     int             `json:"itemCount"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	TotalDiscount decimal.Decimal `json:"totalDiscount"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Hydrated      bool            `json:"hydrated"`
	Version       uint64          `json:"version"`
}

// Summarize считает итоги по снапшоту; суммы округлены до центов
func Summarize(snap CartSnapshot) CartSummary {
	sum := CartSummary{
		Items:         snap.Items,
		TotalPrice:    decimal.Zero,
		TotalDiscount: decimal.Zero,
		Hydrated:      snap.Hydrated,
		Version:       snap.Version,
	}
	if sum.Items == nil {
		sum.Items = []CartLineItem{}
	}
	for _, it := range snap.Items {
		qty := decimal.NewFromInt(int64(it.Quantity))
		price := decimal.NewFromFloat(it.Price)

		sum.ItemCount += it.Quantity
		sum.TotalPrice = sum.TotalPrice.Add(price.Mul(qty))
		sum.TotalDiscount = sum.TotalDiscount.Add(lineDiscount(price, it.DiscountPercentage).Mul(qty))
	}
	sum.TotalPrice = sum.TotalPrice.Round(2)
	sum.TotalDiscount = sum.TotalDiscount.Round(2)
	sum.Subtotal = sum.TotalPrice.Add(sum.TotalDiscount)
	return sum
}

// lineDiscount скидка на единицу: price/(1-d/100) - price, d в [0, 99.999]
func lineDiscount(price decimal.Decimal, percent float64) decimal.Decimal {
	d := decimal.NewFromFloat(percent)
	if d.Sign() <= 0 {
		return decimal.Zero
	}
	if d.GreaterThan(maxDiscountPercent) {
		d = maxDiscountPercent
	}
	divisor := decimal.NewFromInt(1).Sub(d.Div(decimal.NewFromInt(100)))
	return price.Div(divisor).Sub(price)
}
