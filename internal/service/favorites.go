package service

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/storefront/internal/catalog"
)

// Операции избранного
const (
	FavoritesOpToggle  = "toggle"
	FavoritesOpClear   = "clear"
	FavoritesOpHydrate = "hydrate"
	FavoritesOpAttach  = "attach"
)

// FavoritesSnapshot копия избранного после коммита.
// IDs упорядочены от последнего добавленного к первому.
type FavoritesSnapshot struct {
	Op       string
	IDs      []int
	ByID     map[int]catalog.Product
	Hydrated bool
	Version  uint64
}

// FavoritesListener вызывается после каждого коммита, вне блокировки
type FavoritesListener func(FavoritesSnapshot)

// FavoritesStore владеет набором избранных id и кэшем их снапшотов
type FavoritesStore struct {
	logger  *zap.Logger
	metrics Metrics

	mu        sync.Mutex
	ids       []int
	index     map[int]struct{}
	byID      map[int]catalog.Product
	hydrated  bool
	version   uint64
	listeners []FavoritesListener
}

// NewFavoritesStore создаёт пустое негидратированное избранное
func NewFavoritesStore(logger *zap.Logger, metrics Metrics) *FavoritesStore {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &FavoritesStore{
		logger:  logger.With(zap.String("component", "favorites_store")),
		metrics: metrics,
		index:   make(map[int]struct{}),
		byID:    make(map[int]catalog.Product),
	}
}

// Subscribe регистрирует listener после коммита
func (s *FavoritesStore) Subscribe(l FavoritesListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Toggle убирает id из избранного или добавляет его в начало.
// snapshot кэшируется только при добавлении. Возвращает новое членство.
func (s *FavoritesStore) Toggle(id int, snapshot *catalog.Product) bool {
	s.mu.Lock()
	_, present := s.index[id]
	if present {
		delete(s.index, id)
		delete(s.byID, id)
		s.ids = removeID(s.ids, id)
	} else {
		s.index[id] = struct{}{}
		s.ids = append([]int{id}, s.ids...)
		if snapshot != nil {
			s.byID[id] = *snapshot
		}
	}
	snap, listeners := s.commitLocked(FavoritesOpToggle)
	s.mu.Unlock()

	added := !present
	s.metrics.FavoriteToggled(added)
	s.logger.Debug("favorite toggled",
		zap.Int("product_id", id),
		zap.Bool("added", added),
		zap.Uint64("version", snap.Version),
	)
	notifyFavorites(listeners, snap)
	return added
}

// AttachSnapshot кэширует снапшот товара, если id в избранном и снапшота ещё нет
func (s *FavoritesStore) AttachSnapshot(id int, p catalog.Product) bool {
	s.mu.Lock()
	_, present := s.index[id]
	_, cached := s.byID[id]
	if !present || cached {
		s.mu.Unlock()
		return false
	}
	s.byID[id] = p
	snap, listeners := s.commitLocked(FavoritesOpAttach)
	s.mu.Unlock()

	notifyFavorites(listeners, snap)
	return true
}

// IsFavorite проверка членства за O(1)
func (s *FavoritesStore) IsFavorite(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok
}

// Clear очищает id и кэш снапшотов
func (s *FavoritesStore) Clear() {
	s.mu.Lock()
	s.ids = nil
	s.index = make(map[int]struct{})
	s.byID = make(map[int]catalog.Product)
	snap, listeners := s.commitLocked(FavoritesOpClear)
	s.mu.Unlock()

	notifyFavorites(listeners, snap)
}

// Hydrate загружает состояние из хранилища и ставит hydrated.
// Повторяющиеся id отбрасываются, снапшоты без id в списке игнорируются.
func (s *FavoritesStore) Hydrate(ids []int, byID map[int]catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = make([]int, 0, len(ids))
	s.index = make(map[int]struct{}, len(ids))
	s.byID = make(map[int]catalog.Product, len(byID))
	for _, id := range ids {
		if _, dup := s.index[id]; dup {
			continue
		}
		s.index[id] = struct{}{}
		s.ids = append(s.ids, id)
		if p, ok := byID[id]; ok {
			s.byID[id] = p
		}
	}
	s.hydrated = true
	s.version++
}

// Snapshot возвращает копию текущего состояния
func (s *FavoritesStore) Snapshot() FavoritesSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked("")
}

// Hydrated сообщает, загружено ли состояние из хранилища
func (s *FavoritesStore) Hydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

func (s *FavoritesStore) commitLocked(op string) (FavoritesSnapshot, []FavoritesListener) {
	s.version++
	return s.snapshotLocked(op), append([]FavoritesListener(nil), s.listeners...)
}

func (s *FavoritesStore) snapshotLocked(op string) FavoritesSnapshot {
	byID := make(map[int]catalog.Product, len(s.byID))
	for k, v := range s.byID {
		byID[k] = v
	}
	return FavoritesSnapshot{
		Op:       op,
		IDs:      append([]int{}, s.ids...),
		ByID:     byID,
		Hydrated: s.hydrated,
		Version:  s.version,
	}
}

func notifyFavorites(listeners []FavoritesListener, snap FavoritesSnapshot) {
	for _, l := range listeners {
		l(snap)
	}
}

func removeID(ids []int, id int) []int {
	out := make([]int, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
