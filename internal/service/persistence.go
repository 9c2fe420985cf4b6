package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond"
	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/storefront/internal/repository"
)

const persistWriteTimeout = 5 * time.Second

// ErrPersisterClosed Persister уже остановлен
var ErrPersisterClosed = errors.New("persister closed")

type persistEntry struct {
	version uint64
	payload string
}

// Persister асинхронно зеркалит снапшоты в KV хранилище.
// Один воркер pond пишет по порядку. На каждый ключ в очереди максимум одна задача,
// и она пишет самый свежий payload; версии старше уже принятой отбрасываются.
type Persister struct {
	store   repository.KVStore
	pool    *pond.WorkerPool
	logger  *zap.Logger
	metrics Metrics

	// submitMu держит пул открытым на время Submit; Close берёт его на запись
	submitMu sync.RWMutex
	closed   bool

	mu     sync.Mutex
	latest map[string]persistEntry
	queued map[string]bool
}

// NewPersister создаёт Persister с очередью queueSize
func NewPersister(store repository.KVStore, queueSize int, logger *zap.Logger, metrics Metrics) *Persister {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	logger = logger.With(zap.String("component", "persister"))

	pool := pond.New(1, queueSize,
		pond.MinWorkers(1),
		pond.IdleTimeout(time.Minute),
		pond.Strategy(pond.Balanced()),
		pond.PanicHandler(func(p interface{}) {
			logger.Error("persist task panic recovered", zap.Any("panic", p))
		}),
	)

	return &Persister{
		store:   store,
		pool:    pool,
		logger:  logger,
		metrics: metrics,
		latest:  make(map[string]persistEntry),
		queued:  make(map[string]bool),
	}
}

// BindCart подписывает Persister на коммиты корзины
func (p *Persister) BindCart(cart *CartStore) {
	cart.Subscribe(func(s CartSnapshot) {
		payload, err := EncodeCart(s.Items)
		if err != nil {
			p.logger.Error("failed to encode cart", zap.Error(err))
			return
		}
		p.Save(repository.KeyCart, s.Version, payload)
	})
}

// BindFavorites подписывает Persister на коммиты избранного
func (p *Persister) BindFavorites(favorites *FavoritesStore) {
	favorites.Subscribe(func(s FavoritesSnapshot) {
		payload, err := EncodeFavorites(s.IDs, s.ByID)
		if err != nil {
			p.logger.Error("failed to encode favorites", zap.Error(err))
			return
		}
		p.Save(repository.KeyFavorites, s.Version, payload)
	})
}

// Save ставит запись в очередь. Не блокирует и не возвращает ошибок:
// сбой записи только логируется и считается в метриках.
func (p *Persister) Save(key string, version uint64, payload string) {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if p.closed {
		p.logger.Warn("persist after close dropped", zap.String("key", key), zap.Uint64("version", version))
		return
	}

	p.mu.Lock()
	if cur, ok := p.latest[key]; ok && version < cur.version {
		p.mu.Unlock()
		return
	}
	p.latest[key] = persistEntry{version: version, payload: payload}
	if p.queued[key] {
		p.mu.Unlock()
		return
	}
	p.queued[key] = true
	p.mu.Unlock()

	if !p.pool.TrySubmit(func() { p.write(key) }) {
		// очередь занята задачами других ключей; ждём место вне блокировки
		p.pool.Submit(func() { p.write(key) })
	}
}

// Remove удаляет ключи после всех уже поставленных в очередь записей
func (p *Persister) Remove(ctx context.Context, keys ...string) error {
	p.submitMu.RLock()
	if p.closed {
		p.submitMu.RUnlock()
		return ErrPersisterClosed
	}
	done := make(chan error, 1)
	p.pool.Submit(func() {
		wctx, cancel := context.WithTimeout(context.Background(), persistWriteTimeout)
		defer cancel()
		done <- p.store.RemoveMany(wctx, keys...)
	})
	p.submitMu.RUnlock()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("remove keys: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close дожидается записи всего, что уже в очереди
func (p *Persister) Close() {
	p.submitMu.Lock()
	if p.closed {
		p.submitMu.Unlock()
		return
	}
	p.closed = true
	p.submitMu.Unlock()

	p.pool.StopAndWait()
}

func (p *Persister) write(key string) {
	p.mu.Lock()
	entry := p.latest[key]
	p.queued[key] = false
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistWriteTimeout)
	defer cancel()

	err := p.store.Set(ctx, key, entry.payload)
	p.metrics.PersistWrite(key, err)
	if err != nil {
		p.logger.Error("failed to persist state",
			zap.String("key", key),
			zap.Uint64("version", entry.version),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("state persisted",
		zap.String("key", key),
		zap.Uint64("version", entry.version),
	)
}
