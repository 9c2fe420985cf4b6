package memory

import (
	"context"
	"sync"

	"github.com/shestoi/GoBigTech/storefront/internal/repository"
)

// Store реализует KVStore в памяти процесса.
// Используется для разработки и тестов, состояние не переживает рестарт.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewStore создаёт пустое in-memory хранилище
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// Get возвращает значение по ключу
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

// Set сохраняет значение
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// RemoveMany удаляет ключи
func (s *Store) RemoveMany(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}
