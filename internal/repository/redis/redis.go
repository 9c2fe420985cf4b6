package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shestoi/GoBigTech/storefront/internal/repository"
)

// Store реализует KVStore используя обычные redis строки.
// Все ключи получают общий префикс, чтобы несколько инстансов делили один redis.
type Store struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewStore создаёт новый Redis KV store
func NewStore(client *redis.Client, prefix string, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

// Get возвращает значение по ключу
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		s.logger.Error("failed to get key from redis",
			zap.Error(err),
			zap.String("key", key),
		)
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, nil
}

// Set сохраняет значение без TTL
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		s.logger.Error("failed to set key in redis",
			zap.Error(err),
			zap.String("key", key),
		)
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// RemoveMany удаляет ключи одной командой DEL
func (s *Store) RemoveMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		s.logger.Error("failed to delete keys from redis",
			zap.Error(err),
			zap.Strings("keys", keys),
		)
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}
