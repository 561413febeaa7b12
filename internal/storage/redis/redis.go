// redis — разделяемое key/value-хранилище сессии поверх Redis.
// Позволяет нескольким процессам (CLI, шлюз) работать с одной сессией.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/go-session-client/internal/storage"
	"github.com/redis/go-redis/v9"
)

type Storage struct {
	rdb    *redis.Client
	prefix string
}

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Ключи хранятся как "<namespace>:<key>"; пустой namespace даёт префикс "session:".
func New(ctx context.Context, redisURL, namespace string) (*Storage, error) {
	const op = "storage.redis.New"

	if namespace == "" {
		namespace = "session"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{rdb: rdb, prefix: namespace + ":"}, nil
}

func (s *Storage) key(k string) string { return s.prefix + k }

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.redis.Get"

	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

// Set пишет значение без TTL: сессия живёт до явного завершения.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.redis.Set"

	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.redis.Delete"

	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}

	if err := s.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Close() error { return s.rdb.Close() }

// Проверка на соответствие интерфейсу Store.
var _ storage.Store = (*Storage)(nil)
