package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pribylovaa/go-session-client/internal/storage"
)

// Storage — хранилище в памяти процесса. Не переживает перезапуск;
// используется в тестах и для одноразовых сессий.
type Storage struct {
	mu     sync.RWMutex
	data   map[string]string
	closed bool
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{data: make(map[string]string)}
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.memory.Get"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("%s: %w", op, storage.ErrClosed)
	}

	v, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return v, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.memory.Set"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%s: %w", op, storage.ErrClosed)
	}

	s.data[key] = value
	return nil
}

func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.memory.Delete"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%s: %w", op, storage.ErrClosed)
	}

	for _, k := range keys {
		delete(s.data, k)
	}

	return nil
}

// Close помечает хранилище закрытым; последующие вызовы вернут storage.ErrClosed.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = nil
	return nil
}

// Проверка на соответствие интерфейсу Store.
var _ storage.Store = (*Storage)(nil)
