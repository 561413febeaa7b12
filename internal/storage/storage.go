// storage задаёт контракт долговременного key/value-хранилища сессии.
//
// Хранилище переживает перезапуск процесса и очищается только явным
// удалением ключей. Каждая реализация изолирует данные пространством имён
// (namespace) — аналог привязки к origin у браузерного localStorage.
package storage

import (
	"context"
	"errors"
)

//go:generate mockgen -source=storage.go -destination=../../mocks/mock_store.go -package=mocks

var (
	// ErrNotFound — ключ отсутствует в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrClosed — хранилище уже закрыто.
	ErrClosed = errors.New("store closed")
)

// Store — минимальный контракт key/value-хранилища.
// Реализации обязаны быть безопасными для конкурентного использования.
type Store interface {
	// Get возвращает значение ключа или ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set записывает значение, перезаписывая прежнее.
	Set(ctx context.Context, key, value string) error
	// Delete удаляет ключи; отсутствие ключа ошибкой не считается.
	Delete(ctx context.Context, keys ...string) error
	// Close освобождает ресурсы хранилища.
	Close() error
}
