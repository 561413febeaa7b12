// sqlite — файловое key/value-хранилище сессии на modernc.org/sqlite (без cgo).
// Используется CLI по умолчанию: сессия переживает перезапуск процесса.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pribylovaa/go-session-client/internal/storage"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_kv (
    namespace  TEXT NOT NULL,
    key        TEXT NOT NULL,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
    PRIMARY KEY (namespace, key)
)`

type Storage struct {
	db        *sql.DB
	namespace string
}

// New открывает (и при необходимости создаёт) файл БД по path.
func New(ctx context.Context, path, namespace string) (*Storage, error) {
	const op = "storage.sqlite.New"

	if path == "" {
		return nil, fmt.Errorf("%s: empty path", op)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// SQLite сериализует запись; одно соединение избавляет от SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db, namespace: namespace}, nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.sqlite.Get"

	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_kv WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&v)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.sqlite.Set"

	query := `
        INSERT INTO session_kv(namespace, key, value, updated_at)
        VALUES (?, ?, ?, strftime('%s', 'now'))
        ON CONFLICT(namespace, key) DO UPDATE
        SET value = excluded.value, updated_at = excluded.updated_at
    `

	if _, err := s.db.ExecContext(ctx, query, s.namespace, key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.sqlite.Delete"

	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM session_kv WHERE namespace = ? AND key = ?`,
			s.namespace, k,
		); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает соединение с БД.
func (s *Storage) Close() error {
	return s.db.Close()
}

// Проверка на соответствие интерфейсу Store.
var _ storage.Store = (*Storage)(nil)
