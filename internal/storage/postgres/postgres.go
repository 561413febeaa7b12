package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pribylovaa/go-session-client/internal/storage"
)

// Storage — key/value-хранилище сессии в таблице session_kv
// (см. migrations/1_init_session_kv.up.sql).
type Storage struct {
	db        *pgxpool.Pool
	namespace string
}

// New создает новое подключение к PostgreSQL.
func New(ctx context.Context, dbURL, namespace string) (*Storage, error) {
	const op = "storage.postgres.New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db, namespace: namespace}, nil
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	const op = "storage.postgres.Get"

	query := `
        SELECT value
        FROM session_kv
        WHERE namespace = $1 AND key = $2
    `

	var v string
	if err := s.db.QueryRow(ctx, query, s.namespace, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return v, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	const op = "storage.postgres.Set"

	query := `
        INSERT INTO session_kv(namespace, key, value, updated_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (namespace, key) DO UPDATE
        SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
    `

	if _, err := s.db.Exec(ctx, query, s.namespace, key, value); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Delete(ctx context.Context, keys ...string) error {
	const op = "storage.postgres.Delete"

	if len(keys) == 0 {
		return nil
	}

	query := `
        DELETE FROM session_kv
        WHERE namespace = $1 AND key = ANY($2)
    `

	if _, err := s.db.Exec(ctx, query, s.namespace, keys); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	s.db.Close()
	return nil
}

// Проверка на соответствие интерфейсу Store.
var _ storage.Store = (*Storage)(nil)
