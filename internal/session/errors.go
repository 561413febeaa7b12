package session

import (
	"errors"
	"fmt"
)

var (
	// ErrRefreshFailed — не удалось получить новый access-токен.
	// Сессия к этому моменту уже завершена. Шлюз: HTTP 401.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNoRefreshToken — refresh-токена нет, обновлять нечем.
	// Частный случай ErrRefreshFailed: errors.Is(ErrNoRefreshToken, ErrRefreshFailed) == true.
	ErrNoRefreshToken = fmt.Errorf("%w: no refresh token", ErrRefreshFailed)

	// ErrUnauthorized — сервер повторно ответил 401 после обновления токена.
	// Сессия завершена, ответ возвращается вызывающему без изменений.
	ErrUnauthorized = errors.New("unauthorized after token refresh")

	// ErrInvalidOptions — некорректные параметры конструктора.
	ErrInvalidOptions = errors.New("invalid session options")
)

// StatusError — эндпоинт обновления ответил не-2xx статусом.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("refresh endpoint returned status %d", e.Code)
}
