// errors стандартизирует ответы об ошибках HTTP-слоя локального шлюза.
// На вход он принимает ошибку сессии, сервиса учётной записи или транспорта,
// а на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей;
//   - login_url, если сессия завершилась и окружение запросило переход на вход.
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/pribylovaa/go-session-client/internal/navigation"
	"github.com/pribylovaa/go-session-client/internal/service"
	"github.com/pribylovaa/go-session-client/internal/session"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// ErrInvalidArgument — локальная ошибка разбора входа хендлером.
var ErrInvalidArgument = errors.New("invalid argument")

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
// LoginURL — куда отправить пользователя, если сессия завершена.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	LoginURL  string `json:"login_url,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку в HTTP-статус и унифицированный ответ.
//
// Поведение:
//   - err == nil — программная ошибка вызова: 500/internal;
//   - сессия не восстановилась, повторный 401, неверные учётные данные — 401;
//   - учётная запись отключена — 403;
//   - регистрация отклонена, невалидный вход — 400;
//   - отмена клиентом — 499, дедлайн — 504;
//   - сетевая ошибка или битый ответ апстрима — 502;
//   - неожиданный статус апстрима — тот же статус;
//   - прочее — 500/internal.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)
	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

func classify(err error) (int, string, string) {
	var upstream *service.UpstreamError
	var urlErr *url.Error

	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.Is(err, session.ErrNoRefreshToken):
		return http.StatusUnauthorized, "not_authenticated", "not authenticated"
	case errors.Is(err, session.ErrRefreshFailed):
		return http.StatusUnauthorized, "session_expired", "session expired"
	case errors.Is(err, session.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid credentials"
	case errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden, "account_inactive", "account is inactive"
	case errors.Is(err, service.ErrRegistrationRejected):
		return http.StatusBadRequest, "registration_rejected", "registration rejected"
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case errors.Is(err, service.ErrMalformedResponse):
		return http.StatusBadGateway, "bad_gateway", "bad upstream response"
	case errors.As(err, &upstream):
		return upstream.Status, "upstream_error", http.StatusText(upstream.Status)
	case errors.As(err, &urlErr):
		return http.StatusBadGateway, "bad_gateway", "upstream unavailable"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка и
// login_url, если в контексте запроса зафиксирован переход на вход.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	if to, ok := navigation.RedirectFrom(r.Context()); ok {
		resp.Error.LoginURL = to
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
