// service содержит операции учётной записи поверх REST API бэкенда:
// вход, регистрацию, чтение профиля и выход.
//
// Основные аспекты:
//   - Вход и регистрация идут напрямую через HTTP-клиент без токена: 401 на
//     этих эндпоинтах означает неверные учётные данные, а не протухший токен.
//   - Успешный вход/регистрация устанавливают сессию (session.Establish),
//     профиль пользователя из ответа кэшируется вместе с токенами.
//   - Ошибки возвращаются sentinel-значениями и далее маппятся шлюзом
//     на HTTP-статусы (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/pribylovaa/go-session-client/internal/session"
)

var (
	// ErrInvalidCredentials — пара e-mail/пароль неверна. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountInactive — учётная запись отключена. HTTP 403.
	ErrAccountInactive = errors.New("account is inactive")

	// ErrRegistrationRejected — бэкенд отклонил регистрацию
	// (e-mail занят или данные не прошли валидацию). HTTP 400.
	ErrRegistrationRejected = errors.New("registration rejected")

	// ErrInvalidEmail — e-mail имеет некорректный формат. HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политике сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrMalformedResponse — ответ бэкенда не разобрался или в нём нет токенов. HTTP 502.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// UpstreamError — бэкенд ответил неожиданным статусом.
type UpstreamError struct {
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("upstream returned status %d", e.Status)
	}

	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Detail)
}

// Paths — пути эндпоинтов бэкенда.
type Paths struct {
	Login    string
	Register string
	Me       string
}

// DefaultPaths — пути API v1 бэкенда.
var DefaultPaths = Paths{
	Login:    "/api/v1/auth/login",
	Register: "/api/v1/auth/register",
	Me:       "/api/v1/auth/me",
}

// Service описывает операции учётной записи.
type Service struct {
	sess   *session.Session
	client session.Doer
	base   *url.URL
	paths  Paths
}

// New создаёт новый экземпляр Service. Пустые пути берутся из DefaultPaths.
func New(sess *session.Session, client session.Doer, baseURL string, paths Paths) (*Service, error) {
	const op = "service.New"

	if sess == nil || client == nil {
		return nil, fmt.Errorf("%s: session and client are required", op)
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if paths.Login == "" {
		paths.Login = DefaultPaths.Login
	}
	if paths.Register == "" {
		paths.Register = DefaultPaths.Register
	}
	if paths.Me == "" {
		paths.Me = DefaultPaths.Me
	}

	return &Service{sess: sess, client: client, base: base, paths: paths}, nil
}

// Session возвращает сессию, с которой работает сервис.
func (s *Service) Session() *session.Session { return s.sess }
