package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/pribylovaa/go-session-client/internal/models"
	"github.com/pribylovaa/go-session-client/pkg/log"
	"github.com/pribylovaa/go-session-client/pkg/redact"
)

// maxResponseBody — ограничение на размер ответа бэкенда.
const maxResponseBody = 1 << 20

// Login выполняет вход по e-mail+пароль и устанавливает сессию.
func (s *Service) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	const op = "service.account.Login"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	lg := log.From(ctx).With(slog.String("op", op), slog.String("email", redact.Email(normEmail)))

	var out models.AuthResponse
	status, detail, err := s.postJSON(ctx, s.paths.Login, models.LoginRequest{Username: normEmail, Password: password}, &out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case status == http.StatusUnauthorized:
		lg.Info("login_rejected")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	case status == http.StatusForbidden:
		lg.Info("login_account_inactive")
		return nil, fmt.Errorf("%s: %w", op, ErrAccountInactive)
	case status < 200 || status > 299:
		return nil, fmt.Errorf("%s: %w", op, &UpstreamError{Status: status, Detail: detail})
	}

	if err := s.establish(ctx, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("login_succeeded")
	return &out, nil
}

// Register регистрирует нового пользователя и сразу устанавливает сессию.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	const op = "service.account.Register"

	normEmail, err := validateEmail(req.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := validatePassword(req.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Email = normEmail

	lg := log.From(ctx).With(slog.String("op", op), slog.String("email", redact.Email(normEmail)))
	lg.Debug("registration_attempt", slog.String("password", redact.Password()))

	var out models.AuthResponse
	status, detail, err := s.postJSON(ctx, s.paths.Register, req, &out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		lg.Info("registration_rejected", slog.Int("status", status), slog.String("detail", detail))
		if detail != "" {
			return nil, fmt.Errorf("%s: %w: %s", op, ErrRegistrationRejected, detail)
		}
		return nil, fmt.Errorf("%s: %w", op, ErrRegistrationRejected)
	case status < 200 || status > 299:
		return nil, fmt.Errorf("%s: %w", op, &UpstreamError{Status: status, Detail: detail})
	}

	if err := s.establish(ctx, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lg.Info("registration_succeeded")
	return &out, nil
}

// Me запрашивает профиль текущего пользователя через авторизованный запрос.
// Сохранённый профиль сессии не обновляется.
func (s *Service) Me(ctx context.Context) (models.Profile, error) {
	const op = "service.account.Me"

	resp, err := s.sess.Request(ctx, http.MethodGet, s.paths.Me, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: %w", op, &UpstreamError{Status: resp.StatusCode, Detail: readDetail(resp.Body)})
	}

	var p models.Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&p); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedResponse, err)
	}

	return p, nil
}

// Logout завершает локальную сессию.
func (s *Service) Logout(ctx context.Context) error {
	const op = "service.account.Logout"

	if err := s.sess.Terminate(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) establish(ctx context.Context, out *models.AuthResponse) error {
	if out.AccessToken == "" || out.RefreshToken == "" {
		return ErrMalformedResponse
	}

	var profile models.Profile
	if len(out.User) > 0 {
		profile = out.User
	}

	return s.sess.Establish(ctx, out.AccessToken, out.RefreshToken, profile)
}

// postJSON отправляет body без авторизации. Для 2xx декодирует ответ в out,
// для остальных статусов возвращает detail из тела ошибки.
func (s *Service) postJSON(ctx context.Context, path string, body, out any) (int, string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return 0, "", err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base.ResolveReference(ref).String(), bytes.NewReader(raw))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, readDetail(resp.Body), nil
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(out); err != nil {
		return resp.StatusCode, "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return resp.StatusCode, "", nil
}

// readDetail достаёт поле detail из тела ошибки бэкенда. Для ошибок
// валидации detail — массив; берётся msg первого элемента.
func readDetail(r io.Reader) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxResponseBody)).Decode(&body); err != nil || len(body.Detail) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(body.Detail, &s) == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(body.Detail, &items) == nil && len(items) > 0 {
		return items[0].Msg
	}

	return ""
}
