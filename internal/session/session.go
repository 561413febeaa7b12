// session — клиент пользовательской сессии.
//
// Session хранит пару токенов (access + refresh) и профиль пользователя в
// storage.Store, подписывает исходящие запросы access-токеном и при ответе 401
// один раз обновляет токен и повторяет запрос. Если обновить токен не удалось,
// сессия завершается, а окружение получает сигнал «вышли» через navigation.
//
// Основные аспекты:
//   - Session не кэширует токены: единственная копия живёт в Store, поэтому
//     несколько процессов с общим Store видят одну и ту же сессию.
//   - Экземпляр безопасен для конкурентного использования, если безопасен Store.
//   - Конкурентные обновления токена схлопываются в один сетевой вызов.
//   - Подпись токена локально не проверяется: exp читается только как
//     подсказка, авторизацию выполняет сервер.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pribylovaa/go-session-client/internal/claims"
	"github.com/pribylovaa/go-session-client/internal/metrics"
	"github.com/pribylovaa/go-session-client/internal/models"
	"github.com/pribylovaa/go-session-client/internal/navigation"
	"github.com/pribylovaa/go-session-client/internal/storage"
	"github.com/pribylovaa/go-session-client/pkg/log"
	"github.com/pribylovaa/go-session-client/pkg/redact"
)

// Ключи хранилища.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyProfile      = "user_profile"
)

const (
	DefaultRefreshPath   = "/api/v1/auth/refresh"
	DefaultLoginLocation = "/login"

	// maxAuthRetries — сколько раз запрос повторяется после 401.
	maxAuthRetries = 1
)

// Doer отправляет HTTP-запрос. *http.Client ему удовлетворяет.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options — параметры Session.
type Options struct {
	// BaseURL — адрес бэкенда, например https://api.example.com. Обязателен.
	BaseURL string
	// RefreshPath — путь эндпоинта обновления (по умолчанию DefaultRefreshPath).
	RefreshPath string
	// LoginLocation — куда отправлять пользователя после завершения сессии.
	LoginLocation string
	// PublicLocations — местоположения, на которых переход на вход не нужен.
	// LoginLocation входит в список всегда.
	PublicLocations []string

	Client    Doer                 // по умолчанию http.DefaultClient
	Navigator navigation.Navigator // по умолчанию navigation.Router без hook
	Metrics   *metrics.Metrics     // может быть nil
	Now       func() time.Time     // по умолчанию time.Now
}

// Session — клиент одной пользовательской сессии.
type Session struct {
	store      storage.Store
	base       *url.URL
	refreshURL string

	loginLocation string
	public        map[string]struct{}

	client  Doer
	nav     navigation.Navigator
	metrics *metrics.Metrics
	now     func() time.Time

	refreshGroup singleflight.Group
}

// New создаёт Session поверх store.
func New(store storage.Store, opts Options) (*Session, error) {
	const op = "session.New"

	if store == nil {
		return nil, fmt.Errorf("%s: %w: store is nil", op, ErrInvalidOptions)
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidOptions, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s: %w: base url must be absolute", op, ErrInvalidOptions)
	}

	if opts.RefreshPath == "" {
		opts.RefreshPath = DefaultRefreshPath
	}
	if opts.LoginLocation == "" {
		opts.LoginLocation = DefaultLoginLocation
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Navigator == nil {
		opts.Navigator = navigation.NewRouter("", nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	refreshURL, err := resolve(base, opts.RefreshPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidOptions, err)
	}

	public := make(map[string]struct{}, len(opts.PublicLocations)+1)
	public[opts.LoginLocation] = struct{}{}
	for _, loc := range opts.PublicLocations {
		public[loc] = struct{}{}
	}

	return &Session{
		store:         store,
		base:          base,
		refreshURL:    refreshURL,
		loginLocation: opts.LoginLocation,
		public:        public,
		client:        opts.Client,
		nav:           opts.Navigator,
		metrics:       opts.Metrics,
		now:           opts.Now,
	}, nil
}

// Establish сохраняет новую пару токенов и профиль, перезаписывая прежнюю сессию.
// Токены не проверяются. nil-профиль удаляет сохранённый профиль.
func (s *Session) Establish(ctx context.Context, accessToken, refreshToken string, profile models.Profile) error {
	const op = "session.Establish"

	if err := s.store.Set(ctx, KeyAccessToken, accessToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.Set(ctx, KeyRefreshToken, refreshToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if profile == nil {
		if err := s.store.Delete(ctx, KeyProfile); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	} else {
		raw, err := models.MarshalProfile(profile)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if err := s.store.Set(ctx, KeyProfile, raw); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	log.From(ctx).Info("session_established",
		slog.String("op", op),
		slog.String("refresh_token", redact.Token(refreshToken)),
		slog.Bool("profile", profile != nil),
	)
	return nil
}

// Terminate удаляет пару токенов и профиль. Если текущее местоположение не
// входит в список публичных, запрашивает переход на LoginLocation.
// Переход запрашивается даже при ошибке хранилища.
func (s *Session) Terminate(ctx context.Context) error {
	const op = "session.Terminate"

	err := s.clear(ctx)
	s.redirectIfNeeded(ctx)

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// clear удаляет сохранённую сессию без перехода.
func (s *Session) clear(ctx context.Context) error {
	err := s.store.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyProfile)
	if err != nil {
		log.From(ctx).Warn("session_clear_failed", slog.String("err", err.Error()))
	}

	s.metrics.ObserveTermination()
	return err
}

// redirectIfNeeded запрашивает переход на LoginLocation для местоположения из ctx,
// если оно не публичное.
func (s *Session) redirectIfNeeded(ctx context.Context) {
	lg := log.From(ctx)

	loc := s.nav.Location(ctx)
	if _, ok := s.public[loc]; ok {
		lg.Info("session_terminated", slog.String("location", loc))
		return
	}

	s.nav.Redirect(ctx, s.loginLocation)
	lg.Info("session_terminated", slog.String("location", loc), slog.String("redirect", s.loginLocation))
}

// IsAuthenticated сообщает, есть ли непросроченный access-токен.
// Битый токен или ошибка хранилища дают false.
func (s *Session) IsAuthenticated(ctx context.Context) bool {
	tok := s.accessToken(ctx)
	if tok == "" {
		return false
	}

	expired, err := claims.Expired(tok, s.now())
	if err != nil {
		log.From(ctx).Debug("access_token_malformed", slog.String("err", err.Error()))
		return false
	}

	return !expired
}

// AccessToken возвращает сохранённый access-токен или storage.ErrNotFound.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	const op = "session.AccessToken"

	tok, err := s.store.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return tok, nil
}

// Credentials возвращает сохранённую пару токенов. Без access-токена — storage.ErrNotFound,
// отсутствующий refresh-токен даёт пустую строку.
func (s *Session) Credentials(ctx context.Context) (models.Credentials, error) {
	const op = "session.Credentials"

	access, err := s.store.Get(ctx, KeyAccessToken)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.store.Get(ctx, KeyRefreshToken)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.Credentials{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// Profile возвращает сохранённый профиль; (nil, nil), если его нет.
func (s *Session) Profile(ctx context.Context) (models.Profile, error) {
	const op = "session.Profile"

	raw, err := s.store.Get(ctx, KeyProfile)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p, err := models.UnmarshalProfile(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// ExpiresAt возвращает exp сохранённого access-токена.
// ok == false — токена нет либо в нём нет claim exp.
func (s *Session) ExpiresAt(ctx context.Context) (exp time.Time, ok bool, err error) {
	const op = "session.ExpiresAt"

	tok := s.accessToken(ctx)
	if tok == "" {
		return time.Time{}, false, nil
	}

	exp, ok, err = claims.ExpiresAt(tok)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", op, err)
	}

	return exp, ok, nil
}

// Status собирает состояние сессии для отображения.
func (s *Session) Status(ctx context.Context) models.SessionStatus {
	st := models.SessionStatus{Authenticated: s.IsAuthenticated(ctx)}

	if exp, ok, err := s.ExpiresAt(ctx); err == nil && ok {
		st.ExpiresAt = exp.UTC().Unix()
	}

	if p, err := s.Profile(ctx); err == nil {
		st.Profile = p
	}

	return st
}

// accessToken читает access-токен; отсутствие и ошибки дают "".
func (s *Session) accessToken(ctx context.Context) string {
	tok, err := s.store.Get(ctx, KeyAccessToken)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.From(ctx).Warn("access_token_read_failed", slog.String("err", err.Error()))
		}
		return ""
	}

	return tok
}

// URL резолвит ref (путь с query) относительно BaseURL.
func (s *Session) URL(ref string) (string, error) {
	return resolve(s.base, ref)
}

func resolve(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", err
	}

	return base.ResolveReference(u).String(), nil
}
