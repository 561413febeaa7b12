package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-session-client/internal/http/handlers"
	"github.com/pribylovaa/go-session-client/internal/http/middleware"
	"github.com/pribylovaa/go-session-client/internal/service"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/gw"; если пустой — роуты регистрируются на корне.
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Location(),           // текущее местоположение для навигации сессии (до логирования)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// session
	r.Get("/session", h.Status)
	r.Post("/session/login", h.Login)
	r.Post("/session/register", h.Register)
	r.Post("/session/logout", h.Logout)
	r.Post("/session/refresh", h.Refresh)
	r.Get("/session/me", h.Me)

	// всё остальное — на бэкенд от имени сессии
	r.HandleFunc("/*", h.Proxy)
}
