package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/go-session-client/internal/navigation"
	logctx "github.com/pribylovaa/go-session-client/pkg/log"
)

// Logging кладёт в контекст request-scoped логгер (с request_id, если он
// есть) и после ответа пишет запись gateway_request.
//
// Если Location стоит раньше в цепочке, запись получает текущее
// местоположение и, когда сессия завершилась, адрес перехода на вход.
// Уровень записи зависит от статуса: 5xx — Error, 401 — Warn, прочее — Info.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLogger := l
			if rid := r.Header.Get("X-Request-Id"); rid != "" {
				reqLogger = reqLogger.With(slog.String("request_id", rid))
			}
			ctx := logctx.Into(r.Context(), reqLogger)
			r = r.WithContext(ctx)

			// Переход на вход меняет местоположение, поэтому запоминаем исходное.
			loc := navigation.LocationFrom(ctx)

			sw := newStatusWriter(w)
			start := time.Now()

			next.ServeHTTP(sw, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("dur", time.Since(start)),
				slog.Int("bytes", sw.count),
			}
			if loc != "" {
				attrs = append(attrs, slog.String("location", loc))
			}
			if to, ok := navigation.RedirectFrom(ctx); ok {
				attrs = append(attrs, slog.String("login_redirect", to))
			}

			logctx.From(ctx).LogAttrs(ctx, levelFor(sw.status), "gateway_request", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusUnauthorized:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
