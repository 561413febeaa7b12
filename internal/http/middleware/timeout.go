package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	apierrors "github.com/pribylovaa/go-session-client/internal/errors"
)

// Timeout ограничивает время обработки запроса шлюзом, включая обновление
// токена и повтор запроса к бэкенду.
//
// Поведение:
//   - d <= 0 — исходный handler без обёртки;
//   - если у запроса уже есть deadline, он не переопределяется;
//   - если deadline истёк, а обработчик ничего не успел записать, клиент
//     получает 504 в едином формате ошибок (с login_url, если сессия
//     успела завершиться).
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			r = r.WithContext(ctx)
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			if sw.status == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				apierrors.WriteError(sw, r, ctx.Err())
			}
		})
	}
}
