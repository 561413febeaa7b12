package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/pribylovaa/go-session-client/internal/errors"
	"github.com/pribylovaa/go-session-client/internal/navigation"
	logctx "github.com/pribylovaa/go-session-client/pkg/log"
)

// Recover перехватывает panic обработчика и отвечает 500/internal в едином
// формате ошибок. Детали паники остаются в логе и не уходят клиенту.
//
// http.ErrAbortHandler пробрасывается дальше: им обработчик прокси сам
// обрывает ответ. Если ответ уже начат, второй статус не пишется.
func Recover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				ctx := r.Context()
				logctx.From(ctx).LogAttrs(ctx, slog.LevelError, "handler_panic",
					slog.String("path", r.URL.Path),
					slog.String("location", navigation.LocationFrom(ctx)),
					slog.Bool("response_started", sw.status != 0),
					slog.Any("reason", rec),
				)

				if sw.status != 0 {
					return
				}
				apierrors.WriteError(sw, r, fmt.Errorf("panic in %s", r.URL.Path))
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
