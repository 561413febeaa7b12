package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pribylovaa/go-session-client/pkg/log"
	"github.com/pribylovaa/go-session-client/pkg/redact"
)

// WithLogging — логирование исходящих запросов.
// Поведение:
//   - берёт X-Request-Id из запроса (его ставит WithMetadata);
//   - добавляет поля method/url, прокладывает обогащённый логгер в контекст (pkg/log);
//   - на уровне Debug пишет заголовки запроса с замаскированной авторизацией;
//   - пишет финальную запись уровня Info: msg="http", status, dur
//     (при сетевой ошибке — Warn с err).
//
// nil base — логгер берётся из контекста запроса (pkg/log.From).
//
// Тело и query в лог не попадают.
func WithLogging(base *slog.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()

			rid := req.Header.Get(HeaderRequestID)
			if rid == "" {
				rid = "-"
			}

			u := *req.URL
			u.RawQuery = ""

			lg := base
			if lg == nil {
				lg = log.From(req.Context())
			}

			l := lg.With(
				slog.String("request_id", rid),
				slog.String("method", req.Method),
				slog.String("url", u.Redacted()),
			)
			req = req.WithContext(log.Into(req.Context(), l))
			l.Debug("http_request", slog.Any("headers", redact.Headers(req.Header)))

			resp, err := next.RoundTrip(req)
			if err != nil {
				l.Warn("http",
					slog.String("err", err.Error()),
					slog.Duration("dur", time.Since(start)),
				)
				return nil, err
			}

			l.Info("http",
				slog.Int("status", resp.StatusCode),
				slog.Duration("dur", time.Since(start)),
			)

			return resp, nil
		})
	}
}
