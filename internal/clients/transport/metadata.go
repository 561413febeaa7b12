package transport

import (
	"net/http"

	"github.com/google/uuid"
)

type CtxKey string

// CtxRequestID — ключ контекста с идентификатором входящего запроса,
// который нужно прокинуть в исходящий.
const CtxRequestID CtxKey = "request_id"

const HeaderRequestID = "X-Request-Id"

// WithMetadata добавляет в исходящий запрос заголовки:
//   - X-Request-Id (из контекста; если нет ни в контексте, ни в запросе — новый UUID);
//   - User-Agent (если передан параметром).
//
// Заголовки, заданные вызывающим, не перезаписываются. Исходный запрос не меняется.
func WithMetadata(userAgent string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			r := req.Clone(req.Context())

			if r.Header.Get(HeaderRequestID) == "" {
				rid, _ := r.Context().Value(CtxRequestID).(string)
				if rid == "" {
					rid = uuid.NewString()
				}
				r.Header.Set(HeaderRequestID, rid)
			}

			if userAgent != "" && r.Header.Get("User-Agent") == "" {
				r.Header.Set("User-Agent", userAgent)
			}

			return next.RoundTrip(r)
		})
	}
}
