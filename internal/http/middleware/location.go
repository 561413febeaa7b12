package middleware

import (
	"net/http"

	"github.com/pribylovaa/go-session-client/internal/navigation"
)

// HeaderLocation — заголовок, которым фронт сообщает текущую страницу.
const HeaderLocation = "X-Client-Location"

// Location кладёт в контекст текущее местоположение пользователя:
// значение X-Client-Location, а без него — путь запроса. Если сессия
// запросила переход на вход, ответ получает заголовок X-Login-Location.
func Location() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := r.Header.Get(HeaderLocation)
			if loc == "" {
				loc = r.URL.Path
			}

			ctx := navigation.WithLocation(r.Context(), loc)
			next.ServeHTTP(&redirectWriter{ResponseWriter: w, r: r.WithContext(ctx)}, r.WithContext(ctx))
		})
	}
}

type redirectWriter struct {
	http.ResponseWriter
	r           *http.Request
	wroteHeader bool
}

func (w *redirectWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if to, ok := navigation.RedirectFrom(w.r.Context()); ok {
			w.Header().Set("X-Login-Location", to)
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *redirectWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}

func (w *redirectWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *redirectWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
