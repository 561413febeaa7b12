// transport предоставляет набор middleware для исходящих HTTP-вызовов
// клиента сессии (http.RoundTripper): метаданные запроса, таймаут, логирование.
package transport

import (
	"log/slog"
	"net/http"
	"time"
)

// Middleware оборачивает RoundTripper.
type Middleware func(next http.RoundTripper) http.RoundTripper

// RoundTripperFunc — адаптер функции к http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// Chain собирает цепочку: первый middleware — самый внешний.
// nil base — http.DefaultTransport.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}

	return rt
}

// Options — параметры исходящего клиента.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Logger    *slog.Logger
	Base      http.RoundTripper
}

// New создаёт http.Client с цепочкой metadata -> timeout -> logging.
func New(opts Options) *http.Client {
	return &http.Client{
		Transport: Chain(opts.Base,
			WithMetadata(opts.UserAgent),
			WithTimeout(opts.Timeout),
			WithLogging(opts.Logger),
		),
	}
}
