package transport

import (
	"context"
	"io"
	"net/http"
	"time"
)

// WithTimeout навешивает таймаут d на исходящий запрос, если у контекста ещё
// нет дедлайна. Существующий дедлайн не переопределяется.
//
// Контракт:
//  1. d <= 0 — запрос уходит как есть;
//  2. у ctx уже есть deadline — оставляет как есть;
//  3. иначе — context.WithTimeout(ctx, d); cancel() вызывается при ошибке
//     или при закрытии тела ответа, чтобы таймаут покрывал и чтение тела.
func WithTimeout(d time.Duration) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			if d <= 0 {
				return next.RoundTrip(req)
			}
			if _, ok := req.Context().Deadline(); ok {
				return next.RoundTrip(req)
			}

			ctx, cancel := context.WithTimeout(req.Context(), d)

			resp, err := next.RoundTrip(req.WithContext(ctx))
			if err != nil {
				cancel()
				return nil, err
			}

			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		})
	}
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
