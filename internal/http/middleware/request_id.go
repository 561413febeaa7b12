package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/pribylovaa/go-session-client/internal/clients/transport"
)

// RequestID обеспечивает наличие X-Request-Id:
//  1. читает заголовок X-Request-Id, если есть;
//  2. иначе генерирует криптографически стойкий hex id (32 символа);
//  3. кладёт id в Response Header, Request Header и в контекст по ключу
//     transport.CtxRequestID (его читает исходящий metadata-middleware,
//     так что запрос к бэкенду несёт тот же id).
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(transport.HeaderRequestID)
			if id == "" {
				id = genID()
				r.Header.Set(transport.HeaderRequestID, id)
			}
			w.Header().Set(transport.HeaderRequestID, id)

			ctx := context.WithValue(r.Context(), transport.CtxRequestID, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func genID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
