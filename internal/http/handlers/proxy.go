package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/go-session-client/internal/errors"
)

// hopHeaders не передаются через прокси (RFC 9110, 7.6.1).
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy пересылает запрос на бэкенд от имени сессии (session.Do).
//
// Authorization и Cookie входящего запроса отбрасываются: учётные данные
// держит шлюз. Ответ бэкенда копируется как есть; если сессия не
// восстановилась, отдаётся унифицированная ошибка с login_url.
func (h *Handlers) Proxy(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.EscapedPath()
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		ref = "/" + rctx.URLParam("*")
	}
	if r.URL.RawQuery != "" {
		ref += "?" + r.URL.RawQuery
	}

	target, err := h.Sess.URL(ref)
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}
	copyRequestHeaders(req.Header, r.Header)

	resp, err := h.Sess.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		apierrors.WriteError(w, r, err)
		return
	}
	defer resp.Body.Close()

	dst := w.Header()
	for k, vs := range resp.Header {
		if isHop(k) {
			continue
		}
		dst[k] = append([]string(nil), vs...)
	}

	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func copyRequestHeaders(dst, src http.Header) {
	for k, vs := range src {
		if isHop(k) {
			continue
		}
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", "Cookie", "Host", "Content-Length":
			continue
		}
		dst[k] = append([]string(nil), vs...)
	}
}

func isHop(k string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, k) {
			return true
		}
	}
	return false
}
