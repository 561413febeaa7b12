package service

import (
	"net/http"
	"strings"
)

// handleMethod registers h on mux for a "METHOD /path" pattern, emulating
// Go 1.22+ ServeMux method matching on older toolchains: a request with a
// different method gets 405 with an Allow header, and GET also matches HEAD.
func handleMethod(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	method, path, _ := strings.Cut(pattern, " ")
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && !(method == http.MethodGet && r.Method == http.MethodHead) {
			allow := method
			if method == http.MethodGet {
				allow += ", " + http.MethodHead
			}
			w.Header().Set("Allow", allow)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}
