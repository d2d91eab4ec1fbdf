package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORS lets browser front ends on the listed origins call the search API.
// An empty origin list disables the middleware. "*" allows any origin.
func CORS(origins []string, maxAge int) func(http.Handler) http.Handler {
	methods := strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")
	headers := strings.Join([]string{"Content-Type", RequestIDHeader}, ", ")
	return func(next http.Handler) http.Handler {
		if len(origins) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !(slices.Contains(origins, "*") || slices.Contains(origins, origin)) {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader+", X-Cache")
			if maxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
			}
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
