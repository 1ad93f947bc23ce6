package middleware

import (
	"net/http"
	"slices"
	"strings"
)

var (
	corsAllowMethods  = "GET, POST, PUT, DELETE, OPTIONS"
	corsAllowHeaders  = "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms"
	corsExposeHeaders = "Connect-Protocol-Version, Connect-Timeout-Ms"
)

// CORS adds CORS headers for browser access from allowedOrigins.
// A "*" entry allows any origin.
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	anyOrigin := slices.Contains(allowedOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (anyOrigin || slices.ContainsFunc(allowedOrigins, func(o string) bool {
			return strings.EqualFold(strings.TrimSpace(o), origin)
		})) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
