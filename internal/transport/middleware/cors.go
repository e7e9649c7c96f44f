package middleware

import (
	"net/http"
	"strings"
)

// CORS allows the browser client to call the API from its own origin. Origins
// are configured at startup as a comma-separated list; empty configuration
// falls back to allow-all for local development. Allow-Origin is a single
// value, so with a list configured the request's Origin is echoed back only
// when it matches one entry.
func CORS(allowedOrigins string) func(http.Handler) http.Handler {
	allowAll := allowedOrigins == "" || allowedOrigins == "*"

	allowed := make(map[string]bool)
	for _, origin := range strings.Split(allowedOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin := r.Header.Get("Origin"); allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-CSRFToken, X-Trace-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
