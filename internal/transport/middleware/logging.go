package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// sensitiveHeaders are masked from request logs.
var sensitiveHeaders = []string{
	"authorization",
	"cookie",
	"x-csrftoken",
}

// LoggingMiddleware logs every request/response pair. Bodies are not logged:
// form submissions are multipart with file payloads and login bodies carry
// credentials.
func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(ww, r)

			statusCode := ww.statusCode
			if statusCode == 0 {
				statusCode = http.StatusOK
			}

			level := slog.LevelInfo
			if statusCode >= 500 {
				level = slog.LevelError
			} else if statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status_code", statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"headers", filterSensitiveHeaders(r.Header),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}

func filterSensitiveHeaders(headers http.Header) map[string]string {
	filtered := make(map[string]string)
	for name, values := range headers {
		lowerName := strings.ToLower(name)
		masked := false
		for _, sensitive := range sensitiveHeaders {
			if strings.Contains(lowerName, sensitive) {
				masked = true
				break
			}
		}
		if masked {
			filtered[name] = "[FILTERED]"
		} else {
			filtered[name] = strings.Join(values, ", ")
		}
	}
	return filtered
}
