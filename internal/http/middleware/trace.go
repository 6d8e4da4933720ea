package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"
)

// Trace logs one line per completed request. For the event stream the line
// is emitted when the client disconnects, which makes stream lifetimes
// visible in the log.
func Trace(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/healthz") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			next.ServeHTTP(w, r)
			if logger != nil {
				logger.Printf(
					"trace request_id=%s method=%s path=%s duration_ms=%d",
					GetRequestID(r.Context()),
					r.Method,
					r.URL.Path,
					time.Since(start).Milliseconds(),
				)
			}
		})
	}
}
