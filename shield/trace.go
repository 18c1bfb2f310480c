package shield

import (
	"log/slog"
	"net/http"

	"github.com/hazyhaar/gjump/idgen"
	"github.com/hazyhaar/gjump/kit"
)

var newRequestID = idgen.Prefixed("req_", idgen.Compact(12))

// RequestID tags each request with an id (kept from X-Request-ID when the
// client sends one), marks the transport as http and logs the request at
// debug.
func RequestID(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 64 {
				id = newRequestID()
			}
			w.Header().Set("X-Request-ID", id)

			ctx := kit.WithRequestID(r.Context(), id)
			ctx = kit.WithTransport(ctx, "http")
			logger.Debug("shield: request", "request_id", id, "method", r.Method, "path", r.URL.Path)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
