package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	appErrors "github.com/frahmantamala/hoa-reimbursement/internal"
)

// RecoveryMiddleware turns a handler panic into a 500 with the standard
// error envelope. The panic value is logged, never returned.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "panic recovered",
						"error", rec,
						"method", r.Method,
						"url", r.URL.String(),
						"stack", string(debug.Stack()))

					status, body := appErrors.NewInternalError("internal server error", nil).ToHTTPResponse()
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(status)
					_ = json.NewEncoder(w).Encode(body)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
