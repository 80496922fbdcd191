package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/evidrop/evidrop/internal/metrics"
	"github.com/evidrop/evidrop/internal/models"
)

// Recovery turns handler panics into 500 responses instead of dropped
// connections, logging the stack so the bug is findable.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			slog.Error("panic recovered",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			metrics.ErrorsTotal.WithLabelValues("panic").Inc()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(models.ErrorResponse{
				Message: "Internal server error",
				Code:    "INTERNAL_ERROR",
			})
		}()

		next.ServeHTTP(w, r)
	})
}
