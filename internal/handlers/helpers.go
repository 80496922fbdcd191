package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/evidrop/evidrop/internal/metrics"
	"github.com/evidrop/evidrop/internal/models"
	"github.com/evidrop/evidrop/internal/utils"
)

// sendError writes a JSON error response with the given message, code, and status
func sendError(w http.ResponseWriter, message, code string, status int) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Message: message,
		Code:    code,
	})
}

// sendJSON writes a JSON response with the given status
func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// getClientIP returns the client IP for log fields
func getClientIP(r *http.Request) string {
	return utils.GetClientIP(r)
}

// progressPercent computes whole-number progress from received/total chunks,
// rounded to the nearest percent
func progressPercent(received, total int) int {
	if total <= 0 {
		return 0
	}
	return (received*100 + total/2) / total
}
