package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
)

// healthResponse is the body for GET /health
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthHandler handles GET /health with a database liveness probe
func HealthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		if err := db.Ping(); err != nil {
			slog.Error("health check: database ping failed", "error", err)
			sendJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status:   "unhealthy",
				Database: "unreachable",
			})
			return
		}

		sendJSON(w, http.StatusOK, healthResponse{
			Status:   "ok",
			Database: "ok",
		})
	}
}
