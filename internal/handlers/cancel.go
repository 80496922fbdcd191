package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/evidrop/evidrop/internal/config"
	"github.com/evidrop/evidrop/internal/database"
	"github.com/evidrop/evidrop/internal/metrics"
	"github.com/evidrop/evidrop/internal/models"
	"github.com/evidrop/evidrop/internal/utils"
)

// CancelUploadHandler handles DELETE /api/upload/{upload_id}.
// Removes the session row and its staged chunks. A completed session cannot
// be cancelled; the assembled evidence already exists.
func CancelUploadHandler(db *sql.DB, cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		uploadID := strings.TrimPrefix(r.URL.Path, "/api/upload/")
		if uploadID == "" || strings.Contains(uploadID, "/") {
			sendError(w, "Invalid URL path", "INVALID_PATH", http.StatusBadRequest)
			return
		}
		if _, err := uuid.Parse(uploadID); err != nil {
			sendError(w, "Invalid uploadId format", "INVALID_UPLOAD_ID", http.StatusBadRequest)
			return
		}

		session, err := database.GetSession(db, uploadID)
		if err != nil {
			slog.Error("failed to get upload session", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if session == nil {
			sendError(w, "Upload session not found", "SESSION_NOT_FOUND", http.StatusNotFound)
			return
		}

		if session.Status == models.SessionCompleted {
			sendError(w, "Upload already completed", "ALREADY_COMPLETED", http.StatusConflict)
			return
		}

		if err := utils.DeleteChunks(cfg.UploadDir, uploadID); err != nil {
			slog.Error("failed to delete staged chunks", "upload_id", uploadID, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		if err := database.DeleteSession(db, uploadID); err != nil {
			slog.Error("failed to delete upload session", "upload_id", uploadID, "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		metrics.SessionsCancelledTotal.WithLabelValues("client").Inc()

		slog.Info("upload session cancelled",
			"upload_id", uploadID,
			"client_ip", getClientIP(r),
		)

		w.WriteHeader(http.StatusNoContent)
	}
}
