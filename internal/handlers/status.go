package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/evidrop/evidrop/internal/database"
	"github.com/evidrop/evidrop/internal/models"
)

// UploadStatusHandler handles GET /api/upload/status/{upload_id}
func UploadStatusHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		uploadID := strings.TrimPrefix(r.URL.Path, "/api/upload/status/")
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

		received, err := database.CountReceivedChunks(db, uploadID)
		if err != nil {
			slog.Error("failed to count received chunks", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		progress := progressPercent(received, session.TotalChunks)
		if session.Status == models.SessionCompleted {
			progress = 100
		}

		sendJSON(w, http.StatusOK, models.SessionStatusResponse{
			UploadID:       session.UploadID,
			Status:         session.Status,
			Progress:       progress,
			ReceivedChunks: received,
			TotalChunks:    session.TotalChunks,
			CreatedAt:      session.CreatedAt,
			CompletedAt:    session.CompletedAt,
		})
	}
}
