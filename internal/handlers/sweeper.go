package handlers

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/evidrop/evidrop/internal/config"
	"github.com/evidrop/evidrop/internal/database"
	"github.com/evidrop/evidrop/internal/metrics"
	"github.com/evidrop/evidrop/internal/utils"
)

// StartExpirySweeper runs the session expiry sweep on a ticker until the
// context is cancelled. Incomplete sessions idle for longer than the
// configured expiry are deleted along with their staged chunks.
func StartExpirySweeper(ctx context.Context, db *sql.DB, cfg *config.Config) {
	interval := time.Duration(cfg.CleanupIntervalMinutes) * time.Minute

	slog.Info("expiry sweeper started",
		"interval", interval,
		"session_expiry_hours", cfg.SessionExpiryHours,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Sweep once at startup to reclaim sessions orphaned by a previous run
	SweepExpiredSessions(db, cfg)

	for {
		select {
		case <-ctx.Done():
			slog.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			SweepExpiredSessions(db, cfg)
		}
	}
}

// SweepExpiredSessions deletes expired sessions and returns how many were
// removed. Exported separately so tests can drive a sweep without the ticker.
func SweepExpiredSessions(db *sql.DB, cfg *config.Config) int {
	expired, err := database.GetExpiredSessions(db, cfg.SessionExpiryHours)
	if err != nil {
		slog.Error("expiry sweep: failed to list expired sessions", "error", err)
		return 0
	}

	removed := 0
	for _, session := range expired {
		if err := utils.DeleteChunks(cfg.UploadDir, session.UploadID); err != nil {
			slog.Error("expiry sweep: failed to delete staged chunks",
				"upload_id", session.UploadID,
				"error", err,
			)
			continue
		}

		if err := database.DeleteSession(db, session.UploadID); err != nil {
			slog.Error("expiry sweep: failed to delete session",
				"upload_id", session.UploadID,
				"error", err,
			)
			continue
		}

		metrics.SessionsCancelledTotal.WithLabelValues("expired").Inc()
		removed++

		slog.Info("expired upload session swept",
			"upload_id", session.UploadID,
			"last_activity", session.LastActivity,
		)
	}

	if removed > 0 {
		slog.Info("expiry sweep complete", "removed", removed)
	}

	return removed
}
