package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/evidrop/evidrop/internal/config"
	"github.com/evidrop/evidrop/internal/database"
	"github.com/evidrop/evidrop/internal/metrics"
	"github.com/evidrop/evidrop/internal/models"
	"github.com/evidrop/evidrop/internal/storage"
	"github.com/evidrop/evidrop/internal/utils"
)

// assembleArtifact concatenates the staged chunks into a single artifact,
// pushes it through the storage backend, records the evidence row, and marks
// the session completed. Callers must hold the assembly lock; on error they
// are responsible for unlocking so the client can retry.
func assembleArtifact(ctx context.Context, db *sql.DB, cfg *config.Config, store storage.Backend, session *models.UploadSession) (string, error) {
	start := time.Now()
	uploadID := session.UploadID

	// Assemble into the staging area first so a failed push never leaves a
	// half-written artifact under the evidence name.
	tmpPath := filepath.Join(utils.StagingDir(cfg.UploadDir), uploadID+".artifact")
	defer os.Remove(tmpPath)

	size, err := utils.AssembleChunks(cfg.UploadDir, uploadID, session.TotalChunks, tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to assemble chunks: %w", err)
	}

	if size > cfg.MaxFileSize {
		return "", fmt.Errorf("assembled artifact exceeds maximum file size: %d > %d", size, cfg.MaxFileSize)
	}

	mtype, err := mimetype.DetectFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to detect artifact MIME type: %w", err)
	}

	evidenceID := uuid.New().String()

	artifact, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("failed to open assembled artifact: %w", err)
	}
	defer artifact.Close()

	if err := store.Store(ctx, evidenceID, artifact, size); err != nil {
		return "", fmt.Errorf("failed to store artifact: %w", err)
	}

	ev := &models.Evidence{
		ID:             evidenceID,
		OriginalName:   session.FileName,
		StoredFilename: evidenceID,
		Size:           size,
		MimeType:       mtype.String(),
		Metadata:       session.Metadata,
		CreatedAt:      time.Now(),
	}

	if err := database.CreateEvidence(db, ev); err != nil {
		// Roll the artifact back out of storage so nothing orphaned survives
		if delErr := store.Delete(ctx, evidenceID); delErr != nil {
			slog.Error("failed to remove artifact after evidence insert failure",
				"evidence_id", evidenceID,
				"error", delErr,
			)
		}
		return "", fmt.Errorf("failed to create evidence record: %w", err)
	}

	if err := database.MarkSessionCompleted(db, uploadID, evidenceID); err != nil {
		return "", fmt.Errorf("failed to mark session completed: %w", err)
	}

	if err := utils.DeleteChunks(cfg.UploadDir, uploadID); err != nil {
		// Artifact is safe; the expiry sweeper will reclaim the staging dir
		slog.Warn("failed to delete staged chunks after assembly",
			"upload_id", uploadID,
			"error", err,
		)
	}

	metrics.ArtifactSizeBytes.Observe(float64(size))
	metrics.AssemblyDuration.Observe(time.Since(start).Seconds())

	slog.Info("artifact assembled",
		"upload_id", uploadID,
		"evidence_id", evidenceID,
		"size", size,
		"mime_type", mtype.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return evidenceID, nil
}
