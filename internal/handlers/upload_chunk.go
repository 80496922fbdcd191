package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/evidrop/evidrop/internal/config"
	"github.com/evidrop/evidrop/internal/database"
	"github.com/evidrop/evidrop/internal/metrics"
	"github.com/evidrop/evidrop/internal/models"
	"github.com/evidrop/evidrop/internal/storage"
	"github.com/evidrop/evidrop/internal/utils"
)

// multipartOverhead is headroom on top of the chunk size for form field
// boundaries, the file name, and the metadata blob.
const multipartOverhead = 64 * 1024

// UploadChunkHandler handles POST /api/upload/chunk.
//
// A request without an uploadId and with chunkIndex 0 mints a new session;
// every other chunk must carry the id the first response returned. An unknown
// or expired id is a 404 so the client knows to restart from chunk 0 rather
// than silently filling a fresh session with mid-file chunks.
func UploadChunkHandler(db *sql.DB, cfg *config.Config, store storage.Backend, tracker *utils.SessionTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", "METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed)
			return
		}

		if tracker.ShuttingDown() {
			sendError(w, "Server is shutting down", "SHUTTING_DOWN", http.StatusServiceUnavailable)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, cfg.ChunkSize+multipartOverhead)
		if err := r.ParseMultipartForm(cfg.ChunkSize + multipartOverhead); err != nil {
			sendError(w, "Chunk too large or invalid form data", "CHUNK_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return
		}

		chunkIndex, err := strconv.Atoi(r.FormValue("chunkIndex"))
		if err != nil || chunkIndex < 0 {
			sendError(w, "Invalid chunkIndex", "INVALID_CHUNK_INDEX", http.StatusBadRequest)
			return
		}

		totalChunks, err := strconv.Atoi(r.FormValue("totalChunks"))
		if err != nil || totalChunks <= 0 {
			sendError(w, "Invalid totalChunks", "INVALID_TOTAL_CHUNKS", http.StatusBadRequest)
			return
		}
		if totalChunks > config.MaxTotalChunks {
			sendError(w,
				fmt.Sprintf("File requires too many chunks (maximum %d)", config.MaxTotalChunks),
				"TOO_MANY_CHUNKS",
				http.StatusBadRequest,
			)
			return
		}

		metadata := r.FormValue("metadata")
		if metadata != "" && !json.Valid([]byte(metadata)) {
			sendError(w, "Metadata must be valid JSON", "INVALID_METADATA", http.StatusBadRequest)
			return
		}

		chunkFile, _, err := r.FormFile("chunk")
		if err != nil {
			sendError(w, "No chunk file provided", "NO_CHUNK", http.StatusBadRequest)
			return
		}
		defer chunkFile.Close()

		chunkData, err := io.ReadAll(chunkFile)
		if err != nil {
			slog.Error("failed to read chunk data", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		chunkSize := int64(len(chunkData))
		if chunkSize == 0 {
			sendError(w, "Chunk is empty", "EMPTY_CHUNK", http.StatusBadRequest)
			return
		}
		if chunkSize > cfg.ChunkSize {
			sendError(w,
				fmt.Sprintf("Chunk exceeds maximum size of %d bytes", cfg.ChunkSize),
				"CHUNK_TOO_LARGE",
				http.StatusRequestEntityTooLarge,
			)
			return
		}

		uploadID := r.FormValue("uploadId")
		var session *models.UploadSession

		if uploadID == "" {
			// First contact. Only chunk 0 may mint a session: a mid-file chunk
			// without an id means the client lost the session id and must
			// restart.
			if chunkIndex != 0 {
				sendError(w, "uploadId is required for chunkIndex > 0", "MISSING_UPLOAD_ID", http.StatusBadRequest)
				return
			}

			session, err = mintSession(db, cfg, r, totalChunks, chunkSize, metadata)
			if err != nil {
				var verr *validationError
				if errors.As(err, &verr) {
					sendError(w, verr.message, verr.code, verr.status)
					return
				}
				slog.Error("failed to create upload session", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			uploadID = session.UploadID
		} else {
			if _, err := uuid.Parse(uploadID); err != nil {
				sendError(w, "Invalid uploadId format", "INVALID_UPLOAD_ID", http.StatusBadRequest)
				return
			}

			session, err = database.GetSession(db, uploadID)
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
				// Re-sent chunk after completion. Acknowledge instead of
				// erroring so a client that missed the final response can
				// learn the outcome.
				resp := models.ChunkResponse{
					UploadID:       uploadID,
					Status:         models.SessionCompleted,
					Progress:       100,
					ReceivedChunks: session.TotalChunks,
				}
				if session.EvidenceID != nil {
					resp.EvidenceID = *session.EvidenceID
				}
				sendJSON(w, http.StatusOK, resp)
				return
			}

			if totalChunks != session.TotalChunks {
				sendError(w,
					fmt.Sprintf("totalChunks mismatch: session declares %d, got %d", session.TotalChunks, totalChunks),
					"TOTAL_CHUNKS_MISMATCH",
					http.StatusBadRequest,
				)
				return
			}
		}

		if chunkIndex >= session.TotalChunks {
			sendError(w,
				fmt.Sprintf("Chunk index %d exceeds total chunks %d", chunkIndex, session.TotalChunks),
				"CHUNK_INDEX_OUT_OF_RANGE",
				http.StatusBadRequest,
			)
			return
		}

		// Every chunk except the last must match the session chunk size; the
		// last carries the remainder.
		isLastChunk := chunkIndex == session.TotalChunks-1
		if !isLastChunk && chunkSize != session.ChunkSize {
			sendError(w,
				fmt.Sprintf("Chunk size mismatch: expected %d, got %d", session.ChunkSize, chunkSize),
				"CHUNK_SIZE_MISMATCH",
				http.StatusBadRequest,
			)
			return
		}
		if isLastChunk && chunkSize > session.ChunkSize {
			sendError(w,
				fmt.Sprintf("Last chunk exceeds session chunk size: expected at most %d, got %d", session.ChunkSize, chunkSize),
				"CHUNK_SIZE_MISMATCH",
				http.StatusBadRequest,
			)
			return
		}

		if !tracker.Begin(uploadID) {
			sendError(w, "Server is shutting down", "SHUTTING_DOWN", http.StatusServiceUnavailable)
			return
		}
		defer tracker.End(uploadID)

		// Idempotency: a staged chunk with the same size is a resend after a
		// lost acknowledgment. A different size means corruption.
		exists, existingSize, err := utils.ChunkExists(cfg.UploadDir, uploadID, chunkIndex)
		if err != nil {
			slog.Error("failed to check chunk existence", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if exists && existingSize != chunkSize {
			sendError(w,
				fmt.Sprintf("Chunk %d already staged with different size (have %d, got %d)", chunkIndex, existingSize, chunkSize),
				"CHUNK_CORRUPTION",
				http.StatusConflict,
			)
			return
		}

		if !exists {
			hasSpace, reason, err := utils.CheckDiskSpace(cfg.UploadDir, chunkSize)
			if err != nil {
				slog.Error("failed to check disk space", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
			if !hasSpace {
				slog.Warn("insufficient disk space for chunk",
					"upload_id", uploadID,
					"chunk_index", chunkIndex,
					"chunk_size", chunkSize,
					"reason", reason,
				)
				sendError(w, reason, "INSUFFICIENT_STORAGE", http.StatusInsufficientStorage)
				return
			}

			if err := utils.SaveChunk(cfg.UploadDir, uploadID, chunkIndex, chunkData); err != nil {
				slog.Error("failed to save chunk", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}
		}

		inserted, err := database.RecordChunk(db, uploadID, chunkIndex, chunkSize)
		if err != nil {
			slog.Error("failed to record chunk", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		if inserted {
			metrics.ChunksReceivedTotal.Inc()
		} else {
			metrics.ChunksDuplicateTotal.Inc()
			slog.Debug("duplicate chunk acknowledged",
				"upload_id", uploadID,
				"chunk_index", chunkIndex,
			)
		}

		if err := database.TouchSession(db, uploadID); err != nil {
			slog.Error("failed to touch upload session", "error", err)
		}

		received, err := database.CountReceivedChunks(db, uploadID)
		if err != nil {
			slog.Error("failed to count received chunks", "error", err)
			sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}

		// Completion is a distinct-index count, never a request count, so
		// resends can't complete a session early.
		if received >= session.TotalChunks {
			locked, err := database.TryLockForAssembly(db, uploadID)
			if err != nil {
				slog.Error("failed to lock session for assembly", "error", err)
				sendError(w, "Internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
				return
			}

			if !locked {
				// A concurrent final chunk won the race; report its progress.
				sendJSON(w, http.StatusOK, models.ChunkResponse{
					UploadID:       uploadID,
					Status:         models.SessionAssembling,
					Progress:       100,
					ReceivedChunks: received,
				})
				return
			}

			evidenceID, err := assembleArtifact(r.Context(), db, cfg, store, session)
			if err != nil {
				metrics.AssemblyFailuresTotal.Inc()
				slog.Error("artifact assembly failed",
					"upload_id", uploadID,
					"error", err,
				)
				if unlockErr := database.UnlockAssembly(db, uploadID); unlockErr != nil {
					slog.Error("failed to unlock session after assembly failure", "error", unlockErr)
				}
				sendError(w, "Failed to assemble uploaded file", "ASSEMBLY_FAILED", http.StatusInternalServerError)
				return
			}

			metrics.SessionsCompletedTotal.Inc()

			sendJSON(w, http.StatusOK, models.ChunkResponse{
				UploadID:       uploadID,
				Status:         models.SessionCompleted,
				Progress:       100,
				ReceivedChunks: received,
				EvidenceID:     evidenceID,
			})

			slog.Info("upload session completed",
				"upload_id", uploadID,
				"evidence_id", evidenceID,
				"total_chunks", session.TotalChunks,
				"client_ip", getClientIP(r),
			)
			return
		}

		sendJSON(w, http.StatusOK, models.ChunkResponse{
			UploadID:       uploadID,
			Status:         models.SessionUploading,
			Progress:       progressPercent(received, session.TotalChunks),
			ReceivedChunks: received,
		})

		slog.Debug("chunk received",
			"upload_id", uploadID,
			"chunk_index", chunkIndex,
			"chunk_size", chunkSize,
			"received_chunks", received,
			"total_chunks", session.TotalChunks,
		)
	}
}

// validationError carries a client-facing rejection out of mintSession
type validationError struct {
	message string
	code    string
	status  int
}

func (e *validationError) Error() string {
	return e.message
}

// mintSession validates first-chunk parameters and creates the session row.
// The size of chunk 0 fixes the session chunk size; later chunks must match it.
func mintSession(db *sql.DB, cfg *config.Config, r *http.Request, totalChunks int, chunkSize int64, metadata string) (*models.UploadSession, error) {
	fileName := r.FormValue("fileName")
	if fileName == "" {
		return nil, &validationError{"fileName is required", "MISSING_FILE_NAME", http.StatusBadRequest}
	}
	fileName = utils.SanitizeFilename(fileName)

	// A multi-chunk session's first chunk is full-size, so this bounds the
	// declared file size before any chunk beyond the first arrives.
	if int64(totalChunks)*chunkSize > cfg.MaxFileSize+cfg.ChunkSize {
		return nil, &validationError{
			fmt.Sprintf("File size exceeds maximum of %d bytes", cfg.MaxFileSize),
			"FILE_TOO_LARGE",
			http.StatusRequestEntityTooLarge,
		}
	}

	now := time.Now()
	session := &models.UploadSession{
		UploadID:     uuid.New().String(),
		FileName:     fileName,
		Metadata:     metadata,
		ChunkSize:    chunkSize,
		TotalChunks:  totalChunks,
		Status:       models.SessionUploading,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := database.CreateSession(db, session); err != nil {
		return nil, err
	}

	metrics.SessionsCreatedTotal.Inc()

	slog.Info("upload session created",
		"upload_id", session.UploadID,
		"file_name", fileName,
		"total_chunks", totalChunks,
		"chunk_size", chunkSize,
		"client_ip", getClientIP(r),
	)

	return session, nil
}
