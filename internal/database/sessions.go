package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/evidrop/evidrop/internal/models"
)

// CreateSession creates a new upload session record
func CreateSession(db *sql.DB, session *models.UploadSession) error {
	query := `
		INSERT INTO upload_sessions (
			upload_id, file_name, metadata, chunk_size, total_chunks,
			status, created_at, last_activity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		session.UploadID,
		session.FileName,
		session.Metadata,
		session.ChunkSize,
		session.TotalChunks,
		session.Status,
		session.CreatedAt,
		session.LastActivity,
	)

	if err != nil {
		return fmt.Errorf("failed to create upload session: %w", err)
	}

	return nil
}

// GetSession retrieves an upload session by upload_id.
// Returns (nil, nil) when no session exists.
func GetSession(db *sql.DB, uploadID string) (*models.UploadSession, error) {
	query := `
		SELECT upload_id, file_name, metadata, chunk_size, total_chunks,
		       status, evidence_id, created_at, last_activity, completed_at
		FROM upload_sessions
		WHERE upload_id = ?
	`

	session := &models.UploadSession{}
	var evidenceID sql.NullString
	var completedAt sql.NullTime

	err := db.QueryRow(query, uploadID).Scan(
		&session.UploadID,
		&session.FileName,
		&session.Metadata,
		&session.ChunkSize,
		&session.TotalChunks,
		&session.Status,
		&evidenceID,
		&session.CreatedAt,
		&session.LastActivity,
		&completedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get upload session: %w", err)
	}

	if evidenceID.Valid {
		session.EvidenceID = &evidenceID.String
	}
	if completedAt.Valid {
		session.CompletedAt = &completedAt.Time
	}

	return session, nil
}

// RecordChunk records a received chunk index for a session.
// The (upload_id, chunk_index) primary key makes receipt a set, not a count:
// a duplicate resend is ignored and reported via the return value.
func RecordChunk(db *sql.DB, uploadID string, chunkIndex int, size int64) (bool, error) {
	query := `
		INSERT OR IGNORE INTO session_chunks (upload_id, chunk_index, size, received_at)
		VALUES (?, ?, ?, ?)
	`

	result, err := db.Exec(query, uploadID, chunkIndex, size, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to record chunk: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// CountReceivedChunks returns the number of distinct chunk indices recorded
func CountReceivedChunks(db *sql.DB, uploadID string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM session_chunks WHERE upload_id = ?`, uploadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count received chunks: %w", err)
	}
	return count, nil
}

// GetReceivedChunkIndices returns the sorted distinct chunk indices recorded
func GetReceivedChunkIndices(db *sql.DB, uploadID string) ([]int, error) {
	rows, err := db.Query(
		`SELECT chunk_index FROM session_chunks WHERE upload_id = ? ORDER BY chunk_index ASC`,
		uploadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get received chunk indices: %w", err)
	}
	defer rows.Close()

	var indices []int
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, fmt.Errorf("failed to scan chunk index: %w", err)
		}
		indices = append(indices, idx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk indices: %w", err)
	}

	return indices, nil
}

// TouchSession updates the last_activity timestamp
func TouchSession(db *sql.DB, uploadID string) error {
	_, err := db.Exec(`UPDATE upload_sessions SET last_activity = ? WHERE upload_id = ?`, time.Now(), uploadID)
	if err != nil {
		return fmt.Errorf("failed to touch upload session: %w", err)
	}
	return nil
}

// TryLockForAssembly attempts to atomically transition a session from
// "uploading" to "assembling". Returns true if the lock was acquired, so two
// concurrent last-chunk requests cannot both run assembly.
func TryLockForAssembly(db *sql.DB, uploadID string) (bool, error) {
	result, err := db.Exec(
		`UPDATE upload_sessions SET status = ?, last_activity = ? WHERE upload_id = ? AND status = ?`,
		models.SessionAssembling, time.Now(), uploadID, models.SessionUploading,
	)
	if err != nil {
		return false, fmt.Errorf("failed to lock session for assembly: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// UnlockAssembly reverts a session from "assembling" back to "uploading".
// Used when assembly fails so the client can retry the missing chunk.
func UnlockAssembly(db *sql.DB, uploadID string) error {
	_, err := db.Exec(
		`UPDATE upload_sessions SET status = ?, last_activity = ? WHERE upload_id = ? AND status = ?`,
		models.SessionUploading, time.Now(), uploadID, models.SessionAssembling,
	)
	if err != nil {
		return fmt.Errorf("failed to unlock session assembly: %w", err)
	}
	return nil
}

// MarkSessionCompleted marks a session as completed with its evidence id
func MarkSessionCompleted(db *sql.DB, uploadID, evidenceID string) error {
	now := time.Now()
	query := `
		UPDATE upload_sessions
		SET status = ?, evidence_id = ?, completed_at = ?, last_activity = ?
		WHERE upload_id = ?
	`

	_, err := db.Exec(query, models.SessionCompleted, evidenceID, now, now, uploadID)
	if err != nil {
		return fmt.Errorf("failed to mark session completed: %w", err)
	}

	return nil
}

// DeleteSession deletes a session record and its received-chunk set
func DeleteSession(db *sql.DB, uploadID string) error {
	// Explicit delete rather than relying on the cascade: foreign keys may be
	// off on connections that skipped the pragma (in-memory test databases).
	if _, err := db.Exec(`DELETE FROM session_chunks WHERE upload_id = ?`, uploadID); err != nil {
		return fmt.Errorf("failed to delete session chunks: %w", err)
	}

	if _, err := db.Exec(`DELETE FROM upload_sessions WHERE upload_id = ?`, uploadID); err != nil {
		return fmt.Errorf("failed to delete upload session: %w", err)
	}

	return nil
}

// GetExpiredSessions returns incomplete sessions idle for longer than expiryHours
func GetExpiredSessions(db *sql.DB, expiryHours int) ([]models.UploadSession, error) {
	query := `
		SELECT upload_id, file_name, metadata, chunk_size, total_chunks,
		       status, evidence_id, created_at, last_activity, completed_at
		FROM upload_sessions
		WHERE status != ?
		AND datetime(last_activity) < datetime('now', '-' || ? || ' hours')
		ORDER BY last_activity ASC
	`

	rows, err := db.Query(query, models.SessionCompleted, expiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to get expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.UploadSession
	for rows.Next() {
		var session models.UploadSession
		var evidenceID sql.NullString
		var completedAt sql.NullTime

		err := rows.Scan(
			&session.UploadID,
			&session.FileName,
			&session.Metadata,
			&session.ChunkSize,
			&session.TotalChunks,
			&session.Status,
			&evidenceID,
			&session.CreatedAt,
			&session.LastActivity,
			&completedAt,
		)

		if err != nil {
			return nil, fmt.Errorf("failed to scan upload session: %w", err)
		}

		if evidenceID.Valid {
			session.EvidenceID = &evidenceID.String
		}
		if completedAt.Valid {
			session.CompletedAt = &completedAt.Time
		}

		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upload sessions: %w", err)
	}

	return sessions, nil
}
