package database

import (
	"database/sql"
	"fmt"

	"github.com/evidrop/evidrop/internal/models"
)

// CreateEvidence creates an evidence record for an assembled artifact
func CreateEvidence(db *sql.DB, ev *models.Evidence) error {
	query := `
		INSERT INTO evidence (id, original_name, stored_filename, size, mime_type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		ev.ID,
		ev.OriginalName,
		ev.StoredFilename,
		ev.Size,
		ev.MimeType,
		ev.Metadata,
		ev.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create evidence record: %w", err)
	}

	return nil
}

// GetEvidence retrieves an evidence record by id.
// Returns (nil, nil) when no record exists.
func GetEvidence(db *sql.DB, id string) (*models.Evidence, error) {
	query := `
		SELECT id, original_name, stored_filename, size, mime_type, metadata, created_at
		FROM evidence
		WHERE id = ?
	`

	ev := &models.Evidence{}
	err := db.QueryRow(query, id).Scan(
		&ev.ID,
		&ev.OriginalName,
		&ev.StoredFilename,
		&ev.Size,
		&ev.MimeType,
		&ev.Metadata,
		&ev.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get evidence record: %w", err)
	}

	return ev, nil
}
