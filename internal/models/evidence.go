package models

import "time"

// Evidence represents an assembled upload artifact
type Evidence struct {
	ID             string    `json:"id"`
	OriginalName   string    `json:"originalName"`
	StoredFilename string    `json:"-"`
	Size           int64     `json:"size"`
	MimeType       string    `json:"mimeType"`
	Metadata       string    `json:"metadata"` // JSON blob captured at upload time
	CreatedAt      time.Time `json:"createdAt"`
}
