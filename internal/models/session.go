package models

import "time"

// Session status values
const (
	SessionUploading  = "uploading"
	SessionAssembling = "assembling"
	SessionCompleted  = "completed"
)

// UploadSession represents a chunked upload session in progress
type UploadSession struct {
	UploadID     string     `json:"uploadId"`
	FileName     string     `json:"fileName"`
	Metadata     string     `json:"metadata"` // Opaque JSON blob passed through from the client
	ChunkSize    int64      `json:"chunkSize"`
	TotalChunks  int        `json:"totalChunks"`
	Status       string     `json:"status"`
	EvidenceID   *string    `json:"evidenceId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActivity time.Time  `json:"lastActivity"`
	CompletedAt  *time.Time `json:"completedAt"`
}

// ChunkResponse is returned after each accepted chunk
type ChunkResponse struct {
	UploadID       string `json:"uploadId"`
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	ReceivedChunks int    `json:"receivedChunks"`
	EvidenceID     string `json:"evidenceId,omitempty"`
}

// SessionStatusResponse is returned by the status endpoint
type SessionStatusResponse struct {
	UploadID       string     `json:"uploadId"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	ReceivedChunks int        `json:"receivedChunks"`
	TotalChunks    int        `json:"totalChunks"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt"`
}

// ErrorResponse is the JSON body for 4xx/5xx responses
type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
