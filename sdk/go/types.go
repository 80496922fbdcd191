// Package evidrop is the client SDK for the evidrop evidence upload service.
//
// The central type is Queue: a bounded-concurrency, resumable upload queue
// that splits files into chunks, survives process restarts through a durable
// Store, and exposes pause/resume/cancel/retry control per item.
package evidrop

import (
	"net/http"
	"time"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// BaseURL is the server address, e.g. "https://evidence.example.com".
	BaseURL string

	// Timeout bounds a single chunk request including the response read.
	// Defaults to 30 seconds.
	Timeout time.Duration

	// HTTPClient overrides the transport. The Timeout field above is applied
	// to it. Mostly useful for tests.
	HTTPClient *http.Client
}

// Geolocation is an optional capture location for an evidence item.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// Metadata describes an evidence item. It travels with the first chunk and is
// stored by the server verbatim.
type Metadata struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Geolocation *Geolocation `json:"geolocation,omitempty"`
	Timestamp   time.Time    `json:"timestamp,omitempty"`
}

// ChunkAck is the server acknowledgment for one accepted chunk.
type ChunkAck struct {
	UploadID       string `json:"uploadId"`
	Status         string `json:"status"`
	Progress       int    `json:"progress"`
	ReceivedChunks int    `json:"receivedChunks"`
	EvidenceID     string `json:"evidenceId,omitempty"`
}

// SessionStatus is the server-side view of an upload session.
type SessionStatus struct {
	UploadID       string     `json:"uploadId"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	ReceivedChunks int        `json:"receivedChunks"`
	TotalChunks    int        `json:"totalChunks"`
	CreatedAt      time.Time  `json:"createdAt"`
	CompletedAt    *time.Time `json:"completedAt"`
}

// Stats summarizes queue occupancy by item status.
type Stats struct {
	Total     int
	Queued    int
	Uploading int
	Paused    int
	Completed int
	Failed    int
	Cancelled int
}
