package evidrop

import "time"

// Status is the lifecycle state of a queue item.
type Status string

// Item statuses. queued, uploading, and paused are live states; completed,
// failed, and cancelled are terminal (failed and cancelled can be revived
// with Retry).
const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// queueItem is the queue-internal mutable state of one upload.
// All fields are guarded by the queue mutex except ctx cancellation.
type queueItem struct {
	id       string
	path     string
	fileName string
	metadata Metadata

	// armed reports whether path currently points at readable source bytes.
	// Restored items keep their path for display but stay un-armed until
	// AttachSource confirms the file is still there.
	armed bool

	status        Status
	uploadID      string
	evidenceID    string
	size          int64
	uploadedBytes int64
	retryCount    int
	lastError     string

	createdAt time.Time
	updatedAt time.Time

	// cancel aborts the running transfer. Non-nil only while uploading.
	cancel func()
}

// ItemSnapshot is an immutable copy of a queue item's state.
type ItemSnapshot struct {
	ID       string   `json:"id"`
	Path     string   `json:"path"`
	FileName string   `json:"fileName"`
	Metadata Metadata `json:"metadata"`

	Status        Status `json:"status"`
	UploadID      string `json:"uploadId,omitempty"`
	EvidenceID    string `json:"evidenceId,omitempty"`
	Size          int64  `json:"size"`
	UploadedBytes int64  `json:"uploadedBytes"`
	RetryCount    int    `json:"retryCount"`
	Error         string `json:"error,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// HasSource reports whether the item can actually be uploaded. Items
	// restored from a Store come back without a source until AttachSource.
	HasSource bool `json:"-"`
}

// snapshot copies the item state. Callers must hold the queue mutex.
func (it *queueItem) snapshot() ItemSnapshot {
	return ItemSnapshot{
		ID:            it.id,
		Path:          it.path,
		FileName:      it.fileName,
		Metadata:      it.metadata,
		Status:        it.status,
		UploadID:      it.uploadID,
		EvidenceID:    it.evidenceID,
		Size:          it.size,
		UploadedBytes: it.uploadedBytes,
		RetryCount:    it.retryCount,
		Error:         it.lastError,
		CreatedAt:     it.createdAt,
		UpdatedAt:     it.updatedAt,
		HasSource:     it.armed,
	}
}

// Progress returns percent progress for the snapshot, rounded to the
// nearest whole number.
func (s ItemSnapshot) Progress() int {
	if s.Size <= 0 {
		return 0
	}
	if s.Status == StatusCompleted {
		return 100
	}
	p := int((s.UploadedBytes*100 + s.Size/2) / s.Size)
	if p > 100 {
		p = 100
	}
	return p
}
