package evidrop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxConcurrent is how many items upload simultaneously. Evidence
// uploads saturate uplinks quickly; three transfers keeps per-item progress
// moving without starving any single upload.
const DefaultMaxConcurrent = 3

// DefaultMaxItemRetries is how many times a failed item is requeued before
// it is marked failed for good.
const DefaultMaxItemRetries = 5

// Options configures a Queue.
type Options struct {
	// MaxConcurrent caps simultaneous item uploads. Defaults to 3.
	MaxConcurrent int

	// ChunkSize is the upload chunk size. Defaults to DefaultChunkSize.
	ChunkSize int64

	// MaxItemRetries caps automatic item requeues after failures.
	// Defaults to 5.
	MaxItemRetries int

	// MaxChunkRetries caps per-chunk transfer retries.
	// Defaults to DefaultMaxChunkRetries.
	MaxChunkRetries int

	// BaseDelay is the base of the chunk retry backoff.
	// Defaults to DefaultBaseDelay.
	BaseDelay time.Duration

	// Store persists queue state across restarts. Optional.
	Store Store

	// OnChange is invoked with a snapshot after every item state change.
	// Called without internal locks held; it may call back into the Queue.
	OnChange func(ItemSnapshot)
}

// Queue is a bounded-concurrency, resumable upload queue.
//
// Items are uploaded at most MaxConcurrent at a time in enqueue order. Each
// item's chunks go sequentially so its progress is a single high-water mark
// that survives restarts through the Store.
type Queue struct {
	client *Client
	opts   Options

	mu     sync.Mutex
	items  map[string]*queueItem
	order  []string
	active int
	closed bool
	wg     sync.WaitGroup
}

// NewQueue creates a queue backed by the given client.
// If Options.Store is set, previously persisted items are restored: they
// keep their saved status and progress but will not upload until
// AttachSource re-arms them with a readable file.
func NewQueue(client *Client, opts Options) (*Queue, error) {
	if client == nil {
		return nil, &ValidationError{Field: "client", Message: "is required"}
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.MaxItemRetries <= 0 {
		opts.MaxItemRetries = DefaultMaxItemRetries
	}
	if opts.MaxChunkRetries <= 0 {
		opts.MaxChunkRetries = DefaultMaxChunkRetries
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}

	q := &Queue{
		client: client,
		opts:   opts,
		items:  make(map[string]*queueItem),
	}

	if opts.Store != nil {
		saved, err := opts.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("loading queue store: %w", err)
		}
		for _, s := range saved {
			it := &queueItem{
				id:            s.ID,
				path:          s.Path,
				fileName:      s.FileName,
				metadata:      s.Metadata,
				status:        s.Status,
				uploadID:      s.UploadID,
				evidenceID:    s.EvidenceID,
				size:          s.Size,
				uploadedBytes: s.UploadedBytes,
				retryCount:    s.RetryCount,
				lastError:     s.Error,
				createdAt:     s.CreatedAt,
				updatedAt:     s.UpdatedAt,
			}
			// A restart interrupted any in-flight upload
			if it.status == StatusUploading {
				it.status = StatusQueued
			}
			q.items[it.id] = it
			q.order = append(q.order, it.id)
		}
	}

	return q, nil
}

// Enqueue adds a file to the queue and starts it as soon as a slot frees up.
func (q *Queue) Enqueue(path string, meta Metadata) (ItemSnapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ItemSnapshot{}, fmt.Errorf("stating source file: %w", err)
	}
	if info.IsDir() {
		return ItemSnapshot{}, &ValidationError{Field: "path", Message: "is a directory"}
	}
	if info.Size() == 0 {
		return ItemSnapshot{}, &ValidationError{Field: "path", Message: "file is empty"}
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ItemSnapshot{}, ErrQueueClosed
	}

	now := time.Now()
	it := &queueItem{
		id:        uuid.New().String(),
		path:      path,
		fileName:  filepath.Base(path),
		metadata:  meta,
		armed:     true,
		status:    StatusQueued,
		size:      info.Size(),
		createdAt: now,
		updatedAt: now,
	}
	q.items[it.id] = it
	q.order = append(q.order, it.id)

	snap := it.snapshot()
	q.persistLocked()
	q.dispatchLocked()
	q.mu.Unlock()

	q.emit(snap)
	return snap, nil
}

// AttachSource re-arms a restored item with a readable source file.
// If the file's size no longer matches the recorded one, accumulated
// progress and the server session are discarded: the bytes are not the
// bytes the session was built from.
func (q *Queue) AttachSource(id, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stating source file: %w", err)
	}
	if info.IsDir() {
		return &ValidationError{Field: "path", Message: "is a directory"}
	}

	q.mu.Lock()
	it, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return ErrItemNotFound
	}
	if it.status == StatusUploading {
		q.mu.Unlock()
		return fmt.Errorf("item %s is uploading", id)
	}

	if info.Size() != it.size {
		it.uploadID = ""
		it.uploadedBytes = 0
		it.size = info.Size()
	}
	it.path = path
	it.fileName = filepath.Base(path)
	it.armed = true
	it.updatedAt = time.Now()

	snap := it.snapshot()
	q.persistLocked()
	q.dispatchLocked()
	q.mu.Unlock()

	q.emit(snap)
	return nil
}

// Pause stops an item's transfer after the in-flight chunk finishes or
// aborts. Progress is kept. Pausing an item in any other state is a no-op.
func (q *Queue) Pause(id string) error {
	q.mu.Lock()
	it, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return ErrItemNotFound
	}

	switch it.status {
	case StatusQueued:
		it.status = StatusPaused
	case StatusUploading:
		it.status = StatusPaused
		if it.cancel != nil {
			it.cancel()
		}
	default:
		q.mu.Unlock()
		return nil
	}

	it.updatedAt = time.Now()
	snap := it.snapshot()
	q.persistLocked()
	q.mu.Unlock()

	q.emit(snap)
	return nil
}

// Resume requeues a paused item. It picks up from its last acknowledged
// chunk. Resuming an item that is not paused is a no-op.
func (q *Queue) Resume(id string) error {
	q.mu.Lock()
	it, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return ErrItemNotFound
	}
	if it.status != StatusPaused {
		q.mu.Unlock()
		return nil
	}

	it.status = StatusQueued
	it.updatedAt = time.Now()

	snap := it.snapshot()
	q.persistLocked()
	q.dispatchLocked()
	q.mu.Unlock()

	q.emit(snap)
	return nil
}

// Cancel aborts an item and best-effort deletes its server session.
// Cancelling a completed or already cancelled item is a no-op.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	it, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return ErrItemNotFound
	}

	switch it.status {
	case StatusCompleted, StatusCancelled:
		q.mu.Unlock()
		return nil
	}

	if it.status == StatusUploading && it.cancel != nil {
		it.cancel()
	}

	it.status = StatusCancelled
	it.updatedAt = time.Now()
	uploadID := it.uploadID

	snap := it.snapshot()
	q.persistLocked()
	q.mu.Unlock()

	if uploadID != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()
			// Best effort; the server expiry sweeper reclaims it anyway
			q.client.CancelSession(ctx, uploadID)
		}()
	}

	q.emit(snap)
	return nil
}

// Retry revives a failed or cancelled item. A cancelled item restarts from
// chunk 0: its server session is gone. Retrying an item in any other state
// is a no-op.
func (q *Queue) Retry(id string) error {
	q.mu.Lock()
	it, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return ErrItemNotFound
	}
	if it.status != StatusFailed && it.status != StatusCancelled {
		q.mu.Unlock()
		return nil
	}

	if it.status == StatusCancelled {
		it.uploadID = ""
		it.uploadedBytes = 0
	}
	it.status = StatusQueued
	it.retryCount = 0
	it.lastError = ""
	it.updatedAt = time.Now()

	snap := it.snapshot()
	q.persistLocked()
	q.dispatchLocked()
	q.mu.Unlock()

	q.emit(snap)
	return nil
}

// Remove deletes an item from the queue. A running item is cancelled first.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	it, ok := q.items[id]
	if !ok {
		q.mu.Unlock()
		return ErrItemNotFound
	}

	if it.status == StatusUploading && it.cancel != nil {
		it.status = StatusCancelled
		it.cancel()
	}

	delete(q.items, id)
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}

	q.persistLocked()
	q.mu.Unlock()
	return nil
}

// Item returns a snapshot of one item.
func (q *Queue) Item(id string) (ItemSnapshot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[id]
	if !ok {
		return ItemSnapshot{}, ErrItemNotFound
	}
	return it.snapshot(), nil
}

// Items returns snapshots of all items in enqueue order.
func (q *Queue) Items() []ItemSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]ItemSnapshot, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, q.items[id].snapshot())
	}
	return out
}

// Stats returns queue occupancy by status.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Stats
	for _, it := range q.items {
		s.Total++
		switch it.status {
		case StatusQueued:
			s.Queued++
		case StatusUploading:
			s.Uploading++
		case StatusPaused:
			s.Paused++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusCancelled:
			s.Cancelled++
		}
	}
	return s
}

// Close stops all transfers and persists final state. In-flight chunks are
// aborted; interrupted items are saved as queued so a later process resumes
// them.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for _, it := range q.items {
		if it.status == StatusUploading && it.cancel != nil {
			it.cancel()
		}
	}
	q.mu.Unlock()

	q.wg.Wait()

	q.mu.Lock()
	q.persistLocked()
	q.mu.Unlock()
	return nil
}

// dispatchLocked fills free slots with queued, armed items in enqueue order.
// Callers must hold the mutex. The cap is enforced here and only here, so it
// can never be exceeded even transiently.
func (q *Queue) dispatchLocked() {
	if q.closed {
		return
	}

	for _, id := range q.order {
		if q.active >= q.opts.MaxConcurrent {
			return
		}

		it := q.items[id]
		if it.status != StatusQueued || !it.armed {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		it.status = StatusUploading
		it.cancel = cancel
		it.updatedAt = time.Now()
		q.active++
		q.wg.Add(1)

		go q.runItem(ctx, id)
	}
}

// runItem uploads one item's chunks sequentially, resuming from the last
// acknowledged chunk.
func (q *Queue) runItem(ctx context.Context, id string) {
	defer q.wg.Done()

	q.mu.Lock()
	it, ok := q.items[id]
	if !ok {
		q.active--
		q.dispatchLocked()
		q.mu.Unlock()
		return
	}
	path := it.path
	fileName := it.fileName
	meta := it.metadata
	uploadID := it.uploadID
	uploadedBytes := it.uploadedBytes
	snap := it.snapshot()
	q.mu.Unlock()

	q.emit(snap)

	file, err := os.Open(path)
	if err != nil {
		q.finishItem(id, "", fmt.Errorf("opening source file: %w", err))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		q.finishItem(id, "", fmt.Errorf("stating source file: %w", err))
		return
	}
	size := info.Size()

	chunker := Chunker{Size: q.opts.ChunkSize}
	totalChunks := chunker.TotalChunks(size)

	metadataJSON := ""
	if raw, err := json.Marshal(meta); err == nil {
		metadataJSON = string(raw)
	}

	var evidenceID string
	for index := int(uploadedBytes / chunker.size()); index < totalChunks; index++ {
		data, err := chunker.ReadChunk(file, index, size)
		if err != nil {
			q.finishItem(id, "", err)
			return
		}

		ack, err := q.client.sendChunkWithRetry(ctx, chunkRequest{
			uploadID:    uploadID,
			chunkIndex:  index,
			totalChunks: totalChunks,
			fileName:    fileName,
			metadata:    metadataJSON,
			data:        data,
		}, q.opts.MaxChunkRetries, q.opts.BaseDelay)
		if err != nil {
			q.finishItem(id, "", err)
			return
		}

		uploadID = ack.UploadID
		offset, length, _ := chunker.Range(index, size)
		uploadedBytes = offset + length
		evidenceID = ack.EvidenceID

		q.mu.Lock()
		if it, ok := q.items[id]; ok {
			it.uploadID = uploadID
			it.uploadedBytes = uploadedBytes
			it.size = size
			it.updatedAt = time.Now()
			snap = it.snapshot()
			q.persistLocked()
		}
		q.mu.Unlock()
		q.emit(snap)
	}

	q.finishItem(id, evidenceID, nil)
}

// finishItem settles an item after its transfer goroutine ends and frees the
// slot for the next queued item.
func (q *Queue) finishItem(id, evidenceID string, err error) {
	q.mu.Lock()
	q.active--

	it, ok := q.items[id]
	if !ok {
		q.dispatchLocked()
		q.mu.Unlock()
		return
	}
	it.cancel = nil
	it.updatedAt = time.Now()

	switch {
	case err == nil:
		it.status = StatusCompleted
		it.evidenceID = evidenceID
		it.lastError = ""

	case errors.Is(err, ErrCancelled):
		// Pause, Cancel, or Close set the target status before cancelling;
		// a close-interrupted item goes back to queued for the next run.
		if it.status == StatusUploading {
			it.status = StatusQueued
		}

	case errors.Is(err, ErrSessionNotFound):
		// Server forgot the session (expiry, restart with a wiped database).
		// Accumulated progress is meaningless; restart from chunk 0.
		it.uploadID = ""
		it.uploadedBytes = 0
		it.lastError = err.Error()
		if it.retryCount < q.opts.MaxItemRetries {
			it.retryCount++
			it.status = StatusQueued
		} else {
			it.status = StatusFailed
		}

	default:
		it.lastError = err.Error()
		if it.retryCount < q.opts.MaxItemRetries {
			it.retryCount++
			it.status = StatusQueued
		} else {
			it.status = StatusFailed
		}
	}

	snap := it.snapshot()
	q.persistLocked()
	q.dispatchLocked()
	q.mu.Unlock()

	q.emit(snap)
}

// persistLocked saves the current item set. Callers must hold the mutex.
func (q *Queue) persistLocked() {
	if q.opts.Store == nil {
		return
	}

	items := make([]ItemSnapshot, 0, len(q.order))
	for _, id := range q.order {
		items = append(items, q.items[id].snapshot())
	}
	// Persistence is best effort; the next state change retries
	q.opts.Store.Save(items)
}

// emit invokes the OnChange callback outside the queue mutex.
func (q *Queue) emit(snap ItemSnapshot) {
	if q.opts.OnChange != nil {
		q.opts.OnChange(snap)
	}
}
