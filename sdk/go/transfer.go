package evidrop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"
)

// Retry defaults for chunk transfers.
const (
	// DefaultMaxChunkRetries is how many times a chunk is retried after its
	// first failed attempt.
	DefaultMaxChunkRetries = 5
	// DefaultBaseDelay is the base of the exponential backoff between
	// attempts: BaseDelay * 2^attempt.
	DefaultBaseDelay = 1 * time.Second
)

// chunkRequest carries everything needed to send one chunk.
type chunkRequest struct {
	uploadID    string // empty on the minting chunk
	chunkIndex  int
	totalChunks int
	fileName    string
	metadata    string // JSON blob, sent with every chunk, read at mint
	data        []byte
}

// sendChunk posts a single chunk and decodes the acknowledgment.
func (c *Client) sendChunk(ctx context.Context, req chunkRequest) (*ChunkAck, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if req.uploadID != "" {
		writer.WriteField("uploadId", req.uploadID)
	}
	writer.WriteField("chunkIndex", strconv.Itoa(req.chunkIndex))
	writer.WriteField("totalChunks", strconv.Itoa(req.totalChunks))
	if req.fileName != "" {
		writer.WriteField("fileName", req.fileName)
	}
	if req.metadata != "" {
		writer.WriteField("metadata", req.metadata)
	}

	part, err := writer.CreateFormFile("chunk", "blob")
	if err != nil {
		return nil, fmt.Errorf("creating chunk form: %w", err)
	}
	if _, err := part.Write(req.data); err != nil {
		return nil, fmt.Errorf("writing chunk: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing chunk writer: %w", err)
	}

	resp, err := c.request(ctx, http.MethodPost, "/api/upload/chunk", &buf, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}

	var ack ChunkAck
	if err := handleResponse(resp, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// sendChunkWithRetry sends one chunk, retrying transport and server faults
// with exponential backoff. Client-side cancellation surfaces ErrCancelled
// immediately and never consumes retry budget. 4xx responses are terminal:
// retrying a request the server already rejected as malformed cannot succeed.
func (c *Client) sendChunkWithRetry(ctx context.Context, req chunkRequest, maxRetries int, baseDelay time.Duration) (*ChunkAck, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxChunkRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}

		ack, err := c.sendChunk(ctx, req)
		if err == nil {
			return ack, nil
		}
		attempts++

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, ErrCancelled
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			if errors.Is(apiErr, ErrSessionNotFound) {
				return nil, fmt.Errorf("session %s: %w", req.uploadID, ErrSessionNotFound)
			}
			return nil, &TransferError{
				UploadID:   req.uploadID,
				ChunkIndex: req.chunkIndex,
				Attempts:   attempts,
				Err:        apiErr,
			}
		}

		lastErr = err

		if attempt == maxRetries {
			break
		}

		delay := baseDelay * (1 << attempt)
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		case <-time.After(delay):
		}
	}

	return nil, &TransferError{
		UploadID:   req.uploadID,
		ChunkIndex: req.chunkIndex,
		Attempts:   attempts,
		Err:        lastErr,
	}
}
