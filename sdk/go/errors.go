package evidrop

import (
	"errors"
	"fmt"
)

// Standard errors returned by the SDK.
var (
	// ErrValidation indicates invalid input parameters.
	ErrValidation = errors.New("validation error")
	// ErrCancelled indicates the operation was cancelled by the caller.
	ErrCancelled = errors.New("upload cancelled")
	// ErrSessionNotFound indicates the server no longer knows the upload
	// session. The upload must restart from chunk 0.
	ErrSessionNotFound = errors.New("upload session not found")
	// ErrItemNotFound indicates the queue has no item with the given id.
	ErrItemNotFound = errors.New("queue item not found")
	// ErrQueueClosed indicates the queue has been closed.
	ErrQueueClosed = errors.New("queue closed")
)

// APIError represents an error response from the evidrop API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Code is the machine-readable error code from the response body.
	Code string
	// Message is the error message.
	Message string
	// Err is the underlying sentinel error, if the status maps to one.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ValidationError represents an input validation failure.
type ValidationError struct {
	// Field is the name of the invalid field.
	Field string
	// Message describes what's wrong.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap returns ErrValidation for errors.Is support.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// TransferError represents a chunk transfer failure after retries.
type TransferError struct {
	// UploadID is the upload session id, if one was established.
	UploadID string
	// ChunkIndex is the chunk that failed.
	ChunkIndex int
	// Attempts is how many attempts were made.
	Attempts int
	// Err is the last underlying error.
	Err error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	if e.UploadID != "" {
		return fmt.Sprintf("chunk %d failed after %d attempts (upload_id=%s): %v", e.ChunkIndex, e.Attempts, e.UploadID, e.Err)
	}
	return fmt.Sprintf("chunk %d failed after %d attempts: %v", e.ChunkIndex, e.Attempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// newAPIError creates an APIError from a decoded error response.
func newAPIError(statusCode int, code, message string) *APIError {
	err := &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}

	switch statusCode {
	case 400:
		err.Err = ErrValidation
	case 404:
		err.Err = ErrSessionNotFound
	}

	return err
}
