// Package storage abstracts where assembled evidence artifacts live.
// Chunk staging always happens on local disk; only the final artifact goes
// through a Backend, so the server can keep artifacts on the filesystem or
// push them to S3 without handler changes.
package storage

import (
	"context"
	"io"
)

// Backend stores assembled artifacts.
type Backend interface {
	// Store writes data from the reader under the given name.
	// The size parameter is the expected artifact length.
	Store(ctx context.Context, name string, reader io.Reader, size int64) error

	// Retrieve returns a reader for a stored artifact.
	// The caller is responsible for closing the returned ReadCloser.
	Retrieve(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes a stored artifact.
	Delete(ctx context.Context, name string) error

	// Exists checks whether an artifact exists.
	Exists(ctx context.Context, name string) (bool, error)

	// Size returns the stored artifact length in bytes.
	Size(ctx context.Context, name string) (int64, error)
}

// Error wraps storage failures with operation context.
type Error struct {
	Op   string // Operation that failed (e.g., "Store", "Delete")
	Name string // Artifact name involved
	Err  error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return e.Op + " " + e.Name + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a storage Error.
func NewError(op, name string, err error) *Error {
	return &Error{Op: op, Name: name, Err: err}
}
