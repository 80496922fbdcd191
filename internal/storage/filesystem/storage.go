// Package filesystem implements artifact storage on the local filesystem.
package filesystem

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/evidrop/evidrop/internal/storage"
)

// Storage stores artifacts as plain files under a root directory.
type Storage struct {
	root string
}

// New creates a filesystem backend rooted at dir, creating it if needed.
func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Storage{root: dir}, nil
}

func (s *Storage) path(name string) string {
	// Names are server-generated UUIDs; Base guards against a future caller
	// passing anything path-like.
	return filepath.Join(s.root, filepath.Base(name))
}

// Store writes the artifact via a temp file and rename so a crash mid-write
// never leaves a truncated artifact under its final name.
func (s *Storage) Store(ctx context.Context, name string, reader io.Reader, size int64) error {
	tmp, err := os.CreateTemp(s.root, ".store-*")
	if err != nil {
		return storage.NewError("Store", name, err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return storage.NewError("Store", name, err)
	}

	if written != size {
		os.Remove(tmpName)
		return storage.NewError("Store", name, fmt.Errorf("size mismatch: wrote %d, expected %d", written, size))
	}

	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return storage.NewError("Store", name, err)
	}

	return nil
}

// Retrieve opens a stored artifact for reading.
func (s *Storage) Retrieve(ctx context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(name))
	if err != nil {
		return nil, storage.NewError("Retrieve", name, err)
	}
	return f, nil
}

// Delete removes a stored artifact. Deleting a missing artifact is not an error.
func (s *Storage) Delete(ctx context.Context, name string) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return storage.NewError("Delete", name, err)
	}
	return nil
}

// Exists checks whether an artifact exists.
func (s *Storage) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, storage.NewError("Exists", name, err)
	}
	return true, nil
}

// Size returns the stored artifact length.
func (s *Storage) Size(ctx context.Context, name string) (int64, error) {
	info, err := os.Stat(s.path(name))
	if err != nil {
		return 0, storage.NewError("Size", name, err)
	}
	return info.Size(), nil
}
