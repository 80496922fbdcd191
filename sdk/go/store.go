package evidrop

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists queue item state across process restarts.
// Implementations persist metadata and progress only, never file content:
// the source bytes are re-read from the original file on resume.
type Store interface {
	// Save replaces the persisted item set.
	Save(items []ItemSnapshot) error

	// Load returns the persisted item set. A missing or unreadable store
	// yields an empty set, not an error; queue state is recoverable by
	// re-enqueueing, so a corrupt file must not brick the client.
	Load() ([]ItemSnapshot, error)
}

// FileStore persists queue state as a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// storeFile is the on-disk layout, versioned for forward compatibility.
type storeFile struct {
	Version int            `json:"version"`
	Items   []ItemSnapshot `json:"items"`
}

// Save writes the item set atomically via a temp file and rename.
func (fs *FileStore) Save(items []ItemSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(fs.path), 0755); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}

	data, err := json.MarshalIndent(storeFile{Version: 1, Items: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding queue state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), ".queue-*")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing queue state: %w", err)
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing store file: %w", err)
	}

	return nil
}

// Load reads the persisted item set. Missing and corrupt files both yield an
// empty set.
func (fs *FileStore) Load() ([]ItemSnapshot, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nil
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil
	}

	return f.Items, nil
}
