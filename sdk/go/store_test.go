package evidrop

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	store := NewFileStore(path)

	now := time.Now().Truncate(time.Second)
	items := []ItemSnapshot{
		{
			ID:            "item-1",
			Path:          "/data/clip.mp4",
			FileName:      "clip.mp4",
			Metadata:      Metadata{Title: "clip", Tags: []string{"cam-3"}},
			Status:        StatusUploading,
			UploadID:      "session-1",
			Size:          1 << 20,
			UploadedBytes: 512 << 10,
			RetryCount:    1,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		{
			ID:       "item-2",
			FileName: "doc.pdf",
			Status:   StatusCompleted,
			Size:     2048,
		},
	}

	if err := store.Save(items); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d items, want 2", len(loaded))
	}

	got := loaded[0]
	if got.ID != "item-1" || got.UploadID != "session-1" || got.UploadedBytes != 512<<10 {
		t.Errorf("item-1 state mismatch: %+v", got)
	}
	if got.Metadata.Title != "clip" || len(got.Metadata.Tags) != 1 {
		t.Errorf("item-1 metadata mismatch: %+v", got.Metadata)
	}
	if got.RetryCount != 1 {
		t.Errorf("retryCount = %d, want 1", got.RetryCount)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope.json"))

	items, err := store.Load()
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty set, got %d items", len(items))
	}
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	store := NewFileStore(path)
	items, err := store.Load()
	if err != nil {
		t.Fatalf("Load of corrupt file failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty set from corrupt file, got %d items", len(items))
	}
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	store := NewFileStore(path)

	if err := store.Save([]ItemSnapshot{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := store.Save([]ItemSnapshot{{ID: "c"}}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	items, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != "c" {
		t.Errorf("expected single item c, got %+v", items)
	}
}
