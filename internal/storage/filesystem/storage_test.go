package filesystem

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func TestStoreAndRetrieve(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	ctx := context.Background()

	content := []byte("evidence artifact body")
	if err := s.Store(ctx, "artifact-1", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	r, err := s.Retrieve(ctx, "artifact-1")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read artifact: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("retrieved content mismatch: got %q, want %q", got, content)
	}

	size, err := s.Size(ctx, "artifact-1")
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", size, len(content))
	}
}

func TestStoreSizeMismatch(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	err = s.Store(context.Background(), "short", strings.NewReader("abc"), 10)
	if err == nil {
		t.Fatal("expected error for size mismatch")
	}

	// Failed store must not leave the artifact behind
	exists, err := s.Exists(context.Background(), "short")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("artifact should not exist after failed store")
	}
}

func TestDeleteAndExists(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	ctx := context.Background()

	if err := s.Store(ctx, "doomed", strings.NewReader("x"), 1); err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	exists, err := s.Exists(ctx, "doomed")
	if err != nil || !exists {
		t.Fatalf("expected artifact to exist: exists=%v err=%v", exists, err)
	}

	if err := s.Delete(ctx, "doomed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err = s.Exists(ctx, "doomed")
	if err != nil || exists {
		t.Fatalf("expected artifact to be gone: exists=%v err=%v", exists, err)
	}

	// Deleting again is not an error
	if err := s.Delete(ctx, "doomed"); err != nil {
		t.Errorf("Delete of missing artifact should succeed, got %v", err)
	}
}
