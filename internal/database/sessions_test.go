package database

import (
	"database/sql"
	"testing"
	"time"

	"github.com/evidrop/evidrop/internal/models"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Each pooled connection gets its own :memory: database
	db.SetMaxOpenConns(1)

	if err := RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestSession(uploadID string, totalChunks int) *models.UploadSession {
	now := time.Now()
	return &models.UploadSession{
		UploadID:     uploadID,
		FileName:     "report.mp4",
		Metadata:     `{"title":"site visit"}`,
		ChunkSize:    5 * 1024 * 1024,
		TotalChunks:  totalChunks,
		Status:       models.SessionUploading,
		CreatedAt:    now,
		LastActivity: now,
	}
}

func TestCreateAndGetSession(t *testing.T) {
	db := setupDB(t)

	if err := CreateSession(db, newTestSession("sess-1", 3)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := GetSession(db, "sess-1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.FileName != "report.mp4" {
		t.Errorf("FileName = %q, want %q", got.FileName, "report.mp4")
	}
	if got.TotalChunks != 3 {
		t.Errorf("TotalChunks = %d, want 3", got.TotalChunks)
	}
	if got.Status != models.SessionUploading {
		t.Errorf("Status = %q, want %q", got.Status, models.SessionUploading)
	}
	if got.CompletedAt != nil {
		t.Error("CompletedAt should be nil for a fresh session")
	}
}

func TestGetSessionNotFound(t *testing.T) {
	db := setupDB(t)

	got, err := GetSession(db, "no-such-session")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil session, got %+v", got)
	}
}

func TestRecordChunkIsIdempotent(t *testing.T) {
	db := setupDB(t)

	if err := CreateSession(db, newTestSession("sess-2", 3)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	added, err := RecordChunk(db, "sess-2", 0, 1024)
	if err != nil {
		t.Fatalf("RecordChunk failed: %v", err)
	}
	if !added {
		t.Error("first RecordChunk should report added=true")
	}

	// Duplicate resend of the same index must not grow the set
	added, err = RecordChunk(db, "sess-2", 0, 1024)
	if err != nil {
		t.Fatalf("RecordChunk (duplicate) failed: %v", err)
	}
	if added {
		t.Error("duplicate RecordChunk should report added=false")
	}

	count, err := CountReceivedChunks(db, "sess-2")
	if err != nil {
		t.Fatalf("CountReceivedChunks failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 (duplicates must not count)", count)
	}
}

func TestGetReceivedChunkIndices(t *testing.T) {
	db := setupDB(t)

	if err := CreateSession(db, newTestSession("sess-3", 5)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	for _, idx := range []int{4, 0, 2} {
		if _, err := RecordChunk(db, "sess-3", idx, 100); err != nil {
			t.Fatalf("RecordChunk(%d) failed: %v", idx, err)
		}
	}

	indices, err := GetReceivedChunkIndices(db, "sess-3")
	if err != nil {
		t.Fatalf("GetReceivedChunkIndices failed: %v", err)
	}

	want := []int{0, 2, 4}
	if len(indices) != len(want) {
		t.Fatalf("indices = %v, want %v", indices, want)
	}
	for i := range want {
		if indices[i] != want[i] {
			t.Errorf("indices[%d] = %d, want %d", i, indices[i], want[i])
		}
	}
}

func TestTryLockForAssembly(t *testing.T) {
	db := setupDB(t)

	if err := CreateSession(db, newTestSession("sess-4", 1)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	locked, err := TryLockForAssembly(db, "sess-4")
	if err != nil {
		t.Fatalf("TryLockForAssembly failed: %v", err)
	}
	if !locked {
		t.Fatal("first lock attempt should succeed")
	}

	// Second concurrent trigger must lose the race
	locked, err = TryLockForAssembly(db, "sess-4")
	if err != nil {
		t.Fatalf("TryLockForAssembly (second) failed: %v", err)
	}
	if locked {
		t.Error("second lock attempt should fail while assembling")
	}

	// Assembly failure reverts to uploading so the lock can be retaken
	if err := UnlockAssembly(db, "sess-4"); err != nil {
		t.Fatalf("UnlockAssembly failed: %v", err)
	}

	locked, err = TryLockForAssembly(db, "sess-4")
	if err != nil {
		t.Fatalf("TryLockForAssembly (after unlock) failed: %v", err)
	}
	if !locked {
		t.Error("lock should be available again after UnlockAssembly")
	}
}

func TestMarkSessionCompleted(t *testing.T) {
	db := setupDB(t)

	if err := CreateSession(db, newTestSession("sess-5", 1)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := MarkSessionCompleted(db, "sess-5", "ev-123"); err != nil {
		t.Fatalf("MarkSessionCompleted failed: %v", err)
	}

	got, err := GetSession(db, "sess-5")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != models.SessionCompleted {
		t.Errorf("Status = %q, want %q", got.Status, models.SessionCompleted)
	}
	if got.EvidenceID == nil || *got.EvidenceID != "ev-123" {
		t.Errorf("EvidenceID = %v, want ev-123", got.EvidenceID)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
}

func TestDeleteSession(t *testing.T) {
	db := setupDB(t)

	if err := CreateSession(db, newTestSession("sess-6", 2)); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := RecordChunk(db, "sess-6", 0, 10); err != nil {
		t.Fatalf("RecordChunk failed: %v", err)
	}

	if err := DeleteSession(db, "sess-6"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	got, err := GetSession(db, "sess-6")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got != nil {
		t.Error("session should be gone after delete")
	}

	count, err := CountReceivedChunks(db, "sess-6")
	if err != nil {
		t.Fatalf("CountReceivedChunks failed: %v", err)
	}
	if count != 0 {
		t.Errorf("chunk set should be empty after delete, got %d", count)
	}
}

func TestGetExpiredSessions(t *testing.T) {
	db := setupDB(t)

	stale := newTestSession("sess-stale", 2)
	stale.CreatedAt = time.Now().Add(-48 * time.Hour)
	stale.LastActivity = time.Now().Add(-48 * time.Hour)
	if err := CreateSession(db, stale); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	fresh := newTestSession("sess-fresh", 2)
	if err := CreateSession(db, fresh); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	expired, err := GetExpiredSessions(db, 24)
	if err != nil {
		t.Fatalf("GetExpiredSessions failed: %v", err)
	}

	if len(expired) != 1 {
		t.Fatalf("expired count = %d, want 1", len(expired))
	}
	if expired[0].UploadID != "sess-stale" {
		t.Errorf("expired session = %q, want sess-stale", expired[0].UploadID)
	}
}

func TestCreateAndGetEvidence(t *testing.T) {
	db := setupDB(t)

	ev := &models.Evidence{
		ID:             "ev-1",
		OriginalName:   "inspection.jpg",
		StoredFilename: "abc123.jpg",
		Size:           2048,
		MimeType:       "image/jpeg",
		Metadata:       `{"tags":["roof","damage"]}`,
		CreatedAt:      time.Now(),
	}

	if err := CreateEvidence(db, ev); err != nil {
		t.Fatalf("CreateEvidence failed: %v", err)
	}

	got, err := GetEvidence(db, "ev-1")
	if err != nil {
		t.Fatalf("GetEvidence failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected evidence record, got nil")
	}
	if got.OriginalName != "inspection.jpg" || got.Size != 2048 {
		t.Errorf("unexpected record: %+v", got)
	}

	missing, err := GetEvidence(db, "ev-none")
	if err != nil {
		t.Fatalf("GetEvidence failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown evidence id")
	}
}
