package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/evidrop/evidrop/internal/models"
	"github.com/evidrop/evidrop/internal/testutil"
)

func getStatus(t *testing.T, env *testEnv, uploadID string) (*httptest.ResponseRecorder, *models.SessionStatusResponse) {
	t.Helper()

	handler := UploadStatusHandler(env.db)
	req := httptest.NewRequest(http.MethodGet, "/api/upload/status/"+uploadID, nil)
	rr := httptest.NewRecorder()
	handler(rr, req)

	if rr.Code != http.StatusOK {
		return rr, nil
	}

	var resp models.SessionStatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode status response: %v", err)
	}
	return rr, &resp
}

func TestStatusUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	rr, _ := getStatus(t, env, uuid.New().String())
	testutil.AssertStatusCode(t, rr, http.StatusNotFound)
}

func TestStatusInvalidID(t *testing.T) {
	env := newTestEnv(t)

	rr, _ := getStatus(t, env, "not-a-uuid")
	testutil.AssertStatusCode(t, rr, http.StatusBadRequest)
}

func TestStatusPartialUpload(t *testing.T) {
	env := newTestEnv(t)

	_, first := env.sendChunk(t, bytes.Repeat([]byte("a"), 1024), map[string]string{
		"chunkIndex":  "0",
		"totalChunks": "4",
		"fileName":    "partial.bin",
	})
	if first == nil {
		t.Fatal("first chunk rejected")
	}

	_, status := getStatus(t, env, first.UploadID)
	if status == nil {
		t.Fatal("expected 200 status response")
	}

	testutil.AssertEqual(t, status.UploadID, first.UploadID)
	testutil.AssertEqual(t, status.Status, models.SessionUploading)
	testutil.AssertEqual(t, status.ReceivedChunks, 1)
	testutil.AssertEqual(t, status.TotalChunks, 4)
	testutil.AssertEqual(t, status.Progress, 25)
	if status.CompletedAt != nil {
		t.Error("completedAt should be null for a partial upload")
	}
}

func TestStatusCompletedUpload(t *testing.T) {
	env := newTestEnv(t)

	final := env.uploadAll(t, bytes.Repeat([]byte("b"), 3000), 1024)

	_, status := getStatus(t, env, final.UploadID)
	if status == nil {
		t.Fatal("expected 200 status response")
	}

	testutil.AssertEqual(t, status.Status, models.SessionCompleted)
	testutil.AssertEqual(t, status.Progress, 100)
	if status.CompletedAt == nil {
		t.Error("completedAt should be set for a completed upload")
	}
}
