package handlers

import (
	"bytes"
	"testing"
	"time"

	"github.com/evidrop/evidrop/internal/database"
	"github.com/evidrop/evidrop/internal/testutil"
	"github.com/evidrop/evidrop/internal/utils"
)

func TestSweepExpiredSessions(t *testing.T) {
	env := newTestEnv(t)

	// Stale session with a staged chunk
	_, stale := env.sendChunk(t, bytes.Repeat([]byte("s"), 1024), map[string]string{
		"chunkIndex":  "0",
		"totalChunks": "3",
		"fileName":    "stale.bin",
	})
	if stale == nil {
		t.Fatal("stale session chunk rejected")
	}

	// Fresh session that must survive the sweep
	_, fresh := env.sendChunk(t, bytes.Repeat([]byte("f"), 1024), map[string]string{
		"chunkIndex":  "0",
		"totalChunks": "3",
		"fileName":    "fresh.bin",
	})
	if fresh == nil {
		t.Fatal("fresh session chunk rejected")
	}

	// Backdate the stale session past the expiry window
	staleTime := time.Now().Add(-time.Duration(env.cfg.SessionExpiryHours+1) * time.Hour).UTC()
	_, err := env.db.Exec(
		`UPDATE upload_sessions SET last_activity = ? WHERE upload_id = ?`,
		staleTime.Format("2006-01-02 15:04:05"), stale.UploadID,
	)
	testutil.AssertNoError(t, err)

	removed := SweepExpiredSessions(env.db, env.cfg)
	testutil.AssertEqual(t, removed, 1)

	session, err := database.GetSession(env.db, stale.UploadID)
	testutil.AssertNoError(t, err)
	if session != nil {
		t.Error("stale session should be deleted")
	}

	exists, _, err := utils.ChunkExists(env.cfg.UploadDir, stale.UploadID, 0)
	testutil.AssertNoError(t, err)
	if exists {
		t.Error("stale session chunks should be deleted")
	}

	session, err = database.GetSession(env.db, fresh.UploadID)
	testutil.AssertNoError(t, err)
	if session == nil {
		t.Error("fresh session should survive the sweep")
	}
}

func TestSweepLeavesCompletedSessions(t *testing.T) {
	env := newTestEnv(t)

	final := env.uploadAll(t, bytes.Repeat([]byte("k"), 2000), 1024)

	// Even an old completed session is kept; it is the durable upload record
	staleTime := time.Now().Add(-time.Duration(env.cfg.SessionExpiryHours+1) * time.Hour).UTC()
	_, err := env.db.Exec(
		`UPDATE upload_sessions SET last_activity = ? WHERE upload_id = ?`,
		staleTime.Format("2006-01-02 15:04:05"), final.UploadID,
	)
	testutil.AssertNoError(t, err)

	removed := SweepExpiredSessions(env.db, env.cfg)
	testutil.AssertEqual(t, removed, 0)

	session, err := database.GetSession(env.db, final.UploadID)
	testutil.AssertNoError(t, err)
	if session == nil {
		t.Error("completed session should not be swept")
	}
}
