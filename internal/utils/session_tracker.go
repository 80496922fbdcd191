package utils

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SessionTracker tracks in-flight chunk writes and assemblies so shutdown can
// drain them instead of dropping work mid-write.
type SessionTracker struct {
	mu           sync.Mutex
	inFlight     map[string]int // chunk requests per upload id
	wg           sync.WaitGroup
	shuttingDown atomic.Bool
}

// NewSessionTracker creates a new SessionTracker.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		inFlight: make(map[string]int),
	}
}

// Begin registers an in-flight operation for an upload session.
// Returns false if the server is shutting down and new work is rejected.
func (st *SessionTracker) Begin(uploadID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	// Checked under the lock so a concurrent Drain cannot slip between the
	// shutdown test and the Add.
	if st.shuttingDown.Load() {
		return false
	}

	st.inFlight[uploadID]++
	st.wg.Add(1)
	return true
}

// End marks an in-flight operation as finished.
func (st *SessionTracker) End(uploadID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.inFlight[uploadID] <= 0 {
		slog.Warn("session tracker: End without matching Begin", "upload_id", uploadID)
		return
	}

	st.inFlight[uploadID]--
	if st.inFlight[uploadID] == 0 {
		delete(st.inFlight, uploadID)
	}
	st.wg.Done()
}

// ActiveCount returns the number of in-flight operations.
func (st *SessionTracker) ActiveCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for _, c := range st.inFlight {
		n += c
	}
	return n
}

// ShuttingDown reports whether Drain has been called.
func (st *SessionTracker) ShuttingDown() bool {
	return st.shuttingDown.Load()
}

// Drain rejects new work and waits for in-flight operations to finish.
// Returns false if the timeout elapsed first.
func (st *SessionTracker) Drain(timeout time.Duration) bool {
	if st.shuttingDown.CompareAndSwap(false, true) {
		slog.Info("session tracker: shutdown initiated, rejecting new chunks",
			"in_flight", st.ActiveCount(),
		)
	}

	done := make(chan struct{})
	go func() {
		st.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("session tracker: all in-flight work drained")
		return true
	case <-time.After(timeout):
		slog.Warn("session tracker: timeout waiting for in-flight work",
			"remaining", st.ActiveCount(),
		)
		return false
	}
}
