package persistence

import (
	"fmt"
	"sync"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/engine"
)

// Journal buffers notices of one run and writes them in batches.
type Journal struct {
	mu      sync.Mutex
	db      *DB
	runID   string
	buf     []engine.Notice
	written int
}

// NewJournal creates a journal for runID.
func NewJournal(db *DB, runID string) *Journal {
	return &Journal{db: db, runID: runID}
}

// RunID returns the journaled run.
func (j *Journal) RunID() string { return j.runID }

// Listen is an engine.Listener that buffers n.
func (j *Journal) Listen(n engine.Notice) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.buf = append(j.buf, n)
}

// Pending returns the number of buffered notices.
func (j *Journal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.buf)
}

// Written returns the number of notices flushed so far.
func (j *Journal) Written() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written
}

// Flush writes buffered notices in one transaction. On failure the buffer
// is kept for the next attempt.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.db.SaveNotices(j.runID, j.buf); err != nil {
		return fmt.Errorf("flush %d notices: %w", len(j.buf), err)
	}
	j.written += len(j.buf)
	j.buf = j.buf[:0]
	return nil
}

// Checkpoint flushes buffered notices and saves a snapshot of m.
func (j *Journal) Checkpoint(m *actor.Model) error {
	if err := j.Flush(); err != nil {
		return err
	}
	return j.db.SaveSnapshot(j.runID, m)
}
