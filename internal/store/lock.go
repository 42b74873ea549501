package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// processLocks serializes writers inside one process; flock only excludes
// other processes on some platforms.
var processLocks sync.Map // lock path -> *sync.Mutex

// WriterLock is the single-writer lock for a corpus. Readers never take it.
type WriterLock struct {
	path  string
	mu    *sync.Mutex
	flock *flock.Flock
}

// NewWriterLock returns an unlocked writer lock for the layout.
func NewWriterLock(layout Layout) *WriterLock {
	path := layout.LockFile()
	mu, _ := processLocks.LoadOrStore(path, &sync.Mutex{})
	return &WriterLock{
		path:  path,
		mu:    mu.(*sync.Mutex),
		flock: flock.New(path),
	}
}

// TryLock acquires the lock without blocking. It returns ErrLocked when
// another writer in this or another process holds it.
func (l *WriterLock) TryLock() error {
	if !l.mu.TryLock() {
		return ErrLocked
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	ok, err := l.flock.TryLock()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to acquire writer lock: %w", err)
	}
	if !ok {
		l.mu.Unlock()
		return ErrLocked
	}
	return nil
}

// Unlock releases the lock.
func (l *WriterLock) Unlock() error {
	defer l.mu.Unlock()
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release writer lock: %w", err)
	}
	return nil
}
