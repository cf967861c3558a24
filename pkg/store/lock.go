package store

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// ReaderLock proves shared access to a TripleStore. It is obtained from
// AcquireReaderLock and must be released exactly once; further Release
// calls are no-ops.
type ReaderLock struct {
	store    *TripleStore
	released atomic.Bool
}

// WriterLock proves exclusive access to a TripleStore
type WriterLock struct {
	store    *TripleStore
	released atomic.Bool
}

// AcquireReaderLock blocks until no writer holds the store
func (s *TripleStore) AcquireReaderLock() *ReaderLock {
	s.mu.RLock()
	return &ReaderLock{store: s}
}

// AcquireWriterLock blocks until the store is free of readers and writers
func (s *TripleStore) AcquireWriterLock() *WriterLock {
	s.mu.Lock()
	return &WriterLock{store: s}
}

// Release gives up the lock
func (l *ReaderLock) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.store.mu.RUnlock()
	}
}

// Release gives up the lock
func (l *WriterLock) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.store.mu.Unlock()
	}
}

// Misuse of a token is a bug in the caller, not a runtime condition, so it
// panics instead of returning an error.

func (s *TripleStore) mustHoldReader(rl *ReaderLock) {
	switch {
	case rl == nil:
		panic(errors.AssertionFailedf("nil reader lock"))
	case rl.store != s:
		panic(errors.AssertionFailedf("reader lock belongs to a different store"))
	case rl.released.Load():
		panic(errors.AssertionFailedf("reader lock used after release"))
	}
}

func (s *TripleStore) mustHoldWriter(wl *WriterLock) {
	switch {
	case wl == nil:
		panic(errors.AssertionFailedf("nil writer lock"))
	case wl.store != s:
		panic(errors.AssertionFailedf("writer lock belongs to a different store"))
	case wl.released.Load():
		panic(errors.AssertionFailedf("writer lock used after release"))
	}
}
