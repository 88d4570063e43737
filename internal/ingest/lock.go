package ingest

import (
	"sync"
	"sync/atomic"
)

// IngestLock provides non-blocking lock semantics using atomic operations
type IngestLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IngestLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IngestLock) Release() {
	l.state.Store(0)
}

// RepoLocks hands out one IngestLock per repository so surfaces can refuse
// a second ingestion of a repository that is already being ingested.
type RepoLocks struct {
	mu    sync.Mutex
	locks map[string]*IngestLock
}

// NewRepoLocks creates an empty lock set
func NewRepoLocks() *RepoLocks {
	return &RepoLocks{locks: make(map[string]*IngestLock)}
}

func (r *RepoLocks) lock(repoID string) *IngestLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[repoID]
	if !ok {
		l = &IngestLock{}
		r.locks[repoID] = l
	}
	return l
}

// TryAcquire locks repoID without blocking
func (r *RepoLocks) TryAcquire(repoID string) bool {
	return r.lock(repoID).TryAcquire()
}

// Release unlocks repoID
func (r *RepoLocks) Release(repoID string) {
	r.lock(repoID).Release()
}
