package chat

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// threadLocks serializes work per conversation. Entries are dropped once no
// caller holds or waits for them.
type threadLocks struct {
	mu    sync.Mutex
	locks map[string]*threadLock
}

type threadLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newThreadLocks() *threadLocks {
	return &threadLocks{locks: make(map[string]*threadLock)}
}

// acquire blocks until the thread is free or ctx is done. The returned
// function releases the lock.
func (l *threadLocks) acquire(ctx context.Context, threadID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[threadID]
	if !ok {
		lock = &threadLock{sem: semaphore.NewWeighted(1)}
		l.locks[threadID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		l.unref(threadID, lock)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.sem.Release(1)
			l.unref(threadID, lock)
		})
	}, nil
}

func (l *threadLocks) unref(threadID string, lock *threadLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, threadID)
	}
}

func (l *threadLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
