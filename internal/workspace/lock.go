package workspace

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// storeLock is a mutex whose acquisition can be abandoned when a request's
// context ends, so a slow save does not pin waiting handlers.
type storeLock struct {
	sem *semaphore.Weighted
}

func newStoreLock() storeLock {
	return storeLock{sem: semaphore.NewWeighted(1)}
}

func (l storeLock) Lock() {
	_ = l.sem.Acquire(context.Background(), 1)
}

func (l storeLock) LockContext(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l storeLock) Unlock() {
	l.sem.Release(1)
}
