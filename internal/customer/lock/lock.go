// Package lock serializes registry-mutating operations. Sync, issuance, and
// the destructive admin actions share one exclusive lock so a concurrent
// rebuild can never interleave with another writer.
package lock

import (
	"fmt"

	"golang.org/x/sync/semaphore"

	"reengage/pkg/platform/sentinel"
)

// RegistryLock is a process-wide exclusive lock over the registry table.
// Acquisition never blocks: a second writer is rejected immediately so an
// administrator gets a clear conflict instead of a queued destructive run.
type RegistryLock struct {
	sem *semaphore.Weighted
}

func New() *RegistryLock {
	return &RegistryLock{sem: semaphore.NewWeighted(1)}
}

// TryAcquire takes the lock or reports sentinel.ErrConflict.
func (l *RegistryLock) TryAcquire(operation string) error {
	if !l.sem.TryAcquire(1) {
		return fmt.Errorf("%s: registry operation already running: %w", operation, sentinel.ErrConflict)
	}
	return nil
}

// Release returns the lock. Callers must hold it.
func (l *RegistryLock) Release() {
	l.sem.Release(1)
}
