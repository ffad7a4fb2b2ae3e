// Package lockfile provides the consumer-scoped exclusion lock that keeps
// two hook invocations from syncing the same replica at once.
//
// Acquisition is non-blocking: a held lock fails immediately with
// ErrLocked so the caller can report contention instead of queueing
// behind another sync.
package lockfile

import "io"

// Acquire takes an exclusive, non-blocking lock on name, creating the
// file if needed. Close releases the lock. If the lock is held by
// another process, Acquire fails with manifd.ErrLocked.
func Acquire(name string) (io.Closer, error) {
	return acquire(name)
}
