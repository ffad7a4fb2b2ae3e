// Package cas implements durable content-addressed storage for manifest
// revisions.
//
// Objects are keyed by the sha256 digest of their uncompressed bytes and
// laid out git-style under objects/ab/cdef... . Writes are idempotent:
// re-putting identical bytes is a no-op. Reads verify the stored bytes
// against the digest, so on-disk corruption is detected rather than served.
package cas

import (
	"context"

	"github.com/manifd/manifd"
)

// Store handles content-addressed manifest storage.
type Store interface {
	// Get retrieves an object by digest.
	Get(ctx context.Context, digest manifd.Digest) ([]byte, error)

	// Put stores an object and returns its digest. Idempotent.
	Put(ctx context.Context, data []byte) (manifd.Digest, error)

	// Has checks if an object exists.
	Has(ctx context.Context, digest manifd.Digest) (bool, error)

	// Stat returns the on-disk (compressed) size of an object.
	Stat(digest manifd.Digest) (size int64, exists bool)

	// GetMulti retrieves multiple objects in parallel.
	GetMulti(ctx context.Context, digests []manifd.Digest) (map[manifd.Digest][]byte, error)

	// Verify re-hashes every stored object and returns the digests whose
	// content no longer matches.
	Verify(ctx context.Context) (checked int, corrupt []manifd.Digest, err error)
}
