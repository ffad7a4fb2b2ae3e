package cas

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/manifd/manifd"
	"github.com/manifd/manifd/internal/compression"
)

// DefaultConcurrency bounds parallel object reads in GetMulti and Verify.
const DefaultConcurrency = 8

// DiskStore implements Store on the local filesystem.
//
// Storage layout:
//
//	basePath/
//	  objects/
//	    ab/cd123...  (zstd-compressed, content-addressed)
type DiskStore struct {
	basePath    string
	codec       *compression.Codec
	cache       *objectCache
	concurrency int
}

func NewDiskStore(basePath string, cacheSize, compressionLevel int, compressionEnabled bool) (*DiskStore, error) {
	objectsDir := filepath.Join(basePath, "objects")
	if err := os.MkdirAll(objectsDir, 0755); err != nil {
		return nil, fmt.Errorf("create objects dir %s: %w", objectsDir, err)
	}

	codec, err := compression.NewCodec(compressionLevel, compressionEnabled)
	if err != nil {
		return nil, fmt.Errorf("create codec: %w", err)
	}

	return &DiskStore{
		basePath:    basePath,
		codec:       codec,
		cache:       newObjectCache(cacheSize),
		concurrency: DefaultConcurrency,
	}, nil
}

// SetConcurrency overrides the parallelism of batch operations.
func (s *DiskStore) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// Get retrieves an object by digest and verifies it against the digest.
func (s *DiskStore) Get(ctx context.Context, digest manifd.Digest) ([]byte, error) {
	if data, ok := s.cache.get(digest); ok {
		return data, nil
	}

	compressed, err := os.ReadFile(s.objectPath(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s: %w", digest, manifd.ErrNotFound)
		}
		return nil, fmt.Errorf("read object %s: %w", digest, err)
	}

	data := s.codec.Decompress(compressed)
	if !digest.Matches(data) {
		return nil, fmt.Errorf("object %s: stored content does not match digest", digest)
	}

	s.cache.add(digest, data)
	return data, nil
}

// Put stores an object and returns its digest. Re-putting identical bytes
// performs no duplicate write.
func (s *DiskStore) Put(ctx context.Context, data []byte) (manifd.Digest, error) {
	digest := manifd.NewDigest(data)

	path := s.objectPath(digest)
	if _, err := os.Stat(path); err == nil {
		return digest, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create object dir: %w", err)
	}
	if err := os.WriteFile(path, s.codec.Compress(data), 0644); err != nil {
		return "", fmt.Errorf("write object %s: %w", digest, err)
	}

	s.cache.add(digest, data)
	return digest, nil
}

// Has checks if an object exists.
func (s *DiskStore) Has(ctx context.Context, digest manifd.Digest) (bool, error) {
	if s.cache.has(digest) {
		return true, nil
	}

	_, err := os.Stat(s.objectPath(digest))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Stat returns the on-disk size of an object.
func (s *DiskStore) Stat(digest manifd.Digest) (int64, bool) {
	info, err := os.Stat(s.objectPath(digest))
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

// GetMulti retrieves multiple objects with bounded parallelism.
func (s *DiskStore) GetMulti(ctx context.Context, digests []manifd.Digest) (map[manifd.Digest][]byte, error) {
	var mu sync.Mutex
	result := make(map[manifd.Digest][]byte, len(digests))

	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.concurrency)
	for _, digest := range digests {
		p.Go(func(ctx context.Context) error {
			data, err := s.Get(ctx, digest)
			if err != nil {
				return err
			}
			mu.Lock()
			result[digest] = data
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Verify re-hashes every stored object in parallel. Corrupt objects are
// reported, not removed.
func (s *DiskStore) Verify(ctx context.Context) (int, []manifd.Digest, error) {
	digests, err := s.list()
	if err != nil {
		return 0, nil, err
	}

	var mu sync.Mutex
	var corrupt []manifd.Digest

	p := pool.New().WithContext(ctx).WithMaxGoroutines(s.concurrency)
	for _, digest := range digests {
		p.Go(func(ctx context.Context) error {
			// Bypass the cache: the point is to check the disk copy.
			compressed, err := os.ReadFile(s.objectPath(digest))
			if err != nil {
				return fmt.Errorf("read object %s: %w", digest, err)
			}
			if !digest.Matches(s.codec.Decompress(compressed)) {
				mu.Lock()
				corrupt = append(corrupt, digest)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return 0, nil, err
	}
	return len(digests), corrupt, nil
}

// list walks the sharded objects directory and reconstructs digests.
func (s *DiskStore) list() ([]manifd.Digest, error) {
	objectsDir := filepath.Join(s.basePath, "objects")
	shards, err := os.ReadDir(objectsDir)
	if err != nil {
		return nil, fmt.Errorf("read objects dir: %w", err)
	}

	var digests []manifd.Digest
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		entries, err := os.ReadDir(filepath.Join(objectsDir, shard.Name()))
		if err != nil {
			return nil, fmt.Errorf("read shard %s: %w", shard.Name(), err)
		}
		for _, entry := range entries {
			digest, err := manifd.ParseDigest("sha256:" + shard.Name() + entry.Name())
			if err != nil {
				continue // not an object file
			}
			digests = append(digests, digest)
		}
	}
	return digests, nil
}

// objectPath returns the filesystem path for a digest.
// Git-style sharding: objects/ab/cd123...
func (s *DiskStore) objectPath(digest manifd.Digest) string {
	hash := digest.Hex()
	if len(hash) < 2 {
		return filepath.Join(s.basePath, "objects", hash)
	}
	return filepath.Join(s.basePath, "objects", hash[:2], hash[2:])
}
