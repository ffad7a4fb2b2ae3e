package cas

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifd/manifd"
)

func newTestStore(t *testing.T) *DiskStore {
	t.Helper()
	s, err := NewDiskStore(t.TempDir(), 16, 2, true)
	require.NoError(t, err)
	return s
}

func TestPutGetRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := []byte("# Engineering Manifest\n\nAlways leave the campsite cleaner.\n")
	digest, err := s.Put(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, manifd.NewDigest(data), digest)

	got, err := s.Get(ctx, digest)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPutIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := []byte("same bytes every time")
	first, err := s.Put(ctx, data)
	require.NoError(t, err)

	before := countObjects(t, s.basePath)
	second, err := s.Put(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, before, countObjects(t, s.basePath), "re-put must not grow storage")
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), manifd.NewDigest([]byte("never stored")))
	assert.ErrorIs(t, err, manifd.ErrNotFound)
}

func TestHasAndStat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	digest, err := s.Put(ctx, []byte("present"))
	require.NoError(t, err)

	ok, err := s.Has(ctx, digest)
	require.NoError(t, err)
	assert.True(t, ok)

	size, exists := s.Stat(digest)
	assert.True(t, exists)
	assert.Greater(t, size, int64(0))

	ok, err = s.Has(ctx, manifd.NewDigest([]byte("absent")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetDetectsDiskCorruption(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	digest, err := s.Put(ctx, []byte("pristine content"))
	require.NoError(t, err)
	s.cache = newObjectCache(0) // force the disk read

	require.NoError(t, os.WriteFile(s.objectPath(digest), []byte("vandalized"), 0644))

	_, err = s.Get(ctx, digest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match digest")
}

func TestGetMulti(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	contents := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	var digests []manifd.Digest
	for _, data := range contents {
		digest, err := s.Put(ctx, data)
		require.NoError(t, err)
		digests = append(digests, digest)
	}

	got, err := s.GetMulti(ctx, digests)
	require.NoError(t, err)
	require.Len(t, got, len(contents))
	for i, digest := range digests {
		assert.Equal(t, contents[i], got[digest])
	}

	_, err = s.GetMulti(ctx, []manifd.Digest{digests[0], manifd.NewDigest([]byte("missing"))})
	assert.ErrorIs(t, err, manifd.ErrNotFound)
}

func TestVerify(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	good, err := s.Put(ctx, []byte("kept intact"))
	require.NoError(t, err)
	bad, err := s.Put(ctx, []byte("about to rot"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.objectPath(bad), []byte("bitrot"), 0644))

	checked, corrupt, err := s.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, checked)
	require.Len(t, corrupt, 1)
	assert.Equal(t, bad, corrupt[0])
	assert.NotEqual(t, good, corrupt[0])
}

func countObjects(t *testing.T, basePath string) int {
	t.Helper()
	count := 0
	err := filepath.WalkDir(filepath.Join(basePath, "objects"), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}
