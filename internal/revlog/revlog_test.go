package revlog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifd/manifd"
)

func digestFor(s string) manifd.Digest {
	return manifd.NewDigest([]byte(s))
}

func TestAppendAndRead(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	at := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seq, err := l.Append(digestFor("v1"), "alice", at)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	rev, err := l.Read(1)
	require.NoError(t, err)
	assert.Equal(t, digestFor("v1"), rev.Digest)
	assert.Equal(t, "alice", rev.Author)
	assert.Equal(t, at, rev.CreatedAt)

	assert.Equal(t, uint64(1), l.Head())

	_, err = l.Read(0)
	assert.ErrorIs(t, err, manifd.ErrNotFound)
	_, err = l.Read(2)
	assert.ErrorIs(t, err, manifd.ErrNotFound)
}

func TestLatestEmpty(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, uint64(0), l.Head())
	_, err = l.Latest()
	assert.ErrorIs(t, err, manifd.ErrNotFound)
}

func TestConcurrentAppendsAreLinearizable(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	const writers = 16

	var mu sync.Mutex
	var wg sync.WaitGroup
	claimed := make(map[uint64]int)
	errs := make(chan error, writers)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A single call must succeed: concurrent appenders queue for
			// the lock, they do not conflict.
			seq, err := l.Append(digestFor("content"), "writer", time.Now())
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			claimed[seq]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Contiguous, strictly increasing, no number handed out twice.
	require.Len(t, claimed, writers)
	for seq := uint64(1); seq <= writers; seq++ {
		assert.Equal(t, 1, claimed[seq], "sequence %d", seq)
	}
	assert.Equal(t, uint64(writers), l.Head())
}

func TestList(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 5; i++ {
		_, err := l.Append(digestFor(string(rune('a'+i))), "alice", time.Now())
		require.NoError(t, err)
	}

	revs, err := l.List(0, 0)
	require.NoError(t, err)
	require.Len(t, revs, 5)
	assert.Equal(t, uint64(1), revs[0].Sequence)

	revs, err = l.List(3, 2)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, uint64(3), revs[0].Sequence)
	assert.Equal(t, uint64(4), revs[1].Sequence)

	revs, err = l.List(10, 0)
	require.NoError(t, err)
	assert.Empty(t, revs)
}

func TestReopenRecoversState(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir)
	require.NoError(t, err)
	_, err = l.Append(digestFor("v1"), "alice", time.Now())
	require.NoError(t, err)
	_, err = l.Append(digestFor("v2"), "bob", time.Now())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(dir)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, uint64(2), l.Head())
	rev, err := l.Latest()
	require.NoError(t, err)
	assert.Equal(t, digestFor("v2"), rev.Digest)
	assert.Equal(t, "bob", rev.Author)

	// Appends continue from the recovered head.
	seq, err := l.Append(digestFor("v3"), "carol", time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
}

func TestReopenTruncatesTornTail(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir)
	require.NoError(t, err)
	_, err = l.Append(digestFor("v1"), "alice", time.Now())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// Simulate a crash mid-append: garbage after the last intact record.
	logPath := filepath.Join(dir, "log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`deadbeef {"sequence":2,"digest":"sha2`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l, err = Open(dir)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, uint64(1), l.Head())

	// The torn bytes are gone; the next append lands cleanly as 2.
	seq, err := l.Append(digestFor("v2"), "bob", time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	rev, err := l.Read(2)
	require.NoError(t, err)
	assert.Equal(t, digestFor("v2"), rev.Digest)
}

func TestReopenFailsOnOversizedRecord(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir)
	require.NoError(t, err)
	_, err = l.Append(digestFor("v1"), "alice", time.Now())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// A committed record too long for the recovery scanner must surface as
	// an open error, not vanish like a torn tail.
	big, err := encodeRecord(manifd.Revision{
		Sequence:  2,
		Digest:    digestFor("v2"),
		Author:    strings.Repeat("a", 2<<20),
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	logPath := filepath.Join(dir, "log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write(big)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(dir)
	require.Error(t, err)
}

func TestAppendSurvivesPointerWriteFailure(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir)
	require.NoError(t, err)
	_, err = l.Append(digestFor("v1"), "alice", time.Now())
	require.NoError(t, err)

	// Break the pointer rewrite only: the record file handle stays open,
	// but writeLatest can no longer create its temp file.
	l.dir = filepath.Join(dir, "gone")
	seq, err := l.Append(digestFor("v2"), "bob", time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
	l.dir = dir
	require.NoError(t, l.Close())

	// Disk and memory agreed on the head, so recovery sees both records.
	l, err = Open(dir)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, uint64(2), l.Head())
	rev, err := l.Read(2)
	require.NoError(t, err)
	assert.Equal(t, digestFor("v2"), rev.Digest)
}

func TestLatestPointerFile(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(dir)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Append(digestFor("v1"), "alice", time.Now())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "LATEST"))
	require.NoError(t, err)
	assert.Contains(t, string(data), digestFor("v1").String())
	assert.Contains(t, string(data), `"sequence":1`)
}
