package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifd/manifd"
	"github.com/manifd/manifd/internal/client"
	"github.com/manifd/manifd/internal/lockfile"
)

// flakyService serves a fixed revision but fails the first failures
// requests with a 503.
func flakyService(t *testing.T, content []byte, failures int32) *httptest.Server {
	t.Helper()
	digest := manifd.NewDigest(content)
	var served atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /manifest/latest", func(w http.ResponseWriter, r *http.Request) {
		if served.Add(1) <= failures {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(manifd.Revision{
			Sequence: 1, Digest: digest, Author: "alice", CreatedAt: time.Now().UTC(),
		})
	})
	mux.HandleFunc("GET /manifest/{digest}", func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newSyncer(t *testing.T, ts *httptest.Server, path string, opts ...Option) *Syncer {
	t.Helper()
	c, err := client.New(ts.URL, client.WithHTTPClient(ts.Client()))
	require.NoError(t, err)
	return New(c, path, opts...)
}

func fastBackoff(s *Syncer) {
	s.baseDelay = time.Millisecond
	s.maxDelay = 5 * time.Millisecond
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	ts := flakyService(t, []byte("v1"), 0)
	path := filepath.Join(t.TempDir(), "AGENTS.md")

	s := newSyncer(t, ts, path)
	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, manifd.SyncUpdated, result.Status)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestRunRetriesTransientFailures(t *testing.T) {
	ts := flakyService(t, []byte("v1"), 3)
	path := filepath.Join(t.TempDir(), "AGENTS.md")

	s := newSyncer(t, ts, path, WithMaxAttempts(5))
	fastBackoff(s)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, manifd.SyncUpdated, result.Status)
}

func TestRunExhaustsAttempts(t *testing.T) {
	ts := flakyService(t, []byte("v1"), 1000)
	path := filepath.Join(t.TempDir(), "AGENTS.md")

	s := newSyncer(t, ts, path, WithMaxAttempts(3))
	fastBackoff(s)

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, manifd.ErrTimeout)
	assert.NoFileExists(t, path)
}

func TestRunBudgetExceeded(t *testing.T) {
	ts := flakyService(t, []byte("v1"), 1000)
	path := filepath.Join(t.TempDir(), "AGENTS.md")

	s := newSyncer(t, ts, path, WithMaxAttempts(100), WithBudget(30*time.Millisecond))
	s.baseDelay = 20 * time.Millisecond
	s.maxDelay = 20 * time.Millisecond

	start := time.Now()
	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, manifd.ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunPermanentFailureNotRetried(t *testing.T) {
	digest := manifd.NewDigest([]byte("advertised"))
	var fetches atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /manifest/latest", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(manifd.Revision{
			Sequence: 1, Digest: digest, CreatedAt: time.Now().UTC(),
		})
	})
	mux.HandleFunc("GET /manifest/{digest}", func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte("not what was advertised"))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	path := filepath.Join(t.TempDir(), "AGENTS.md")
	require.NoError(t, os.WriteFile(path, []byte("untouched"), 0644))

	s := newSyncer(t, ts, path, WithMaxAttempts(5))
	fastBackoff(s)

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, manifd.ErrCorruptDownload)
	assert.EqualValues(t, 1, fetches.Load(), "integrity mismatch must not be retried")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "untouched", string(data))
}

func TestRunRespectsConsumerLock(t *testing.T) {
	ts := flakyService(t, []byte("v1"), 0)
	path := filepath.Join(t.TempDir(), "AGENTS.md")

	// A concurrent hook invocation already holds the lock.
	held, err := lockfile.Acquire(path + lockSuffix)
	require.NoError(t, err)
	defer held.Close()

	s := newSyncer(t, ts, path)
	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, manifd.ErrLocked)
}

func TestBackoffDelay(t *testing.T) {
	base := 200 * time.Millisecond
	max := 3 * time.Second

	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffDelay(attempt, base, max)
		assert.Greater(t, d, time.Duration(0), "attempt %d", attempt)
		assert.LessOrEqual(t, d, max+max/2, "attempt %d", attempt)
	}
}
