// Package syncer wraps the fetch client with operational policy: the
// consumer-scoped lock, transient-failure retries with jittered
// exponential backoff, and a total wall-clock budget.
//
// Only failures marked transient are retried. Integrity mismatches and
// invalid content surface immediately; they may indicate corruption in
// transit and retrying would just re-download the same bad bytes.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/manifd/manifd"
	"github.com/manifd/manifd/internal/client"
	"github.com/manifd/manifd/internal/lockfile"
)

const lockSuffix = ".manifd.lock"

// Syncer runs the fetch-compare-replace sequence under policy.
type Syncer struct {
	client *client.Client
	path   string
	logger *zap.Logger

	maxAttempts int
	budget      time.Duration
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Syncer) { s.logger = logger }
}

// WithMaxAttempts bounds the number of sync attempts.
func WithMaxAttempts(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBudget caps the total wall-clock time across all attempts.
func WithBudget(d time.Duration) Option {
	return func(s *Syncer) {
		if d > 0 {
			s.budget = d
		}
	}
}

func New(c *client.Client, path string, opts ...Option) *Syncer {
	s := &Syncer{
		client:      c,
		path:        path,
		logger:      zap.NewNop(),
		maxAttempts: 5,
		budget:      10 * time.Second,
		baseDelay:   200 * time.Millisecond,
		maxDelay:    3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run syncs the local replica, retrying transient failures until the
// attempt count or wall-clock budget runs out.
func (s *Syncer) Run(ctx context.Context) (manifd.SyncResult, error) {
	lock, err := lockfile.Acquire(s.path + lockSuffix)
	if err != nil {
		return manifd.SyncResult{}, err
	}
	defer lock.Close()

	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result, err := s.client.Sync(ctx, s.path)
		if err == nil {
			s.logger.Info("sync complete",
				zap.String("path", s.path),
				zap.String("status", result.Status.String()),
				zap.Uint64("sequence", result.Revision.Sequence))
			return result, nil
		}

		if ctx.Err() != nil {
			return manifd.SyncResult{}, fmt.Errorf("sync abandoned after %d attempts: %v: %w",
				attempt, lastErrOr(err, lastErr), manifd.ErrTimeout)
		}
		if !errors.Is(err, manifd.ErrTransient) {
			return manifd.SyncResult{}, err
		}

		lastErr = err
		if attempt == s.maxAttempts {
			break
		}

		delay := backoffDelay(attempt, s.baseDelay, s.maxDelay)
		s.logger.Warn("sync attempt failed, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return manifd.SyncResult{}, fmt.Errorf("sync abandoned after %d attempts: %v: %w",
				attempt, lastErr, manifd.ErrTimeout)
		}
	}

	return manifd.SyncResult{}, fmt.Errorf("sync failed after %d attempts: %v: %w",
		s.maxAttempts, lastErr, manifd.ErrTimeout)
}

// lastErrOr prefers the attempt error over a context cancellation wrapper
// when both are present.
func lastErrOr(err, last error) error {
	if last != nil {
		return last
	}
	return err
}
