// Package server exposes the manifest publish and read surface over HTTP.
//
// The write path validates content, stores it in the content-addressed
// store, appends to the revision log (retrying lost sequence races a
// bounded number of times), and only then advances the latest pointer.
// The read path serves the latest pointer from an atomic in-memory
// reference, so resolveLatest never touches disk on the hot path and is
// monotonic for the life of the process.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/manifd/manifd"
	"github.com/manifd/manifd/internal/cas"
	"github.com/manifd/manifd/internal/revlog"
)

const (
	// DefaultMaxManifestSize bounds publish bodies. Manifests are prose
	// documents; a megabyte is already generous.
	DefaultMaxManifestSize = 1 << 20

	// maxAuthorLen bounds the author field. Log records live on a single
	// line; an unbounded author could push a record past what recovery
	// will scan back.
	maxAuthorLen = 256

	// appendRetries bounds internal retries of a lost sequence race
	// before the conflict is surfaced to the publisher.
	appendRetries = 3

	shutdownGrace = 5 * time.Second
)

// Server coordinates the store and the revision log behind the HTTP surface.
type Server struct {
	store   cas.Store
	log     *revlog.Log
	logger  *zap.Logger
	maxSize int64

	latest atomic.Pointer[manifd.Revision]
	cold   singleflight.Group
}

// Option configures a Server.
type Option func(*Server)

// WithMaxManifestSize overrides the publish size bound.
func WithMaxManifestSize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func New(store cas.Store, log *revlog.Log, opts ...Option) *Server {
	s := &Server{
		store:   store,
		log:     log,
		logger:  zap.NewNop(),
		maxSize: DefaultMaxManifestSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Warm the pointer from the recovered log so the first read after a
	// restart does not regress to "nothing published".
	if rev, err := log.Latest(); err == nil {
		s.advanceLatest(rev)
	}
	return s
}

// Publish validates content, stores it, and appends a new revision.
func (s *Server) Publish(ctx context.Context, content []byte, author string) (manifd.Revision, error) {
	if len(content) == 0 {
		return manifd.Revision{}, fmt.Errorf("empty manifest: %w", manifd.ErrInvalidInput)
	}
	if int64(len(content)) > s.maxSize {
		return manifd.Revision{}, fmt.Errorf("manifest exceeds %d bytes: %w", s.maxSize, manifd.ErrInvalidInput)
	}
	if len(author) > maxAuthorLen {
		return manifd.Revision{}, fmt.Errorf("author exceeds %d bytes: %w", maxAuthorLen, manifd.ErrInvalidInput)
	}
	if author == "" {
		author = "unknown"
	}

	digest, err := s.store.Put(ctx, content)
	if err != nil {
		return manifd.Revision{}, fmt.Errorf("store manifest: %w", err)
	}

	var seq uint64
	for attempt := 0; ; attempt++ {
		seq, err = s.log.Append(digest, author, time.Now())
		if err == nil {
			break
		}
		if !errors.Is(err, manifd.ErrConflict) || attempt+1 >= appendRetries {
			return manifd.Revision{}, fmt.Errorf("append revision: %w", err)
		}
		s.logger.Debug("append conflict, retrying",
			zap.String("digest", digest.String()),
			zap.Int("attempt", attempt+1))
	}

	rev, err := s.log.Read(seq)
	if err != nil {
		return manifd.Revision{}, fmt.Errorf("read back revision %d: %w", seq, err)
	}

	s.advanceLatest(rev)
	s.logger.Info("published revision",
		zap.Uint64("sequence", rev.Sequence),
		zap.String("digest", rev.Digest.String()),
		zap.String("author", rev.Author))
	return rev, nil
}

// ResolveLatest returns the current canonical revision. The hot path is a
// single atomic load; a cold pointer (possible only before the first
// publish) falls through to the log behind a singleflight gate.
func (s *Server) ResolveLatest(ctx context.Context) (manifd.Revision, error) {
	if rev := s.latest.Load(); rev != nil {
		return *rev, nil
	}

	v, err, _ := s.cold.Do("latest", func() (any, error) {
		rev, err := s.log.Latest()
		if err != nil {
			return nil, err
		}
		s.advanceLatest(rev)
		return rev, nil
	})
	if err != nil {
		return manifd.Revision{}, err
	}
	return v.(manifd.Revision), nil
}

// advanceLatest moves the pointer forward, never backward. Concurrent
// publishers may finish out of order; the higher sequence always wins.
func (s *Server) advanceLatest(rev manifd.Revision) {
	for {
		cur := s.latest.Load()
		if cur != nil && cur.Sequence >= rev.Sequence {
			return
		}
		if s.latest.CompareAndSwap(cur, &rev) {
			return
		}
	}
}

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("serving", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
