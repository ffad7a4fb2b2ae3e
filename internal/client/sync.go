package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/manifd/manifd"
)

// Sync brings the local replica at path up to date with the service.
//
// The sequence is: resolve latest, short-circuit when the cached digest
// already matches, otherwise download, verify, and atomically replace the
// file. A reader of path concurrent with Sync sees either the old or the
// new content, never a partial write.
func (c *Client) Sync(ctx context.Context, path string) (manifd.SyncResult, error) {
	state, err := loadSidecar(path)
	if err != nil {
		return manifd.SyncResult{}, err
	}

	latest, err := c.Latest(ctx)
	if err != nil {
		return manifd.SyncResult{}, err
	}

	// Monotonic-read floor: a latest older than what this consumer
	// already applied is a stale read from a lagging replica. Retryable.
	if latest.Sequence < state.Sequence {
		return manifd.SyncResult{}, fmt.Errorf("stale latest: got sequence %d, already applied %d: %w",
			latest.Sequence, state.Sequence, manifd.ErrTransient)
	}

	if latest.Digest == state.Digest && fileExists(path) {
		if latest.Sequence != state.Sequence {
			// Same content republished under a new sequence; record the
			// new floor without touching the manifest.
			if err := writeSidecar(path, sidecar{Digest: latest.Digest, Sequence: latest.Sequence}); err != nil {
				return manifd.SyncResult{}, err
			}
		}
		return manifd.SyncResult{Status: manifd.SyncUnchanged, Revision: latest}, nil
	}

	content, err := c.Fetch(ctx, latest.Digest)
	if err != nil {
		return manifd.SyncResult{}, err
	}

	if err := replaceFile(path, content); err != nil {
		return manifd.SyncResult{}, err
	}
	if err := writeSidecar(path, sidecar{Digest: latest.Digest, Sequence: latest.Sequence}); err != nil {
		return manifd.SyncResult{}, err
	}

	return manifd.SyncResult{Status: manifd.SyncUpdated, Revision: latest}, nil
}

// replaceFile writes data to a temporary file in the target directory,
// syncs it, and renames it into place.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
