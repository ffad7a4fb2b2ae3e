//go:build !unix

package lockfile

import (
	"fmt"
	"io"
	"os"

	"github.com/manifd/manifd"
)

// Fallback for platforms without flock: exclusive create of the lock
// file, removed on Close. Stale locks from a crashed process must be
// removed by hand; the diagnostic names the file for that reason.
type fileLock struct {
	name string
	f    *os.File
}

func (l *fileLock) Close() error {
	err := l.f.Close()
	if rmErr := os.Remove(l.name); err == nil {
		err = rmErr
	}
	return err
}

func acquire(name string) (io.Closer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("lock %s held (remove manually if stale): %w", name, manifd.ErrLocked)
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	return &fileLock{name: name, f: f}, nil
}
