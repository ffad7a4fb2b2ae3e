//go:build unix

package lockfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/manifd/manifd"
)

type lockCloser struct {
	f *os.File
}

func (l lockCloser) Close() error {
	return l.f.Close()
}

func acquire(name string) (io.Closer, error) {
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("lock %s held: %w", name, manifd.ErrLocked)
		}
		return nil, fmt.Errorf("flock %s: %w", name, err)
	}
	return lockCloser{f}, nil
}
