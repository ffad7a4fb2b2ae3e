package lockfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifd/manifd"
)

func TestAcquireRelease(t *testing.T) {
	name := filepath.Join(t.TempDir(), "replica.lock")

	lock, err := Acquire(name)
	require.NoError(t, err)
	require.NoError(t, lock.Close())

	// Reacquirable after release.
	lock, err = Acquire(name)
	require.NoError(t, err)
	require.NoError(t, lock.Close())
}

func TestAcquireHeldFailsFast(t *testing.T) {
	name := filepath.Join(t.TempDir(), "replica.lock")

	lock, err := Acquire(name)
	require.NoError(t, err)
	defer lock.Close()

	_, err = Acquire(name)
	assert.ErrorIs(t, err, manifd.ErrLocked)
}
