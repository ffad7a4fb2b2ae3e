package manifd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDigest(t *testing.T) {
	d := NewDigest([]byte("hello"))
	assert.True(t, strings.HasPrefix(string(d), "sha256:"))
	assert.Len(t, d.Hex(), 64)

	// Deterministic.
	assert.Equal(t, d, NewDigest([]byte("hello")))
	assert.NotEqual(t, d, NewDigest([]byte("hello!")))
}

func TestDigestMatches(t *testing.T) {
	data := []byte("the canonical manifest")
	d := NewDigest(data)

	assert.True(t, d.Matches(data))
	assert.False(t, d.Matches([]byte("tampered")))
}

func TestParseDigest(t *testing.T) {
	valid := NewDigest([]byte("x")).String()

	d, err := ParseDigest(valid)
	require.NoError(t, err)
	assert.Equal(t, valid, d.String())

	for _, bad := range []string{
		"",
		"sha256:",
		"sha256:abc",
		"md5:" + strings.Repeat("a", 32),
		"sha256:" + strings.Repeat("g", 64),
		strings.Repeat("a", 64),
	} {
		_, err := ParseDigest(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, "input %q", bad)
	}
}

func TestSyncStatusString(t *testing.T) {
	assert.Equal(t, "unchanged", SyncUnchanged.String())
	assert.Equal(t, "updated", SyncUpdated.String())
}
