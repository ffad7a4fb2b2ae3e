package manifd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const digestPrefix = "sha256:"

// Digest identifies manifest content by its sha256 (e.g. "sha256:abc123...").
type Digest string

// NewDigest computes the content digest of data.
func NewDigest(data []byte) Digest {
	h := sha256.Sum256(data)
	return Digest(digestPrefix + hex.EncodeToString(h[:]))
}

// ParseDigest validates the textual form of a digest.
func ParseDigest(s string) (Digest, error) {
	rest, ok := strings.CutPrefix(s, digestPrefix)
	if !ok || len(rest) != sha256.Size*2 {
		return "", fmt.Errorf("malformed digest %q: %w", s, ErrInvalidInput)
	}
	if _, err := hex.DecodeString(rest); err != nil {
		return "", fmt.Errorf("malformed digest %q: %w", s, ErrInvalidInput)
	}
	return Digest(s), nil
}

// Hex returns the digest without the algorithm prefix.
func (d Digest) Hex() string {
	return strings.TrimPrefix(string(d), digestPrefix)
}

// Matches reports whether data hashes to d.
func (d Digest) Matches(data []byte) bool {
	return NewDigest(data) == d
}

func (d Digest) String() string { return string(d) }
