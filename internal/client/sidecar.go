package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/manifd/manifd"
)

const sidecarSuffix = ".manifd.json"

// sidecar is the per-consumer fingerprint of the applied revision. It
// lives next to the manifest so deleting the checkout deletes it too.
type sidecar struct {
	Digest   manifd.Digest `json:"digest"`
	Sequence uint64        `json:"sequence"`
}

// SidecarPath returns the sidecar location for a manifest path.
func SidecarPath(path string) string {
	return path + sidecarSuffix
}

// loadSidecar reads the sidecar, returning the zero state on first sync
// or when the sidecar is unreadable (it is only a cache; worst case is
// one redundant download).
func loadSidecar(path string) (sidecar, error) {
	data, err := os.ReadFile(SidecarPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return sidecar{}, nil
		}
		return sidecar{}, fmt.Errorf("read sidecar: %w", err)
	}

	var state sidecar
	if err := json.Unmarshal(data, &state); err != nil {
		return sidecar{}, nil
	}
	return state, nil
}

// writeSidecar persists the fingerprint via temp+rename.
func writeSidecar(path string, state sidecar) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}

	target := SidecarPath(path)
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*")
	if err != nil {
		return fmt.Errorf("create sidecar temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close sidecar: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("install sidecar: %w", err)
	}
	return nil
}
