package manifd

import "time"

// Revision is one immutable entry in the manifest history.
type Revision struct {
	Sequence  uint64    `json:"sequence"`
	Digest    Digest    `json:"digest"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// SyncStatus reports what a sync did to the local replica.
type SyncStatus int

const (
	// SyncUnchanged means the local replica already matched the latest revision.
	SyncUnchanged SyncStatus = iota
	// SyncUpdated means the local replica was replaced with new content.
	SyncUpdated
)

func (s SyncStatus) String() string {
	switch s {
	case SyncUnchanged:
		return "unchanged"
	case SyncUpdated:
		return "updated"
	}
	return "unknown"
}

// SyncResult is the outcome of a successful sync. Failures are returned as
// errors from the error taxonomy in errors.go.
type SyncResult struct {
	Status   SyncStatus
	Revision Revision
}
