package manifd

import "errors"

var (
	// ErrInvalidInput rejects a publish whose content is empty or oversized.
	ErrInvalidInput = errors.New("manifd: invalid manifest content")

	// ErrConflict reports a lost race for the next log sequence number.
	// Publishers retry with a fresh number; it never escapes a successful publish.
	ErrConflict = errors.New("manifd: revision log append conflict")

	// ErrNotFound reports an unknown digest or sequence number.
	ErrNotFound = errors.New("manifd: not found")

	// ErrCorruptDownload reports fetched bytes that do not hash to the
	// expected digest. Never retried blindly; the local replica is untouched.
	ErrCorruptDownload = errors.New("manifd: downloaded content does not match digest")

	// ErrTransient marks failures worth retrying: network errors, 5xx
	// responses, stale latest reads.
	ErrTransient = errors.New("manifd: transient failure")

	// ErrTimeout reports an exhausted retry or wall-clock budget.
	ErrTimeout = errors.New("manifd: retry budget exhausted")

	// ErrLocked reports that another sync holds the consumer-scoped lock.
	ErrLocked = errors.New("manifd: sync already in progress")
)
