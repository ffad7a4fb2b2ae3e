// Package revlog implements the append-only manifest revision history.
//
// The log is a single record file of CRC-framed JSON lines plus a LATEST
// pointer file rewritten via temp+rename after every append. Records are
// never mutated or deleted; sequence numbers are contiguous and strictly
// increasing from 1. A torn tail write (crash mid-append) is detected by
// the CRC frame and truncated away on open, the same way write-ahead logs
// recover.
package revlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/manifd/manifd"
)

const (
	logFileName    = "log"
	latestFileName = "LATEST"

	// crcHexLen frames each record as "<crc32 hex8> <json>\n".
	crcHexLen = 8
)

// Log is the durable, append-only revision history. Appends are
// linearizable: the mutex serializes writers, each caller is assigned a
// fresh contiguous sequence number under the lock, and concurrent
// appenders queue rather than conflict. ErrConflict stays in the append
// contract for backends where the tail claim can genuinely race (a
// shared log behind replicas); this in-process log never returns it.
type Log struct {
	mu        sync.Mutex // serializes appends
	dir       string
	f         *os.File
	size      int64 // committed length of the record file
	head      atomic.Uint64
	revisions []manifd.Revision // index 0 holds sequence 1
}

// Open opens or creates a revision log in dir, recovering state from the
// record file. A corrupt or torn tail record is truncated away; anything
// before it is intact by construction.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}

	l := &Log{dir: dir}
	validLen, err := l.recover()
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(l.logPath(), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if err := f.Truncate(validLen); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate torn tail: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek log tail: %w", err)
	}

	l.f = f
	l.size = validLen
	l.head.Store(uint64(len(l.revisions)))
	return l, nil
}

// recover scans the record file and loads every intact record, returning
// the byte length of the valid prefix.
func (l *Log) recover() (int64, error) {
	data, err := os.ReadFile(l.logPath())
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read log file: %w", err)
	}

	var offset int64
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		rev, ok := decodeRecord(line)
		if !ok {
			break // torn or corrupt tail; drop it and everything after
		}
		if rev.Sequence != uint64(len(l.revisions))+1 {
			return 0, fmt.Errorf("log record out of order: got sequence %d, want %d", rev.Sequence, len(l.revisions)+1)
		}
		l.revisions = append(l.revisions, rev)
		offset += int64(len(line)) + 1 // newline
	}
	// A scan error is not a torn tail. Truncating here would silently
	// delete committed revisions; fail open instead.
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan log file: %w", err)
	}
	return offset, nil
}

// Append assigns the next sequence number to digest. The number is taken
// from the head under the lock, so queued appenders each get a fresh
// contiguous number.
func (l *Log) Append(digest manifd.Digest, author string, at time.Time) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.head.Load() + 1
	rev := manifd.Revision{
		Sequence:  next,
		Digest:    digest,
		Author:    author,
		CreatedAt: at.UTC(),
	}

	record, err := encodeRecord(rev)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	if _, err := l.f.Write(record); err != nil {
		l.rewind()
		return 0, fmt.Errorf("append record: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		l.rewind()
		return 0, fmt.Errorf("sync log: %w", err)
	}

	// The record file is authoritative from here on; in-memory state must
	// commit with it or a later append would rebind this sequence number.
	l.size += int64(len(record))
	l.revisions = append(l.revisions, rev)
	l.head.Store(next)

	// The pointer file is a serving hint for operators; recovery rebuilds
	// from the record file, so a failed rewrite is not worth failing the
	// append over.
	_ = l.writeLatest(rev)
	return next, nil
}

// rewind drops a half-written record so the file never holds a sequence
// number the in-memory state does not. If the truncate itself fails, the
// CRC frame still catches the partial record on the next Open.
func (l *Log) rewind() {
	_ = l.f.Truncate(l.size)
	_, _ = l.f.Seek(l.size, io.SeekStart)
}

// Read returns the revision with the given sequence number.
func (l *Log) Read(seq uint64) (manifd.Revision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq == 0 || seq > uint64(len(l.revisions)) {
		return manifd.Revision{}, fmt.Errorf("sequence %d: %w", seq, manifd.ErrNotFound)
	}
	return l.revisions[seq-1], nil
}

// Head returns the highest committed sequence number, 0 when empty.
func (l *Log) Head() uint64 {
	return l.head.Load()
}

// Latest returns the revision at the head of the log.
func (l *Log) Latest() (manifd.Revision, error) {
	head := l.head.Load()
	if head == 0 {
		return manifd.Revision{}, fmt.Errorf("empty log: %w", manifd.ErrNotFound)
	}
	return l.Read(head)
}

// List returns up to limit revisions starting at from (inclusive).
// from=0 is treated as 1.
func (l *Log) List(from uint64, limit int) ([]manifd.Revision, error) {
	if from == 0 {
		from = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if from > uint64(len(l.revisions)) {
		return nil, nil
	}
	end := uint64(len(l.revisions))
	if limit > 0 && from+uint64(limit)-1 < end {
		end = from + uint64(limit) - 1
	}
	out := make([]manifd.Revision, 0, end-from+1)
	for seq := from; seq <= end; seq++ {
		out = append(out, l.revisions[seq-1])
	}
	return out, nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// writeLatest rewrites the pointer file via temp+rename so readers of the
// file never see a partial write.
func (l *Log) writeLatest(rev manifd.Revision) error {
	data, err := json.Marshal(rev)
	if err != nil {
		return fmt.Errorf("encode latest pointer: %w", err)
	}

	tmp, err := os.CreateTemp(l.dir, latestFileName+"-*")
	if err != nil {
		return fmt.Errorf("create latest temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write latest temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close latest temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, latestFileName)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("install latest pointer: %w", err)
	}
	return nil
}

func (l *Log) logPath() string {
	return filepath.Join(l.dir, logFileName)
}

func encodeRecord(rev manifd.Revision) ([]byte, error) {
	payload, err := json.Marshal(rev)
	if err != nil {
		return nil, err
	}
	sum := crc32.ChecksumIEEE(payload)
	record := make([]byte, 0, crcHexLen+1+len(payload)+1)
	record = fmt.Appendf(record, "%08x %s\n", sum, payload)
	return record, nil
}

func decodeRecord(line []byte) (manifd.Revision, bool) {
	if len(line) < crcHexLen+2 || line[crcHexLen] != ' ' {
		return manifd.Revision{}, false
	}
	sum, err := strconv.ParseUint(string(line[:crcHexLen]), 16, 32)
	if err != nil {
		return manifd.Revision{}, false
	}
	payload := line[crcHexLen+1:]
	if crc32.ChecksumIEEE(payload) != uint32(sum) {
		return manifd.Revision{}, false
	}
	var rev manifd.Revision
	if err := json.Unmarshal(payload, &rev); err != nil {
		return manifd.Revision{}, false
	}
	return rev, true
}
