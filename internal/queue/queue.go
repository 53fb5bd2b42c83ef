package queue

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/ticos-device/ticosd/internal/daemonerr"
)

// RecordType tags the variant stored in a TxRecord frame (spec §3).
type RecordType uint8

const (
	RecordTypeRebootEvent RecordType = 1
	RecordTypeAttributes  RecordType = 2
	RecordTypeCoreUpload  RecordType = 3
)

const (
	lengthFieldSize = 4 // u32 length prefix, covers type tag + payload
	typeTagSize     = 1
)

// Queue is a single-file, bounded, FIFO byte-record store (spec §4.7). It is
// safe for concurrent use: every operation holds mu, so plugin IPC handlers
// can enqueue while the supervisor drains.
type Queue struct {
	mu sync.Mutex

	path      string
	statePath string
	capacity  int64

	file *os.File
	head int64
	tail int64
}

type queueState struct {
	Head     int64 `json:"head"`
	Tail     int64 `json:"tail"`
	Capacity int64 `json:"capacity"`
}

// Open opens or creates the queue file at path (and its "<path>.state"
// sidecar) with the given capacity in bytes. If a sidecar state file
// exists, its cursors are restored; otherwise the queue starts empty.
func Open(path string, capacity int64) (*Queue, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_CLOEXEC, 0o640)
	if err != nil {
		return nil, daemonerr.Wrap("queue.open", daemonerr.CodeFilesystem, err)
	}
	q := &Queue{
		path:      path,
		statePath: path + ".state",
		capacity:  capacity,
		file:      f,
	}
	if err := q.loadState(); err != nil {
		f.Close()
		return nil, err
	}
	return q, nil
}

// Close releases the underlying file handles.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.file.Close()
}

func (q *Queue) loadState() error {
	data, err := os.ReadFile(q.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			q.head, q.tail = 0, 0
			return nil
		}
		return daemonerr.Wrap("queue.loadState", daemonerr.CodeFilesystem, err)
	}
	var s queueState
	if err := parseState(data, &s); err != nil {
		// Corrupt sidecar: fail closed rather than risk replaying or
		// skipping records silently.
		return daemonerr.Wrap("queue.loadState", daemonerr.CodeFilesystem, err)
	}
	q.head, q.tail = s.Head, s.Tail
	if s.Capacity != 0 {
		q.capacity = s.Capacity
	}
	return nil
}

func parseState(data []byte, s *queueState) error {
	n, err := fmt.Sscanf(string(data), "%d %d %d", &s.Head, &s.Tail, &s.Capacity)
	if err != nil || n != 3 {
		return fmt.Errorf("malformed queue state sidecar")
	}
	return nil
}

func (q *Queue) saveState() error {
	data := fmt.Appendf(nil, "%d %d %d", q.head, q.tail, q.capacity)
	tmp := q.statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return daemonerr.Wrap("queue.saveState", daemonerr.CodeFilesystem, err)
	}
	if err := os.Rename(tmp, q.statePath); err != nil {
		return daemonerr.Wrap("queue.saveState", daemonerr.CodeFilesystem, err)
	}
	return nil
}

// Write appends a framed record ([u32 len][u8 type][payload]) at the
// current tail. Returns false (without error) when the record does not
// fit in the remaining capacity — the spec treats this as backpressure by
// rejection, not a fatal error.
func (q *Queue) Write(recType RecordType, payload []byte) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	frameLen := int64(typeTagSize + len(payload))
	total := lengthFieldSize + frameLen
	if q.tail+total > q.capacity {
		return false, nil
	}

	buf := GetBuffer(uint32(total))
	defer PutBuffer(buf)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(frameLen))
	buf[4] = byte(recType)
	copy(buf[5:], payload)

	if _, err := q.file.WriteAt(buf, q.tail); err != nil {
		return false, daemonerr.Wrap("queue.write", daemonerr.CodeFilesystem, err)
	}
	q.tail += total
	if err := q.saveState(); err != nil {
		return false, err
	}
	return true, nil
}

// Record is a borrowed view of the record at the queue head.
type Record struct {
	Type    RecordType
	Payload []byte
}

// ReadHead returns the record at head without advancing the cursor. The
// second return value is false when the queue is empty.
func (q *Queue) ReadHead() (Record, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == q.tail {
		return Record{}, false, nil
	}

	lenBuf := make([]byte, lengthFieldSize)
	if _, err := q.file.ReadAt(lenBuf, q.head); err != nil {
		return Record{}, false, daemonerr.Wrap("queue.readHead", daemonerr.CodeFilesystem, err)
	}
	frameLen := binary.LittleEndian.Uint32(lenBuf)

	frame := make([]byte, frameLen)
	if _, err := q.file.ReadAt(frame, q.head+lengthFieldSize); err != nil {
		return Record{}, false, daemonerr.Wrap("queue.readHead", daemonerr.CodeFilesystem, err)
	}

	return Record{Type: RecordType(frame[0]), Payload: frame[1:]}, true, nil
}

// CompleteRead advances head past the record most recently returned by
// ReadHead. When the queue becomes empty, the file is truncated to 0 and
// both cursors reset — this is the "rewritten from position 0" behavior
// from spec §3, distinct from a ring buffer.
func (q *Queue) CompleteRead() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == q.tail {
		return nil
	}

	lenBuf := make([]byte, lengthFieldSize)
	if _, err := q.file.ReadAt(lenBuf, q.head); err != nil {
		return daemonerr.Wrap("queue.completeRead", daemonerr.CodeFilesystem, err)
	}
	frameLen := int64(binary.LittleEndian.Uint32(lenBuf))
	q.head += lengthFieldSize + frameLen

	if q.head == q.tail {
		if err := q.file.Truncate(0); err != nil {
			return daemonerr.Wrap("queue.completeRead", daemonerr.CodeFilesystem, err)
		}
		q.head, q.tail = 0, 0
	}
	return q.saveState()
}

// Empty reports whether head == tail.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.head == q.tail
}

// Compact shifts the unread [head, tail) range down to offset 0 and resets
// the cursors. Intended to be called periodically while idle and head > 0,
// so the live region never drifts toward the capacity ceiling between full
// drains (spec §3).
func (q *Queue) Compact() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == 0 {
		return nil
	}
	liveLen := q.tail - q.head
	if liveLen > 0 {
		buf := GetBuffer(uint32(liveLen))
		defer PutBuffer(buf)
		if _, err := q.file.ReadAt(buf, q.head); err != nil {
			return daemonerr.Wrap("queue.compact", daemonerr.CodeFilesystem, err)
		}
		if _, err := q.file.WriteAt(buf, 0); err != nil {
			return daemonerr.Wrap("queue.compact", daemonerr.CodeFilesystem, err)
		}
	}
	if err := q.file.Truncate(liveLen); err != nil {
		return daemonerr.Wrap("queue.compact", daemonerr.CodeFilesystem, err)
	}
	q.head = 0
	q.tail = liveLen
	return q.saveState()
}

// Reset empties the queue unconditionally, used when data collection is
// disabled (spec §8 scenario S6).
func (q *Queue) Reset() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.file.Truncate(0); err != nil {
		return daemonerr.Wrap("queue.reset", daemonerr.CodeFilesystem, err)
	}
	q.head, q.tail = 0, 0
	return q.saveState()
}
