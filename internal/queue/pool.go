// Package queue implements ticosd's persistent, bounded on-disk FIFO
// queue of serialized records awaiting upload (spec §4.7).
package queue

import "sync"

// BufferPool provides pooled byte slices for copying record payloads in
// and out of the queue file, avoiding a fresh allocation per enqueue/drain
// on the hot path. Uses size-bucketed pools with power-of-2 sizes (64KB,
// 256KB, 1MB, 4MB) since record sizes range from a few hundred bytes of
// JSON attributes up to multi-megabyte gzipped coredumps.
//
// Uses *[]byte pattern to avoid sync.Pool interface allocation overhead.

// Buffer size thresholds.
const (
	size64k  = 64 * 1024
	size256k = 256 * 1024
	size1m   = 1024 * 1024
	size4m   = 4 * 1024 * 1024
)

// globalPool is the shared buffer pool for all queue readers/writers.
var globalPool = struct {
	pool64k  sync.Pool
	pool256k sync.Pool
	pool1m   sync.Pool
	pool4m   sync.Pool
}{
	pool64k:  sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
	pool256k: sync.Pool{New: func() any { b := make([]byte, size256k); return &b }},
	pool1m:   sync.Pool{New: func() any { b := make([]byte, size1m); return &b }},
	pool4m:   sync.Pool{New: func() any { b := make([]byte, size4m); return &b }},
}

// GetBuffer returns a pooled buffer of at least the requested size.
// Caller must call PutBuffer when done.
func GetBuffer(size uint32) []byte {
	switch {
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	case size <= size256k:
		return (*globalPool.pool256k.Get().(*[]byte))[:size]
	case size <= size1m:
		return (*globalPool.pool1m.Get().(*[]byte))[:size]
	default:
		return (*globalPool.pool4m.Get().(*[]byte))[:size]
	}
}

// PutBuffer returns a buffer to the pool. The buffer's capacity determines
// which pool it goes to.
func PutBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size64k:
		globalPool.pool64k.Put(&buf)
	case size256k:
		globalPool.pool256k.Put(&buf)
	case size1m:
		globalPool.pool1m.Put(&buf)
	case size4m:
		globalPool.pool4m.Put(&buf)
		// Buffers with non-standard capacity are not returned to pool.
	}
}
