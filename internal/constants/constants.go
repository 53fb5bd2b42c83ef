// Package constants collects the default tunables for ticosd, the way the
// teacher library centralizes its device-lifecycle defaults in one place.
package constants

import "time"

// Supervisor drain-loop defaults (spec §4.10).
const (
	// BackoffInitial is the first retry delay after a failed drain.
	BackoffInitial = 60 * time.Second

	// BackoffMultiplier doubles the retry delay on each consecutive failure.
	BackoffMultiplier = 2

	// DefaultRefreshIntervalSeconds is the steady-state drain interval when
	// the queue is healthy (config key refresh_interval_seconds).
	DefaultRefreshIntervalSeconds = 3600
)

// Persistent queue defaults (spec §4.7, §6).
const (
	// DefaultQueueSizeKiB is the default capacity of the transmit queue file.
	DefaultQueueSizeKiB = 1024

	// RecordHeaderSize is the length-prefix size in bytes ([u32 length]).
	RecordHeaderSize = 4

	// TypeTagSize is the size in bytes of a TxRecord's type tag.
	TypeTagSize = 1
)

// Coredump transformer limits (spec §4.5).
const (
	// MaxWarnings is the number of warnings retained before overflow is
	// dropped with a stderr notice.
	MaxWarnings = 16

	// ProcMemChunkSize is the chunk size used when copying PT_LOAD segment
	// bytes from /proc/<pid>/mem.
	ProcMemChunkSize = 4096

	// UnreadableMemFill is the placeholder byte written in place of PT_LOAD
	// bytes that could not be read from /proc/<pid>/mem.
	UnreadableMemFill = 0xEF

	// GzipBufferSize is a 4 KiB compression buffer size. The gzip sink
	// adapter does not reference it and keeps no buffer of its own.
	GzipBufferSize = 4 * 1024
)

// Metadata note identity (spec §4.4).
const (
	// NoteName is the ELF note "owner" name embedded in the metadata note.
	NoteName = "Ticos"

	// NoteType is the custom ELF note type for the metadata note.
	NoteType = 0x4154454d

	// SchemaVersion is the only metadata schema version that has ever
	// existed; there is no v0 (spec §9 design note (c)).
	SchemaVersion = 1
)

// Collectd plugin defaults (spec §6, open question (d)).
const (
	// DefaultCollectdWriteHTTPBufferSizeKiB is inferred from the original
	// implementation; kept as the default per spec §9 design note (d).
	DefaultCollectdWriteHTTPBufferSizeKiB = 64
)

// IPC paths (spec §6).
const (
	// IPCSocketPath is the fixed AF_UNIX SOCK_DGRAM path ticosd listens on.
	IPCSocketPath = "/tmp/ticos-ipc.sock"

	// PidFilePath is where the daemon's PID is recorded.
	PidFilePath = "/var/run/ticosd.pid"

	// DefaultConfigPath is the default location of the JSON config file.
	DefaultConfigPath = "/etc/ticosd.conf"
)
