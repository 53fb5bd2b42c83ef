// Package interfaces collects the small capability interfaces shared across
// ticosd's internal packages, kept separate to avoid import cycles between
// the supervisor and the packages it wires together.
package interfaces

import "os"

// ProcMem reads process memory, modeling /proc/<pid>/mem. Production code
// uses the real file; tests substitute a fake backed by a byte slice.
type ProcMem interface {
	ReadAt(p []byte, off int64) (n int, err error)
	Close() error
}

// Restarter abstracts service-manager integration (spec: "Service-manager
// integration (abstracted as a restart(service) / signal(service, sig)
// capability)"). The production implementation shells out to systemctl.
type Restarter interface {
	Restart(service string) error
	Signal(service string, sig os.Signal) error
}

// Logger is the minimal logging capability accepted by components that do
// not want a hard dependency on the concrete logging package.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer receives upload/queue metrics. Implementations must be
// thread-safe: methods are called from the supervisor's drain loop and from
// plugin IPC handlers concurrently.
type Observer interface {
	ObserveUpload(bytes uint64, latencyNs uint64, success bool)
	ObserveEnqueue(recordType string, success bool)
	ObserveDrainOutcome(success bool)
}
