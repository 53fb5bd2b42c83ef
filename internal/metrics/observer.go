// Package metrics provides the default Observer implementation ticosd
// runs with: since the collectd metrics bridge is an explicit spec
// Non-goal (SPEC_FULL.md §1), there is no real metrics backend to report
// into, but the supervisor's upload/enqueue/drain outcomes are still
// worth surfacing in the daemon's own logs.
package metrics

import (
	"sync/atomic"

	"github.com/ticos-device/ticosd/internal/logging"
)

// LoggingObserver implements interfaces.Observer by logging each event at
// debug level, with running counters for a coarse summary on request.
type LoggingObserver struct {
	log *logging.Logger

	uploadsOK     uint64
	uploadsFailed uint64
	enqueued      uint64
	enqueueDrops  uint64
	drainFailures uint64
}

func NewLoggingObserver(log *logging.Logger) *LoggingObserver {
	return &LoggingObserver{log: log}
}

func (o *LoggingObserver) ObserveUpload(bytes uint64, latencyNs uint64, success bool) {
	if success {
		atomic.AddUint64(&o.uploadsOK, 1)
	} else {
		atomic.AddUint64(&o.uploadsFailed, 1)
	}
	o.log.Debugf("upload observed: bytes=%d latency_ns=%d success=%t", bytes, latencyNs, success)
}

func (o *LoggingObserver) ObserveEnqueue(recordType string, success bool) {
	if success {
		atomic.AddUint64(&o.enqueued, 1)
	} else {
		atomic.AddUint64(&o.enqueueDrops, 1)
	}
	o.log.Debugf("enqueue observed: type=%s success=%t", recordType, success)
}

func (o *LoggingObserver) ObserveDrainOutcome(success bool) {
	if !success {
		atomic.AddUint64(&o.drainFailures, 1)
	}
	o.log.Debugf("drain outcome observed: success=%t", success)
}

// Summary returns a point-in-time snapshot of the running counters, used
// by a future status subcommand or diagnostic log line.
func (o *LoggingObserver) Summary() (uploadsOK, uploadsFailed, enqueued, enqueueDrops, drainFailures uint64) {
	return atomic.LoadUint64(&o.uploadsOK), atomic.LoadUint64(&o.uploadsFailed),
		atomic.LoadUint64(&o.enqueued), atomic.LoadUint64(&o.enqueueDrops), atomic.LoadUint64(&o.drainFailures)
}
