// Package coredumpplugin implements the daemon-side half of the coredump
// pipeline (spec §4.5, §4.6, §6): it receives a CORE datagram from the
// out-of-process coredump handler naming a transformed coredump file
// already written to the data directory, applies the rate limiter, and
// enqueues a reference to the file for upload. Grounded on the original's
// coredump_ratelimiter.c for the admission policy and plugins/reboot's
// "read a handle-local file, unlink when consumed" pattern for the file
// handoff.
package coredumpplugin

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ticos-device/ticosd/internal/daemonerr"
	"github.com/ticos-device/ticosd/internal/interfaces"
	"github.com/ticos-device/ticosd/internal/ipcwire"
	"github.com/ticos-device/ticosd/internal/logging"
	"github.com/ticos-device/ticosd/internal/queue"
	"github.com/ticos-device/ticosd/internal/ratelimit"
)

// CoreUploadRecord is the queue payload for a pending coredump upload: a
// reference to the already-transformed file on disk rather than the file
// bytes themselves, since coredumps can run many megabytes and the
// bounded queue is sized for JSON records (spec §6 "Persisted state
// layout").
type CoreUploadRecord struct {
	Path     string `json:"path"`
	Gzipped  bool   `json:"gzipped"`
	QueuedAt int64  `json:"queued_at"`
}

// Clock is overridden in tests; production uses time.Now().Unix().
type Clock func() int64

// Plugin owns admission control and enqueues coredump upload references.
type Plugin struct {
	log     *logging.Logger
	q       *queue.Queue
	limiter *ratelimit.Limiter
	now     Clock
	obs     interfaces.Observer
}

// New constructs the coredump plugin. obs may be nil.
func New(log *logging.Logger, q *queue.Queue, limiter *ratelimit.Limiter, obs interfaces.Observer) *Plugin {
	return &Plugin{log: log, q: q, limiter: limiter, now: func() int64 { return time.Now().Unix() }, obs: obs}
}

func (p *Plugin) Name() string      { return "coredump" }
func (p *Plugin) IPCPrefix() string { return ipcwire.TagCore }

// HandleIPC reads the CORE datagram's payload as the absolute path of a
// file the handler has already written and transformed. If the rate
// limiter rejects this event, the file is discarded and never enqueued
// (spec §4.6: "events beyond the limit are dropped, not queued").
func (p *Plugin) HandleIPC(msg []byte) error {
	path, gzipped, err := ipcwire.DecodeCore(msg)
	if err != nil {
		return daemonerr.Wrap("coredump.handleIPC", daemonerr.CodeIPC, err)
	}
	if path == "" {
		return daemonerr.New("coredump.handleIPC", daemonerr.CodeIPC, "CORE datagram missing path")
	}

	now := p.now()
	if !p.limiter.CheckEvent(now) {
		p.log.WithOp("coredump.handleIPC").Warnf("coredump rate limit exceeded, discarding %s", path)
		_ = os.Remove(path)
		if p.obs != nil {
			p.obs.ObserveEnqueue("coredump", false)
		}
		return nil
	}

	body, err := json.Marshal(CoreUploadRecord{Path: path, Gzipped: gzipped, QueuedAt: now})
	if err != nil {
		return daemonerr.Wrap("coredump.handleIPC", daemonerr.CodeConfig, err)
	}

	queued, err := p.q.Write(queue.RecordTypeCoreUpload, body)
	if err != nil {
		return err
	}
	if !queued {
		p.log.WithOp("coredump.handleIPC").Warnf("queue full, discarding coredump reference %s", path)
		_ = os.Remove(path)
	}
	if p.obs != nil {
		p.obs.ObserveEnqueue("coredump", queued)
	}
	return nil
}
