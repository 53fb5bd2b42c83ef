// Package supervisor implements ticosd's main drain loop: pull one record
// at a time off the persistent queue, upload it, and apply an
// exponential backoff on failure that caps at the configured refresh
// interval (spec §4.10). It exposes Wake and Stop, which cmd/ticosd's
// signal handler calls (SIGUSR1 wakes the loop early; SIGTERM/SIGHUP/SIGINT
// stop it), and the IPC receive loop that feeds datagrams to the plugin
// table.
package supervisor

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"time"

	"github.com/ticos-device/ticosd/internal/attrplugin"
	"github.com/ticos-device/ticosd/internal/config"
	"github.com/ticos-device/ticosd/internal/constants"
	"github.com/ticos-device/ticosd/internal/coredumpplugin"
	"github.com/ticos-device/ticosd/internal/identity"
	"github.com/ticos-device/ticosd/internal/interfaces"
	"github.com/ticos-device/ticosd/internal/ipcsock"
	"github.com/ticos-device/ticosd/internal/logging"
	"github.com/ticos-device/ticosd/internal/plugin"
	"github.com/ticos-device/ticosd/internal/queue"
	"github.com/ticos-device/ticosd/internal/upload"
)

// Supervisor wires the queue, upload client, and plugin table together
// and runs the drain loop described in spec §4.10's pseudocode.
type Supervisor struct {
	Queue    *queue.Queue
	Upload   *upload.Client
	Plugins  *plugin.Table
	Config   *config.Store
	Log      *logging.Logger
	Identity *identity.Identity
	Observer interfaces.Observer

	wake     chan struct{}
	stop     chan struct{}
	stopOnce func()
}

// New constructs a Supervisor ready to Run. obs may be nil, in which case
// upload and drain outcomes simply go unobserved.
func New(q *queue.Queue, up *upload.Client, plugins *plugin.Table, cfg *config.Store, log *logging.Logger, id *identity.Identity, obs interfaces.Observer) *Supervisor {
	return &Supervisor{
		Queue: q, Upload: up, Plugins: plugins, Config: cfg, Log: log, Identity: id, Observer: obs,
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
	}
}

// observeDrain reports a drain-loop outcome if an Observer is wired.
func (s *Supervisor) observeDrain(success bool) {
	if s.Observer != nil {
		s.Observer.ObserveDrainOutcome(success)
	}
}

// Wake signals the drain loop to stop waiting out its backoff and retry
// immediately. It is what SIGUSR1 and a ticosctl "sync" both trigger.
func (s *Supervisor) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Stop requests the drain loop to exit at its next wait point.
func (s *Supervisor) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// backoffDelay implements spec invariant 7:
// min(BACKOFF_INITIAL * 2^(m-1), refresh_interval_seconds), where m is
// the number of consecutive failed drain attempts.
func backoffDelay(consecutiveFailures int, initial time.Duration, cap time.Duration) time.Duration {
	if consecutiveFailures <= 0 {
		return 0
	}
	scaled := float64(initial) * math.Pow(2, float64(consecutiveFailures-1))
	if scaled > float64(cap) || scaled <= 0 {
		return cap
	}
	return time.Duration(scaled)
}

// Run drains the queue until Stop is called. Each iteration pulls the
// head record, uploads it, and on success advances the queue. A
// non-retryable failure drops the record; a retryable failure leaves it in
// place and waits out the current backoff (or until Wake or Stop) before
// retrying the same record.
func (s *Supervisor) Run(ctx context.Context, backoffInitial time.Duration) {
	consecutiveFailures := 0
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		cfg := s.Config.Current()
		refreshCap := time.Duration(cfg.RefreshIntervalSeconds) * time.Second
		if refreshCap <= 0 {
			refreshCap = constants.DefaultRefreshIntervalSeconds * time.Second
		}

		rec, ok, err := s.Queue.ReadHead()
		if err != nil {
			s.Log.WithOp("supervisor.run").Errorf("queue read failed: %v", err)
			consecutiveFailures++
		} else if !ok {
			if !s.waitFor(refreshCap) {
				return
			}
			continue
		} else {
			result := s.uploadOne(ctx, rec)
			switch result {
			case upload.Ok:
				if err := s.Queue.CompleteRead(); err != nil {
					s.Log.WithOp("supervisor.run").Errorf("queue advance failed: %v", err)
				}
				consecutiveFailures = 0
				s.observeDrain(true)
				continue
			case upload.ErrorNoRetry:
				// Permanently undeliverable: drop it so one bad record
				// doesn't wedge the queue forever.
				if err := s.Queue.CompleteRead(); err != nil {
					s.Log.WithOp("supervisor.run").Errorf("queue advance failed: %v", err)
				}
				consecutiveFailures = 0
				s.observeDrain(false)
				continue
			case upload.ErrorRetryLater:
				consecutiveFailures++
				s.observeDrain(false)
			}
		}

		delay := backoffDelay(consecutiveFailures, backoffInitial, refreshCap)
		if !s.waitFor(delay) {
			return
		}
	}
}

// waitFor blocks for d (0 returns immediately) unless Wake or Stop fires
// first. It returns false if the loop should exit.
func (s *Supervisor) waitFor(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.stop:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.wake:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Supervisor) uploadOne(ctx context.Context, rec queue.Record) upload.Result {
	start := time.Now()
	result := s.doUpload(ctx, rec)
	if s.Observer != nil {
		s.Observer.ObserveUpload(uint64(len(rec.Payload)), uint64(time.Since(start).Nanoseconds()), result == upload.Ok)
	}
	return result
}

func (s *Supervisor) doUpload(ctx context.Context, rec queue.Record) upload.Result {
	switch rec.Type {
	case queue.RecordTypeRebootEvent:
		result, err := s.Upload.PostEvents(ctx, rec.Payload)
		if err != nil {
			return upload.ErrorRetryLater
		}
		return result
	case queue.RecordTypeAttributes:
		var ar attrplugin.Record
		if err := json.Unmarshal(rec.Payload, &ar); err != nil {
			return upload.ErrorNoRetry
		}
		capturedDate := time.Unix(int64(ar.TimestampEpochS), 0).UTC().Format(time.RFC3339)
		result, err := s.Upload.PatchAttributes(ctx, s.Identity.DeviceSerial, capturedDate, ar.JSONBody)
		if err != nil {
			return upload.ErrorRetryLater
		}
		return result
	case queue.RecordTypeCoreUpload:
		return s.uploadCore(ctx, rec.Payload)
	default:
		s.Log.WithOp("supervisor.uploadOne").Errorf("unknown record type %d", rec.Type)
		return upload.ErrorNoRetry
	}
}

func (s *Supervisor) uploadCore(ctx context.Context, payload []byte) upload.Result {
	var ref coredumpplugin.CoreUploadRecord
	if err := json.Unmarshal(payload, &ref); err != nil {
		return upload.ErrorNoRetry
	}
	f, err := os.Open(ref.Path)
	if err != nil {
		return upload.ErrorNoRetry
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return upload.ErrorNoRetry
	}

	result, err := s.Upload.UploadCoreFile(ctx, s.Identity.DeviceSerial, s.Identity.HardwareVersion,
		s.Identity.SoftwareType, s.Identity.SoftwareVersion, f, info.Size(), ref.Gzipped)
	if err != nil {
		return upload.ErrorRetryLater
	}
	if result == upload.Ok {
		_ = os.Remove(ref.Path)
	}
	return result
}

// RunIPCReceiver loops on sock.Recv, dispatching each datagram to the
// plugin table, until the socket is shut down for reads (spec §4.10's
// "IPC receiver goroutine").
func (s *Supervisor) RunIPCReceiver(sock *ipcsock.Socket) {
	buf := make([]byte, ipcsock.MaxDatagramSize)
	for {
		n, err := sock.Recv(buf)
		if err != nil {
			return
		}
		msg := make([]byte, n)
		copy(msg, buf[:n])
		s.Plugins.Dispatch(msg)
	}
}
