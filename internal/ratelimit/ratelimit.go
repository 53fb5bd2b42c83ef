// Package ratelimit implements the fixed-size timestamp-ring admission
// control used to gate coredump acceptance (spec §4.6), grounded on the
// original implementation's coredump_ratelimiter.c.
package ratelimit

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ticos-device/ticosd/internal/daemonerr"
)

// Limiter is a fixed-size ring of N timestamps. Admission is allowed iff
// now - oldest >= window; N == 0 or W == 0 disables the limiter entirely
// (spec: "dev_mode forces N = 0 disabling the limiter").
type Limiter struct {
	history []int64 // history[0] is most recent, history[N-1] is oldest
	window  int64
	path    string
}

// New constructs a limiter with capacity count and window seconds, loading
// any prior state from persistPath (empty string disables persistence).
func New(count int, window int64, persistPath string) (*Limiter, error) {
	l := &Limiter{history: make([]int64, count), window: window, path: persistPath}
	if persistPath != "" {
		if err := l.load(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// CheckEvent evaluates whether an event at time now is admitted, updating
// the ring and persisting state on admission (spec §4.6 algorithm).
func (l *Limiter) CheckEvent(now int64) bool {
	n := len(l.history)
	if n == 0 || l.window == 0 {
		return true
	}
	if l.history[n-1]+l.window > now {
		return false
	}
	copy(l.history[1:], l.history[:n-1])
	l.history[0] = now
	if l.path != "" {
		_ = l.save() // best-effort: a failed persist must not block admission
	}
	return true
}

func (l *Limiter) load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // missing file: treat as zeros
		}
		return daemonerr.Wrap("ratelimit.load", daemonerr.CodeFilesystem, err)
	}
	tokens := strings.Fields(string(data))
	for i := 0; i < len(l.history) && i < len(tokens); i++ {
		v, err := strconv.ParseInt(tokens[i], 10, 64)
		if err != nil {
			// Corrupt file: stop at the first bad token, leave the rest zero.
			break
		}
		l.history[i] = v
	}
	return nil
}

func (l *Limiter) save() error {
	parts := make([]string, len(l.history))
	for i, v := range l.history {
		parts[i] = strconv.FormatInt(v, 10)
	}
	data := []byte(strings.Join(parts, " "))
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return daemonerr.Wrap("ratelimit.save", daemonerr.CodeFilesystem, err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return daemonerr.Wrap("ratelimit.save", daemonerr.CodeFilesystem, err)
	}
	return nil
}

// String returns a debug summary, useful in daemon logs.
func (l *Limiter) String() string {
	return fmt.Sprintf("ratelimit(n=%d, window=%ds)", len(l.history), l.window)
}
