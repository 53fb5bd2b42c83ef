// Package plugin implements the plugin dispatch fabric (spec §4.9):
// a table of named capabilities routed by IPC tag prefix, with reload
// and destroy sweeps driven by the supervisor.
//
// Per spec §9 design note ("Plugin polymorphism"), the original's
// function-pointer struct becomes a capability interface with optional
// Reload/Destroy/HandleIPC methods, and the compile-time table becomes a
// statically-built slice of such capabilities — a plugin that is not
// compiled in is simply absent from the slice, not a null entry.
package plugin

import "github.com/ticos-device/ticosd/internal/logging"

// Capability is what a plugin's init function returns: a handle plus
// whichever optional operations it supports.
type Capability interface {
	// Name returns the plugin's table name, used in reload/destroy logs.
	Name() string
}

// Reloadable is implemented by plugins that react to config changes or
// SIGHUP.
type Reloadable interface {
	Reload() error
}

// Destroyable is implemented by plugins with teardown state.
type Destroyable interface {
	Destroy()
}

// IPCHandler is implemented by plugins reachable over the control socket.
type IPCHandler interface {
	// IPCPrefix is the ASCII tag (without trailing NUL) this plugin's
	// datagrams are routed by.
	IPCPrefix() string
	HandleIPC(msg []byte) error
}

// Entry is one row of the compile-time plugin table.
type Entry struct {
	Cap Capability
}

// Table is the ordered set of active plugins. Order matters for Reload
// (table order) and Destroy (reverse table order), per spec §4.9.
type Table struct {
	entries []Entry
	log     *logging.Logger
}

// NewTable builds a table from already-initialized plugin capabilities,
// in the order their init_fns ran.
func NewTable(log *logging.Logger, caps ...Capability) *Table {
	entries := make([]Entry, 0, len(caps))
	for _, c := range caps {
		entries = append(entries, Entry{Cap: c})
	}
	return &Table{entries: entries, log: log}
}

// Dispatch routes msg to the single plugin whose IPCPrefix matches its
// leading bytes. No match logs a warning and drops the datagram
// (spec §4.9).
func (t *Table) Dispatch(msg []byte) {
	for _, e := range t.entries {
		h, ok := e.Cap.(IPCHandler)
		if !ok {
			continue
		}
		prefix := append([]byte(h.IPCPrefix()), 0)
		if len(msg) < len(prefix) || string(msg[:len(prefix)]) != string(prefix) {
			continue
		}
		if err := h.HandleIPC(msg); err != nil {
			t.log.WithOp("plugin.dispatch").Errorf("%s: %v", e.Cap.Name(), err)
		}
		return
	}
	t.log.WithOp("plugin.dispatch").Warnf("no plugin matched IPC datagram (%d bytes)", len(msg))
}

// Reload calls every plugin's Reload in table order. A failure is logged
// but does not abort the sweep (spec §4.9).
func (t *Table) Reload() {
	for _, e := range t.entries {
		r, ok := e.Cap.(Reloadable)
		if !ok {
			continue
		}
		if err := r.Reload(); err != nil {
			t.log.WithOp("plugin.reload").Errorf("%s: %v", e.Cap.Name(), err)
		}
	}
}

// Destroy calls every plugin's Destroy in reverse table order, best
// effort (spec §4.9).
func (t *Table) Destroy() {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if d, ok := t.entries[i].Cap.(Destroyable); ok {
			d.Destroy()
		}
	}
}
