// Package collectdplugin is a stub shell for the collectd metrics bridge.
// Full metrics collection is an explicit spec Non-goal; this plugin only
// occupies its slot in the plugin table and acknowledges COLLECTD
// datagrams so the control socket never logs "no plugin matched" for
// them, grounded on the original's plugins/collectd_write_http layout.
package collectdplugin

import "github.com/ticos-device/ticosd/internal/ipcwire"

// Plugin is a no-op placeholder: metrics aggregation/export is out of
// scope, but the IPC prefix is still claimed so collectd-originated
// datagrams are consumed rather than logged as unmatched.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string      { return "collectd" }
func (p *Plugin) IPCPrefix() string { return ipcwire.TagCollectd }

// HandleIPC discards the datagram. Metrics export is a Non-goal.
func (p *Plugin) HandleIPC(msg []byte) error { return nil }
