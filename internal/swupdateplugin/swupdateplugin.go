// Package swupdateplugin is a stub shell for firmware-update event
// reporting. Driving an actual update is an explicit spec Non-goal; this
// plugin only occupies its table slot so Reload/Destroy sweeps have a
// consistent entry to pass over, grounded on the original's
// plugins/swupdate layout.
package swupdateplugin

// Plugin is a no-op placeholder: no IPC prefix is claimed because
// nothing in scope sends swupdate-originated datagrams yet.
type Plugin struct{}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "swupdate" }

// Reload is a no-op: there is no swupdate-specific config to react to.
func (p *Plugin) Reload() error { return nil }

// Destroy is a no-op: no held resources.
func (p *Plugin) Destroy() {}
