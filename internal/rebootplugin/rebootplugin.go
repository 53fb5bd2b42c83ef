// Package rebootplugin implements the reboot-reason plugin (spec §6, §7
// scenario S2), grounded on the original's plugins/reboot/reboot.c: on
// startup, resolve the reboot reason from a priority-ordered list of
// sources, and — if this boot hasn't already been tracked — enqueue one
// RebootEvent and record the boot as tracked.
//
// Per spec §9 design note (b) ("reboot_reason.h appears twice with
// inconsistent type name ... treat the enum-typedef as canonical"), the
// Go type is named RebootReason with no Hungarian prefix.
package rebootplugin

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ticos-device/ticosd/internal/daemonerr"
	"github.com/ticos-device/ticosd/internal/interfaces"
	"github.com/ticos-device/ticosd/internal/logging"
	"github.com/ticos-device/ticosd/internal/queue"
)

// RebootReason mirrors the original firmware's reboot reason codes. Only
// the subset referenced by this plugin is modeled; unrecognized codes
// from a reason file pass through as their raw integer value.
type RebootReason uint32

const (
	ReasonUnknown        RebootReason = 0x0000
	ReasonUserReset      RebootReason = 0x0001
	ReasonFirmwareUpdate RebootReason = 0x0002
	ReasonKernelPanic    RebootReason = 0x8001
	ReasonHardFault      RebootReason = 0x8005
)

func (r RebootReason) String() string {
	switch r {
	case ReasonUnknown:
		return "Unknown"
	case ReasonUserReset:
		return "UserReset"
	case ReasonFirmwareUpdate:
		return "FirmwareUpdate"
	case ReasonKernelPanic:
		return "KernelPanic"
	case ReasonHardFault:
		return "HardFault"
	default:
		return fmt.Sprintf("Unrecognized(0x%04x)", uint32(r))
	}
}

// Identity carries the fields the event envelope needs from device/
// software identity (spec §3).
type Identity struct {
	SoftwareType    string
	SoftwareVersion string
	HardwareVersion string
	SdkVersion      string
}

// pstoreDmesgFile is the ramoops dmesg dump the kernel leaves behind after
// an oops-triggered reboot; its mere presence (not its contents — pstore
// log extraction is reboot_process_pstore.c's job, an out-of-process
// hardware-reboot-reason collector per spec §1's external collaborators)
// is enough to report a kernel panic.
const pstoreDmesgFile = "/sys/fs/pstore/dmesg-ramoops-0"

type eventInfo struct {
	Reason uint32 `json:"Reason"`
}

type rebootEvent struct {
	Type            string    `json:"Type"`
	SoftwareType    string    `json:"SoftwareType"`
	SoftwareVersion string    `json:"SoftwareVersion"`
	HardwareVersion string    `json:"HardwareVersion"`
	SdkVersion      string    `json:"SdkVersion"`
	EventInfo       eventInfo `json:"EventInfo"`
	UserInfo        struct{} `json:"UserInfo"`
}

// Plugin owns the reboot-reason files under dataDir.
type Plugin struct {
	dataDir            string
	customerReasonFile string
	identity           Identity
	log                *logging.Logger
	q                  *queue.Queue
	obs                interfaces.Observer
}

// New constructs the reboot plugin. dataDir is the daemon's persisted
// state directory (spec §6 "Persisted state layout"). customerReasonFile
// is the config key reboot_plugin.last_reboot_reason_file (spec §6); an
// empty string disables that source, matching the original's behavior
// when the key is absent from ticosd.conf. obs may be nil.
func New(dataDir, customerReasonFile string, identity Identity, log *logging.Logger, q *queue.Queue, obs interfaces.Observer) *Plugin {
	return &Plugin{dataDir: dataDir, customerReasonFile: customerReasonFile, identity: identity, log: log, q: q, obs: obs}
}

func (p *Plugin) Name() string { return "reboot" }

func (p *Plugin) path(name string) string {
	return p.dataDir + "/" + name
}

// readAndClearReasonFile reads and clears one candidate reboot-reason file. It
// mirrors prv_reboot_read_and_clear_reboot_reason_from_file: read the
// integer, then unlink regardless of parse success so a corrupt file
// doesn't wedge every future boot.
func readAndClearReasonFile(path string) (RebootReason, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	defer os.Remove(path)

	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return RebootReason(n), true
}

// readAndClearReasonPstore mirrors prv_reboot_read_and_clear_reboot_reason_pstore:
// the mere presence of a ramoops dmesg dump means the kernel panicked on
// its way down. Extracting and archiving the dump's contents is
// reboot_process_pstore.c's job upstream, a hardware reboot-reason
// collector outside this plugin's scope (spec §1).
func readAndClearReasonPstore() (RebootReason, bool) {
	if _, err := os.Stat(pstoreDmesgFile); err != nil {
		return 0, false
	}
	return ReasonKernelPanic, true
}

// resolveReason checks sources in priority order (high to low) — pstore,
// then the customer-configured file, then the internal file — and keeps
// the first found, logging any lower-priority reasons it discards — the
// same "first wins, rest logged and dropped" policy as
// prv_resolve_reboot_reason.
func (p *Plugin) resolveReason() RebootReason {
	sources := []struct {
		name string
		read func() (RebootReason, bool)
	}{
		{"pstore", readAndClearReasonPstore},
		{"custom", func() (RebootReason, bool) {
			if p.customerReasonFile == "" {
				return 0, false
			}
			return readAndClearReasonFile(p.customerReasonFile)
		}},
		{"internal", func() (RebootReason, bool) { return readAndClearReasonFile(p.path("lastrebootreason")) }},
	}

	var resolved RebootReason
	found := false
	for _, src := range sources {
		reason, ok := src.read()
		if !ok {
			continue
		}
		if !found {
			resolved = reason
			found = true
			p.log.Infof("reboot: using reason %s from %s source", reason, src.name)
		} else {
			p.log.Infof("reboot: discarded reason %s from %s source", reason, src.name)
		}
	}
	return resolved
}

// currentBootID reads the kernel's boot UUID, the same identity the
// original reads via ticos_linux_boot_id_read.
func currentBootID() (string, error) {
	data, err := os.ReadFile("/proc/sys/kernel/random/boot_id")
	if err != nil {
		return "", daemonerr.Wrap("reboot.bootID", daemonerr.CodeFilesystem, err)
	}
	id := strings.TrimSpace(string(data))
	if _, err := uuid.Parse(id); err != nil {
		return "", daemonerr.New("reboot.bootID", daemonerr.CodeFilesystem, "boot_id is not a valid UUID")
	}
	return id, nil
}

func (p *Plugin) isUntrackedBootID(bootID string) bool {
	data, err := os.ReadFile(p.path("last_tracked_boot_id"))
	if err != nil {
		return true
	}
	return strings.TrimSpace(string(data)) != bootID
}

func (p *Plugin) markTracked(bootID string) {
	if err := os.WriteFile(p.path("last_tracked_boot_id"), []byte(bootID), 0o640); err != nil {
		p.log.WithOp("reboot.markTracked").Errorf("%v", err)
	}
}

// Startup resolves the reboot reason and, if this boot_id hasn't been
// tracked yet, enqueues one RebootEvent record (spec §7 scenario S2).
func (p *Plugin) Startup() error {
	bootID, err := currentBootID()
	if err != nil {
		return err
	}
	if !p.isUntrackedBootID(bootID) {
		return nil
	}
	defer p.markTracked(bootID)

	reason := p.resolveReason()
	body, err := json.Marshal(rebootEvent{
		Type:            "Trace",
		SoftwareType:    p.identity.SoftwareType,
		SoftwareVersion: p.identity.SoftwareVersion,
		HardwareVersion: p.identity.HardwareVersion,
		SdkVersion:      p.identity.SdkVersion,
		EventInfo:       eventInfo{Reason: uint32(reason)},
	})
	if err != nil {
		return daemonerr.Wrap("reboot.buildEvent", daemonerr.CodeConfig, err)
	}

	ok, err := p.q.Write(queue.RecordTypeRebootEvent, body)
	if err != nil {
		return err
	}
	if !ok {
		p.log.WithOp("reboot.startup").Warnf("queue full, reboot event dropped")
	}
	if p.obs != nil {
		p.obs.ObserveEnqueue("reboot_event", ok)
	}
	return nil
}
