// Package svcmgr implements the service-manager integration the spec
// abstracts as "a restart(service) / signal(service, sig) capability"
// (spec §3), shelling out to systemctl the way the original's
// ticos_systemd.c does via sd-bus, but kept on the command-line tool
// since no systemd D-Bus binding appears anywhere in the retrieval pack.
package svcmgr

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/ticos-device/ticosd/internal/daemonerr"
	"github.com/ticos-device/ticosd/internal/interfaces"
)

// Systemd implements interfaces.Restarter by invoking systemctl. log may be
// nil, in which case restart/signal actions simply aren't logged.
type Systemd struct {
	log interfaces.Logger
}

func New(log interfaces.Logger) *Systemd { return &Systemd{log: log} }

func (s *Systemd) printf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// Restart runs `systemctl restart <service>`.
func (s *Systemd) Restart(service string) error {
	s.printf("svcmgr: restarting %s", service)
	cmd := exec.Command("systemctl", "restart", service)
	if out, err := cmd.CombinedOutput(); err != nil {
		return daemonerr.Wrap("svcmgr.restart", daemonerr.CodeFilesystem,
			fmt.Errorf("systemctl restart %s: %w (%s)", service, err, out))
	}
	return nil
}

// Signal finds the named service's main PID via systemctl show and sends
// it sig directly, mirroring the original's use of sd_bus to read
// MainPID before signaling a unit's process.
func (s *Systemd) Signal(service string, sig os.Signal) error {
	s.printf("svcmgr: signaling %s with %v", service, sig)
	out, err := exec.Command("systemctl", "show", "--property=MainPID", "--value", service).Output()
	if err != nil {
		return daemonerr.Wrap("svcmgr.signal", daemonerr.CodeFilesystem, err)
	}
	pid, err := strconv.Atoi(trimNewline(out))
	if err != nil || pid <= 0 {
		return daemonerr.New("svcmgr.signal", daemonerr.CodeFilesystem,
			fmt.Sprintf("unit %s has no running MainPID", service))
	}

	ss, ok := sig.(syscall.Signal)
	if !ok {
		return daemonerr.New("svcmgr.signal", daemonerr.CodeFilesystem, "unsupported signal type")
	}
	if err := syscall.Kill(pid, ss); err != nil {
		return daemonerr.Wrap("svcmgr.signal", daemonerr.CodeFilesystem, err)
	}
	return nil
}

func trimNewline(b []byte) string {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return string(b)
}
