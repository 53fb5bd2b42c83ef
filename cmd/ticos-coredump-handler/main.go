// Command ticos-coredump-handler is the kernel-invoked helper registered
// via /proc/sys/kernel/core_pattern (spec §5's "out-of-process
// concurrency model"): it reads the crashing process's raw ELF coredump
// from stdin, transforms it into ticosd's gzip-compressed output format,
// writes the result under the daemon's data directory, and notifies the
// running daemon over the control socket so it can enqueue the upload.
// It never talks to the network itself and exits as soon as the
// notification is sent, keeping it small and fast on the kernel's
// core_pattern pipe.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ticos-device/ticosd/internal/constants"
	"github.com/ticos-device/ticosd/internal/coredump"
	"github.com/ticos-device/ticosd/internal/coremeta"
	"github.com/ticos-device/ticosd/internal/elfcore"
	"github.com/ticos-device/ticosd/internal/identity"
	"github.com/ticos-device/ticosd/internal/ipcsock"
	"github.com/ticos-device/ticosd/internal/ipcwire"
	"github.com/ticos-device/ticosd/internal/procmem"
)

func main() {
	var (
		dataDir      = flag.String("data-dir", "/var/lib/ticosd", "persisted state directory")
		identityPath = flag.String("identity", "/etc/device_settings.json", "path to device_settings.json")
		socketPath   = flag.String("socket", constants.IPCSocketPath, "control socket path")
	)
	flag.Parse()

	// core_pattern invokes this binary as `ticos-coredump-handler %p`,
	// the crashing process's PID; the kernel feeds the raw core image on
	// stdin.
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "ticos-coredump-handler: usage: ticos-coredump-handler <pid>")
		os.Exit(1)
	}
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ticos-coredump-handler: invalid pid %q: %v\n", args[0], err)
		os.Exit(1)
	}

	if err := run(pid, *dataDir, *identityPath, *socketPath); err != nil {
		fmt.Fprintf(os.Stderr, "ticos-coredump-handler: %v\n", err)
		os.Exit(1)
	}
}

func run(pid int, dataDir, identityPath, socketPath string) error {
	id, err := identity.Load(identityPath)
	if err != nil {
		return fmt.Errorf("loading identity: %w", err)
	}

	mem, err := procmem.Open(pid)
	if err != nil {
		return fmt.Errorf("opening /proc/%d/mem: %w", pid, err)
	}
	defer mem.Close()

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	outPath := fmt.Sprintf("%s/core-%s.elf.gz", dataDir, uuid.New().String())
	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	gz := elfcore.NewGzipSink(out)

	meta := coremeta.Metadata{
		SdkVersion:         id.SdkVersion,
		CapturedTimeEpochS: uint32(time.Now().Unix()),
		DeviceSerial:       id.DeviceSerial,
		HardwareVersion:    id.HardwareVersion,
		SoftwareType:       id.SoftwareType,
		SoftwareVersion:    id.SoftwareVersion,
	}

	result, err := coredump.Transform(os.Stdin, gz, mem, pid, meta, elfcore.Class64)
	if err != nil {
		os.Remove(outPath)
		return fmt.Errorf("transforming coredump: %w", err)
	}
	if err := gz.Close(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("closing gzip sink: %w", err)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "ticos-coredump-handler: %s\n", w)
	}

	msg := ipcwire.EncodeCore(outPath, true)
	if err := ipcsock.Send(socketPath, msg); err != nil {
		return fmt.Errorf("notifying daemon: %w", err)
	}
	return nil
}
