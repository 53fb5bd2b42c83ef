// Command ticosctl is the operator-facing control CLI for ticosd (spec
// §6): it flips runtime config toggles, injects test events over the
// control socket, and reports the daemon's effective settings.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ticos-device/ticosd/internal/config"
	"github.com/ticos-device/ticosd/internal/constants"
	"github.com/ticos-device/ticosd/internal/identity"
	"github.com/ticos-device/ticosd/internal/interfaces"
	"github.com/ticos-device/ticosd/internal/ipcsock"
	"github.com/ticos-device/ticosd/internal/ipcwire"
	"github.com/ticos-device/ticosd/internal/svcmgr"
)

const version = "ticosctl 1.0.0"

var (
	configPath   = flag.String("config", constants.DefaultConfigPath, "path to ticosd.conf")
	overlayPath  = flag.String("runtime-config", "/etc/ticosd.runtime.conf", "path to the runtime overlay config")
	identityPath = flag.String("identity", "/etc/device_settings.json", "path to device_settings.json")
	dataDir      = flag.String("data-dir", "/var/lib/ticosd", "persisted state directory")
	socketPath   = flag.String("socket", constants.IPCSocketPath, "control socket path")
	pidFilePath  = flag.String("pidfile", constants.PidFilePath, "daemon pidfile path")
	restartSvc   = flag.Bool("restart-service", false, "restart ticosd via systemctl after changing a runtime toggle (usually unnecessary: ticosd hot-reloads config changes on its own)")
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if len(flag.Args()) == 0 {
		printUsage()
		os.Exit(2)
	}

	cmd := flag.Args()[0]
	args := flag.Args()[1:]

	var err error
	switch cmd {
	case "--version", "version":
		fmt.Println(version)
		return
	case "--help", "help":
		printUsage()
		return
	case "enable-data-collection":
		err = setDataCollection(true, *restartSvc)
	case "disable-data-collection":
		err = setDataCollection(false, *restartSvc)
	case "enable-dev-mode":
		err = setDevMode(true, *restartSvc)
	case "disable-dev-mode":
		err = setDevMode(false, *restartSvc)
	case "reboot":
		err = doReboot(args)
	case "request-metrics":
		err = ipcsock.Send(*socketPath, ipcwire.EncodeSimple(ipcwire.TagCollectd, nil))
	case "sync":
		err = doSync()
	case "trigger-coredump":
		err = triggerCoredump(args)
	case "write-attributes":
		err = writeAttributes(args)
	case "show-settings":
		err = showSettings()
	default:
		fmt.Fprintf(os.Stderr, "ticosctl: unknown command %q\n", cmd)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ticosctl: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: ticosctl [flags] <command> [args]

commands:
  enable-data-collection
  disable-data-collection
  enable-dev-mode
  disable-dev-mode
  reboot [--reason N]
  request-metrics
  sync
  trigger-coredump [segfault|divide-by-zero]
  write-attributes KEY=VALUE [KEY=VALUE ...]
  show-settings
  --version
  --help`)
	flag.PrintDefaults()
}

func loadConfigStore() (*config.Store, error) {
	return config.Load(*configPath, *overlayPath)
}

// restartIfRequested restarts the ticosd service via the Restarter
// capability. ticosd picks up overlay changes on its own through the
// config hot-reload watcher, so this is only needed on a filesystem
// where inotify isn't available; --restart-service opts in explicitly.
func restartIfRequested(restarter interfaces.Restarter, requested bool) error {
	if !requested {
		return nil
	}
	return restarter.Restart("ticosd")
}

func setDataCollection(enabled, restart bool) error {
	store, err := loadConfigStore()
	if err != nil {
		return err
	}
	if err := store.SetDataCollectionEnabled(enabled); err != nil {
		return err
	}
	return restartIfRequested(svcmgr.New(nil), restart)
}

func setDevMode(enabled, restart bool) error {
	store, err := loadConfigStore()
	if err != nil {
		return err
	}
	if err := store.SetDevModeEnabled(enabled); err != nil {
		return err
	}
	return restartIfRequested(svcmgr.New(nil), restart)
}

// doReboot writes the requested reboot reason where the reboot plugin
// will pick it up on the next boot, then reboots the device. Passing
// --reason 0 still records a reboot event tagged Unknown, matching the
// original's behavior when no reason is supplied.
func doReboot(args []string) error {
	fs := flag.NewFlagSet("reboot", flag.ExitOnError)
	reason := fs.Int("reason", 0, "reboot reason code to record for next boot")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *dataDir + "/lastrebootreason"
	if err := os.WriteFile(path, []byte(strconv.Itoa(*reason)), 0o640); err != nil {
		return fmt.Errorf("writing reboot reason: %w", err)
	}
	return exec.Command("reboot").Run()
}

// doSync reads the daemon's pidfile and sends SIGUSR1, the signal the
// supervisor's drain loop treats as "stop waiting and retry now"
// (spec §4.10).
func doSync() error {
	data, err := os.ReadFile(*pidFilePath)
	if err != nil {
		return fmt.Errorf("reading pidfile: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("parsing pidfile: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGUSR1)
}

// triggerCoredump forks a short-lived child process that deliberately
// crashes, producing a real kernel coredump the system's
// core_pattern handler will route to ticos-coredump-handler.
func triggerCoredump(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: trigger-coredump [segfault|divide-by-zero]")
	}
	switch args[0] {
	case "segfault":
		return exec.Command("sh", "-c", "kill -SEGV $$").Run()
	case "divide-by-zero":
		return exec.Command("sh", "-c", "kill -FPE $$").Run()
	default:
		return fmt.Errorf("unknown crash kind %q", args[0])
	}
}

func writeAttributes(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: write-attributes KEY=VALUE [KEY=VALUE ...]")
	}
	attrs := make(map[string]any, len(args))
	for _, kv := range args {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("malformed attribute %q, expected KEY=VALUE", kv)
		}
		attrs[k] = parseAttributeValue(v)
	}
	body, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encoding attributes: %w", err)
	}

	msg := ipcwire.EncodeAttributes(uint64(time.Now().Unix()), body)
	return ipcsock.Send(*socketPath, msg)
}

// parseAttributeValue classifies a raw "KEY=VALUE" value token so
// write-attributes emits numeric and boolean attributes unquoted
// (spec §8 S1: "num=42" must marshal as the JSON integer 42, not "42").
func parseAttributeValue(v string) any {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	return v
}

func showSettings() error {
	id, err := identity.Load(*identityPath)
	if err != nil {
		return err
	}
	store, err := loadConfigStore()
	if err != nil {
		return err
	}
	cfg := store.Current()

	fmt.Printf("device_serial:             %s\n", id.DeviceSerial)
	fmt.Printf("hardware_version:          %s\n", id.HardwareVersion)
	fmt.Printf("software_type:             %s\n", id.SoftwareType)
	fmt.Printf("software_version:          %s\n", id.SoftwareVersion)
	fmt.Printf("base_url:                  %s\n", cfg.BaseURL)
	fmt.Printf("refresh_interval_seconds:  %d\n", cfg.RefreshIntervalSeconds)
	fmt.Printf("queue_size_kib:            %d\n", cfg.QueueSizeKiB)
	fmt.Printf("enable_data_collection:    %t\n", cfg.EnableDataCollection)
	fmt.Printf("enable_dev_mode:           %t\n", cfg.EnableDevMode)
	return nil
}
