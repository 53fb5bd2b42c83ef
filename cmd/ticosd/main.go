// Command ticosd is the device-side telemetry daemon: it collects reboot
// reasons, coredumps, and device attributes; transforms them into the
// cloud wire format; persists them in a bounded on-disk queue; and
// uploads them with retry/backoff (spec §1 Overview).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ticos-device/ticosd/internal/attrplugin"
	"github.com/ticos-device/ticosd/internal/collectdplugin"
	"github.com/ticos-device/ticosd/internal/config"
	"github.com/ticos-device/ticosd/internal/constants"
	"github.com/ticos-device/ticosd/internal/coredumpplugin"
	"github.com/ticos-device/ticosd/internal/identity"
	"github.com/ticos-device/ticosd/internal/ipcsock"
	"github.com/ticos-device/ticosd/internal/logging"
	"github.com/ticos-device/ticosd/internal/metrics"
	"github.com/ticos-device/ticosd/internal/pidfile"
	"github.com/ticos-device/ticosd/internal/plugin"
	"github.com/ticos-device/ticosd/internal/queue"
	"github.com/ticos-device/ticosd/internal/ratelimit"
	"github.com/ticos-device/ticosd/internal/rebootplugin"
	"github.com/ticos-device/ticosd/internal/supervisor"
	"github.com/ticos-device/ticosd/internal/swupdateplugin"
	"github.com/ticos-device/ticosd/internal/upload"
)

func main() {
	var (
		configPath   = flag.String("config", constants.DefaultConfigPath, "path to ticosd.conf")
		overlayPath  = flag.String("runtime-config", "/etc/ticosd.runtime.conf", "path to the runtime overlay config")
		identityPath = flag.String("identity", "/etc/device_settings.json", "path to device_settings.json")
		dataDir      = flag.String("data-dir", "/var/lib/ticosd", "persisted state directory")
		queuePath    = flag.String("queue", "/var/lib/ticosd/queue", "persistent queue file path")
		pidFilePath  = flag.String("pidfile", constants.PidFilePath, "pidfile path")
		socketPath   = flag.String("socket", constants.IPCSocketPath, "control socket path")
		verbose      = flag.Bool("v", false, "verbose (debug-level) logging")
	)
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *verbose {
		logCfg.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logCfg)
	logging.SetDefault(logger)

	id, err := identity.Load(*identityPath)
	if err != nil {
		logger.Error("failed to load device identity", "error", err)
		os.Exit(1)
	}

	cfgStore, err := config.Load(*configPath, *overlayPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := cfgStore.Current()

	pf, err := pidfile.Acquire(*pidFilePath)
	if err != nil {
		logger.Error("failed to acquire pidfile", "error", err)
		os.Exit(1)
	}
	defer pf.Release()

	if err := os.MkdirAll(*dataDir, 0o750); err != nil {
		logger.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	queueSize := int64(cfg.QueueSizeKiB) * 1024
	if queueSize <= 0 {
		queueSize = constants.DefaultQueueSizeKiB * 1024
	}
	q, err := queue.Open(*queuePath, queueSize)
	if err != nil {
		logger.Error("failed to open persistent queue", "error", err)
		os.Exit(1)
	}
	defer q.Close()

	if !cfg.EnableDataCollection {
		logger.Info("data collection disabled, clearing queue")
		if err := q.Reset(); err != nil {
			logger.Error("failed to reset queue", "error", err)
		}
	}

	watcher, err := config.NewWatcher(cfgStore, logger)
	if err != nil {
		logger.Error("failed to start config watcher", "error", err)
		os.Exit(1)
	}
	defer watcher.Close()

	sock, err := ipcsock.Listen(*socketPath)
	if err != nil {
		logger.Error("failed to listen on control socket", "error", err)
		os.Exit(1)
	}
	defer sock.Close()

	rateLimitCount := cfg.CoredumpRateLimitCount
	rateLimitWindow := cfg.CoredumpRateLimitSecs
	if cfg.EnableDevMode {
		rateLimitCount = 0 // dev_mode forces N = 0, disabling the limiter
	}
	limiter, err := ratelimit.New(rateLimitCount, rateLimitWindow, filepath.Join(*dataDir, "coredump_rate_limit"))
	if err != nil {
		logger.Error("failed to load rate limiter state", "error", err)
		os.Exit(1)
	}

	rebootID := rebootplugin.Identity{
		SoftwareType:    id.SoftwareType,
		SoftwareVersion: id.SoftwareVersion,
		HardwareVersion: id.HardwareVersion,
		SdkVersion:      id.SdkVersion,
	}
	observer := metrics.NewLoggingObserver(logger)

	rebootP := rebootplugin.New(*dataDir, cfg.LastRebootReasonFile, rebootID, logger, q, observer)
	if err := rebootP.Startup(); err != nil {
		logger.Error("reboot plugin startup failed", "error", err)
	}

	table := plugin.NewTable(logger,
		attrplugin.New(logger, q, observer),
		coredumpplugin.New(logger, q, limiter, observer),
		collectdplugin.New(),
		swupdateplugin.New(),
	)

	upClient := upload.New(cfg.BaseURL, id.ProjectKey, logger)
	super := supervisor.New(q, upClient, table, cfgStore, logger, id, observer)

	go super.RunIPCReceiver(sock)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT, syscall.SIGUSR1)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGUSR1:
				super.Wake()
			default:
				logger.Info("received shutdown signal", "signal", sig.String())
				_ = sock.ShutdownRead()
				super.Stop()
				return
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("ticosd starting", "device_serial", id.DeviceSerial, "software_version", id.SoftwareVersion)
	super.Run(ctx, constants.BackoffInitial)
	logger.Info("ticosd stopped")
	fmt.Fprintln(os.Stderr, "ticosd: shutdown complete")
}
