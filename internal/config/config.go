// Package config implements ticosd's configuration loading and hot
// reload (spec §5): a base JSON file merged with a runtime.conf overlay
// persisted by ticosctl's enable/disable commands, published as an
// atomically-swapped read-only snapshot so readers never observe a
// partially-applied reload. Grounded on the original's JSON-config
// conventions (ticosd.conf / device_settings.json) and spec §9's
// "Configuration view: read-only after startup; reloads swap an
// atomically-published snapshot".
package config

import (
	"encoding/json"
	"os"
	"sync/atomic"

	"github.com/ticos-device/ticosd/internal/daemonerr"
)

// Settings is the merged, effective configuration ticosd runs with.
// Runtime-overridable fields are pointers in overlay so an absent key
// falls back to the base file's value on merge.
type Settings struct {
	BaseURL                string `json:"base_url"`
	RefreshIntervalSeconds int    `json:"refresh_interval_seconds"`
	QueueSizeKiB           int    `json:"queue_size_kib"`
	EnableDataCollection   bool   `json:"enable_data_collection"`
	EnableDevMode          bool   `json:"enable_dev_mode"`
	CoredumpRateLimitCount int    `json:"coredump_rate_limit_count"`
	CoredumpRateLimitSecs  int64  `json:"coredump_rate_limit_window_seconds"`
	LastRebootReasonFile   string `json:"reboot_plugin_last_reboot_reason_file"`
}

// overlay mirrors the subset of Settings that ticosctl can toggle at
// runtime; persisted separately from the base config file so an upgrade
// that rewrites ticosd.conf never clobbers a device's runtime toggles.
type overlay struct {
	EnableDataCollection *bool `json:"enable_data_collection,omitempty"`
	EnableDevMode        *bool `json:"enable_dev_mode,omitempty"`
}

// Store holds the live configuration. Readers call Current(); writers
// call Reload or ApplyOverlay, both of which publish a brand new
// *Settings value atomically so an in-flight reader never observes a
// torn read.
type Store struct {
	basePath    string
	overlayPath string
	current     atomic.Pointer[Settings]
}

// Load reads basePath and overlayPath (if present) and publishes the
// initial snapshot.
func Load(basePath, overlayPath string) (*Store, error) {
	s := &Store{basePath: basePath, overlayPath: overlayPath}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the presently active, read-only settings snapshot.
// The returned pointer must not be mutated.
func (s *Store) Current() *Settings {
	return s.current.Load()
}

// Reload re-reads both files from disk and atomically publishes a new
// snapshot. A malformed base file is fatal; a missing or malformed
// overlay is tolerated (treated as "no overrides"), matching the
// original's tolerance for a device_settings.json written by an older
// release.
func (s *Store) Reload() error {
	return s.reload()
}

func (s *Store) reload() error {
	data, err := os.ReadFile(s.basePath)
	if err != nil {
		return daemonerr.Wrap("config.reload", daemonerr.CodeConfig, err)
	}
	var merged Settings
	if err := json.Unmarshal(data, &merged); err != nil {
		return daemonerr.Wrap("config.reload", daemonerr.CodeConfig, err)
	}
	// A nested reboot_plugin.last_reboot_reason_file wins over the flat key.
	var nested struct {
		RebootPlugin struct {
			LastRebootReasonFile *string `json:"last_reboot_reason_file"`
		} `json:"reboot_plugin"`
	}
	if json.Unmarshal(data, &nested) == nil && nested.RebootPlugin.LastRebootReasonFile != nil {
		merged.LastRebootReasonFile = *nested.RebootPlugin.LastRebootReasonFile
	}

	if ov, ok := s.loadOverlay(); ok {
		if ov.EnableDataCollection != nil {
			merged.EnableDataCollection = *ov.EnableDataCollection
		}
		if ov.EnableDevMode != nil {
			merged.EnableDevMode = *ov.EnableDevMode
		}
	}

	s.current.Store(&merged)
	return nil
}

func (s *Store) loadOverlay() (overlay, bool) {
	var ov overlay
	data, err := os.ReadFile(s.overlayPath)
	if err != nil {
		return ov, false
	}
	if err := json.Unmarshal(data, &ov); err != nil {
		return ov, false
	}
	return ov, true
}

// ApplyOverlay persists a runtime toggle (ticosctl enable/disable-*) and
// republishes the snapshot. The overlay file is written via a temp file
// plus rename so a crash mid-write never leaves a half-written overlay.
func (s *Store) ApplyOverlay(mutate func(*overlay)) error {
	ov, _ := s.loadOverlay()
	mutate(&ov)

	data, err := json.Marshal(ov)
	if err != nil {
		return daemonerr.Wrap("config.applyOverlay", daemonerr.CodeConfig, err)
	}
	tmp := s.overlayPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return daemonerr.Wrap("config.applyOverlay", daemonerr.CodeFilesystem, err)
	}
	if err := os.Rename(tmp, s.overlayPath); err != nil {
		return daemonerr.Wrap("config.applyOverlay", daemonerr.CodeFilesystem, err)
	}
	return s.reload()
}

// SetDataCollectionEnabled is the overlay mutator ticosctl's
// enable/disable-data-collection subcommands call.
func (s *Store) SetDataCollectionEnabled(enabled bool) error {
	return s.ApplyOverlay(func(ov *overlay) { ov.EnableDataCollection = &enabled })
}

// SetDevModeEnabled is the overlay mutator ticosctl's
// enable/disable-dev-mode subcommands call.
func (s *Store) SetDevModeEnabled(enabled bool) error {
	return s.ApplyOverlay(func(ov *overlay) { ov.EnableDevMode = &enabled })
}
