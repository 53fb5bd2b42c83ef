// Package identity reads the device/software identity fields ticosd
// needs at startup (device_settings.json), the values the original reads
// once via ticos_device_settings and never re-reads for the life of the
// process. A missing or malformed file is a fatal configuration error
// (spec §3 Identity, §7 scenario S1).
package identity

import (
	"encoding/json"
	"os"

	"github.com/ticos-device/ticosd/internal/daemonerr"
)

// Identity is the immutable device/software identity loaded once at
// startup and threaded into every plugin and upload request that needs
// it.
type Identity struct {
	DeviceSerial    string `json:"device_serial"`
	HardwareVersion string `json:"hardware_version"`
	SoftwareType    string `json:"software_type"`
	SoftwareVersion string `json:"software_version"`
	SdkVersion      string `json:"sdk_version"`
	ProjectKey      string `json:"project_key"`
}

// Load reads and validates path. Every field is required; an empty
// string after unmarshal is treated the same as a missing key, since the
// original tolerates neither.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, daemonerr.Wrap("identity.load", daemonerr.CodeConfig, err)
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, daemonerr.Wrap("identity.load", daemonerr.CodeConfig, err)
	}
	if err := id.validate(); err != nil {
		return nil, err
	}
	return &id, nil
}

func (id *Identity) validate() error {
	required := map[string]string{
		"device_serial":    id.DeviceSerial,
		"hardware_version": id.HardwareVersion,
		"software_type":    id.SoftwareType,
		"software_version": id.SoftwareVersion,
		"sdk_version":      id.SdkVersion,
		"project_key":      id.ProjectKey,
	}
	for key, val := range required {
		if val == "" {
			return daemonerr.New("identity.load", daemonerr.CodeConfig, "missing required field: "+key)
		}
	}
	return nil
}
