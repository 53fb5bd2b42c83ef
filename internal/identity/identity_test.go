package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device_settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"device_serial": "DEMOSERIAL",
		"hardware_version": "evt",
		"software_type": "main",
		"software_version": "1.0.0",
		"sdk_version": "0.2.0",
		"project_key": "abc123"
	}`), 0o640))

	id, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "DEMOSERIAL", id.DeviceSerial)
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadRejectsMissingRequiredField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device_settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"device_serial": "D1"}`), 0o640))

	_, err := Load(path)
	require.Error(t, err)
}
