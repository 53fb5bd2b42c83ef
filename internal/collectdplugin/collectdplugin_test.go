package collectdplugin

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ticos-device/ticosd/internal/ipcwire"
)

func TestHandleIPCNeverErrors(t *testing.T) {
	p := New()
	require.NoError(t, p.HandleIPC([]byte("anything")))
	require.Equal(t, ipcwire.TagCollectd, p.IPCPrefix())
}
