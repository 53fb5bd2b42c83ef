package attrplugin

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ticos-device/ticosd/internal/ipcwire"
	"github.com/ticos-device/ticosd/internal/logging"
	"github.com/ticos-device/ticosd/internal/queue"
)

func testPlugin(t *testing.T) (*Plugin, *queue.Queue) {
	t.Helper()
	dir := t.TempDir()
	q, err := queue.Open(filepath.Join(dir, "q"), 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	var buf bytes.Buffer
	log := logging.NewLogger(&logging.Config{Level: logging.LevelDebug, Output: &buf, Sync: true})
	return New(log, q, nil), q
}

func TestHandleIPCEnqueuesJSONBody(t *testing.T) {
	p, q := testPlugin(t)

	msg := ipcwire.EncodeAttributes(1_700_000_000, []byte(`{"battery":87}`))
	require.NoError(t, p.HandleIPC(msg))

	rec, ok, err := q.ReadHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, queue.RecordTypeAttributes, rec.Type)

	var stored Record
	require.NoError(t, json.Unmarshal(rec.Payload, &stored))
	require.EqualValues(t, 1_700_000_000, stored.TimestampEpochS)
	require.JSONEq(t, `{"battery":87}`, string(stored.JSONBody))
}

func TestHandleIPCRejectsMalformedDatagram(t *testing.T) {
	p, _ := testPlugin(t)
	err := p.HandleIPC([]byte("garbage"))
	require.Error(t, err)
}

func TestIPCPrefixMatchesAttributesTag(t *testing.T) {
	p, _ := testPlugin(t)
	require.Equal(t, ipcwire.TagAttributes, p.IPCPrefix())
}
