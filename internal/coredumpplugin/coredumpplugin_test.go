package coredumpplugin

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ticos-device/ticosd/internal/ipcwire"
	"github.com/ticos-device/ticosd/internal/logging"
	"github.com/ticos-device/ticosd/internal/queue"
	"github.com/ticos-device/ticosd/internal/ratelimit"
)

func testPlugin(t *testing.T, count int, window int64) (*Plugin, *queue.Queue) {
	t.Helper()
	dir := t.TempDir()
	q, err := queue.Open(filepath.Join(dir, "q"), 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	limiter, err := ratelimit.New(count, window, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	log := logging.NewLogger(&logging.Config{Level: logging.LevelDebug, Output: &buf, Sync: true})
	return New(log, q, limiter, nil), q
}

func writeCoreFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core.elf.gz")
	require.NoError(t, os.WriteFile(path, []byte("fake-gzip-elf"), 0o640))
	return path
}

func TestHandleIPCEnqueuesReferenceWithinLimit(t *testing.T) {
	p, q := testPlugin(t, 2, 3600)
	path := writeCoreFile(t)

	require.NoError(t, p.HandleIPC(ipcwire.EncodeCore(path, true)))

	rec, ok, err := q.ReadHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, queue.RecordTypeCoreUpload, rec.Type)

	_, err = os.Stat(path)
	require.NoError(t, err, "file must survive a queued reference")
}

func TestHandleIPCDropsFileBeyondRateLimit(t *testing.T) {
	p, q := testPlugin(t, 1, 3600)
	first := writeCoreFile(t)
	second := writeCoreFile(t)

	require.NoError(t, p.HandleIPC(ipcwire.EncodeCore(first, true)))
	require.NoError(t, p.HandleIPC(ipcwire.EncodeCore(second, true)))

	_, ok, err := q.ReadHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, q.CompleteRead())

	_, ok, err = q.ReadHead()
	require.NoError(t, err)
	require.False(t, ok, "second event within the window must not be queued")

	_, err = os.Stat(second)
	require.True(t, os.IsNotExist(err), "rate-limited file must be removed")
}

func TestHandleIPCRejectsMissingPath(t *testing.T) {
	p, _ := testPlugin(t, 1, 3600)
	err := p.HandleIPC(ipcwire.EncodeCore("", true))
	require.Error(t, err)
}
