package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ticos-device/ticosd/internal/attrplugin"
	"github.com/ticos-device/ticosd/internal/config"
	"github.com/ticos-device/ticosd/internal/identity"
	"github.com/ticos-device/ticosd/internal/logging"
	"github.com/ticos-device/ticosd/internal/plugin"
	"github.com/ticos-device/ticosd/internal/queue"
	"github.com/ticos-device/ticosd/internal/upload"
)

func attributesPayload(t *testing.T, tsEpochS uint64, jsonBody string) []byte {
	t.Helper()
	payload, err := json.Marshal(attrplugin.Record{TimestampEpochS: tsEpochS, JSONBody: json.RawMessage(jsonBody)})
	require.NoError(t, err)
	return payload
}

func testSupervisor(t *testing.T, baseURL string) (*Supervisor, *queue.Queue) {
	t.Helper()
	dir := t.TempDir()
	q, err := queue.Open(filepath.Join(dir, "q"), 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })

	basePath := filepath.Join(dir, "ticosd.conf")
	require.NoError(t, os.WriteFile(basePath, []byte(`{"refresh_interval_seconds": 3600}`), 0o640))
	cfgStore, err := config.Load(basePath, filepath.Join(dir, "runtime.conf"))
	require.NoError(t, err)

	log := logging.NewLogger(&logging.Config{Level: logging.LevelError})
	up := upload.New(baseURL, "project-key", log)
	id := &identity.Identity{DeviceSerial: "D1", HardwareVersion: "evt", SoftwareType: "main", SoftwareVersion: "1.0.0"}

	table := plugin.NewTable(log, attrplugin.New(log, q, nil))
	return New(q, up, table, cfgStore, log, id, nil), q
}

func TestRunDrainsQueueOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, q := testSupervisor(t, srv.URL)
	ok, err := q.Write(queue.RecordTypeAttributes, attributesPayload(t, 1_700_000_000, `{"battery":99}`))
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { s.Run(ctx, 10*time.Millisecond); close(done) }()

	require.Eventually(t, func() bool { return q.Empty() }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	<-done
}

func TestRunLeavesRecordQueuedOnRetryableFailure(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, q := testSupervisor(t, srv.URL)
	_, err := q.Write(queue.RecordTypeAttributes, attributesPayload(t, 1_700_000_000, `{"battery":99}`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { s.Run(ctx, 10*time.Millisecond); close(done) }()

	require.Eventually(t, func() bool { return attempts >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.False(t, q.Empty(), "a retryable failure must not drop the record")
	s.Stop()
	<-done
}

func TestWakeCutsBackoffShort(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, q := testSupervisor(t, srv.URL)
	_, err := q.Write(queue.RecordTypeAttributes, attributesPayload(t, 1_700_000_000, `{"battery":99}`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { s.Run(ctx, time.Hour); close(done) }()

	require.Eventually(t, func() bool { return attempts >= 1 }, time.Second, 5*time.Millisecond)
	s.Wake()
	require.Eventually(t, func() bool { return attempts >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	<-done
}
