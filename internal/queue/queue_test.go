package queue

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestQueue(t *testing.T, capacity int64) (*Queue, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "queue")
	q, err := Open(path, capacity)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q, path
}

func TestQueueFIFOOrdering(t *testing.T) {
	q, _ := openTestQueue(t, 4096)

	records := [][]byte{[]byte("r1"), []byte("r2"), []byte("r3")}
	for _, r := range records {
		ok, err := q.Write(RecordTypeAttributes, r)
		require.NoError(t, err)
		require.True(t, ok)
	}

	for _, want := range records {
		rec, ok, err := q.ReadHead()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, rec.Payload)
		require.NoError(t, q.CompleteRead())
	}

	_, ok, err := q.ReadHead()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueueDurabilityAcrossRestart(t *testing.T) {
	q, path := openTestQueue(t, 4096)

	ok, err := q.Write(RecordTypeRebootEvent, []byte("pending"))
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate a crash before complete_read: close without draining, then
	// reopen from the sidecar state file.
	require.NoError(t, q.Close())

	q2, err := Open(path, 4096)
	require.NoError(t, err)
	defer q2.Close()

	rec, ok, err := q2.ReadHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("pending"), rec.Payload)
}

func TestQueueWriteRejectedWhenFull(t *testing.T) {
	q, _ := openTestQueue(t, 16)

	ok, err := q.Write(RecordTypeAttributes, []byte("0123456789ab"))
	require.NoError(t, err)
	require.False(t, ok, "record larger than remaining capacity must be rejected, not error")
}

func TestQueueEmptyTruncatesAndResetsCursors(t *testing.T) {
	q, _ := openTestQueue(t, 4096)

	ok, err := q.Write(RecordTypeAttributes, []byte("x"))
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = q.ReadHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, q.CompleteRead())

	require.Equal(t, int64(0), q.head)
	require.Equal(t, int64(0), q.tail)
	require.True(t, q.Empty())
}

func TestQueueCompactShiftsLiveRegionToZero(t *testing.T) {
	q, _ := openTestQueue(t, 4096)

	for _, r := range [][]byte{[]byte("a"), []byte("b")} {
		ok, err := q.Write(RecordTypeAttributes, r)
		require.NoError(t, err)
		require.True(t, ok)
	}
	_, ok, err := q.ReadHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, q.CompleteRead())

	require.NoError(t, q.Compact())
	require.Equal(t, int64(0), q.head)

	rec, ok, err := q.ReadHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("b"), rec.Payload)
}

func TestQueueReset(t *testing.T) {
	q, _ := openTestQueue(t, 4096)

	ok, err := q.Write(RecordTypeAttributes, []byte("x"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, q.Reset())
	require.True(t, q.Empty())
}
