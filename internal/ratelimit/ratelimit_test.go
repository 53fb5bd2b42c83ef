package ratelimit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// t0 is a realistic epoch time: a fresh limiter's history is all zeros, so
// it only admits events at least one window after time 0.
const t0 = int64(1_700_000_000)

func TestLimiterAdmitsAtMostNPerWindow(t *testing.T) {
	l, err := New(2, 10, "")
	require.NoError(t, err)

	require.True(t, l.CheckEvent(t0))
	require.True(t, l.CheckEvent(t0+1))
	require.False(t, l.CheckEvent(t0+2), "third admission within the window must be rejected")
	require.True(t, l.CheckEvent(t0+100), "long after the window has elapsed, admission resumes")
}

func TestLimiterDisabledWhenCountIsZero(t *testing.T) {
	l, err := New(0, 10, "")
	require.NoError(t, err)
	for i := int64(0); i < 1000; i++ {
		require.True(t, l.CheckEvent(i))
	}
}

func TestLimiterDisabledWhenWindowIsZero(t *testing.T) {
	l, err := New(3, 0, "")
	require.NoError(t, err)
	require.True(t, l.CheckEvent(0))
	require.True(t, l.CheckEvent(0))
}

func TestLimiterPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coredump_rate_limit")

	l, err := New(2, 100, path)
	require.NoError(t, err)
	require.True(t, l.CheckEvent(t0+5))
	require.True(t, l.CheckEvent(t0+10))

	l2, err := New(2, 100, path)
	require.NoError(t, err)
	require.False(t, l2.CheckEvent(t0+11), "reloaded state must still see the recent admissions")
}

func TestLimiterToleratesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")
	l, err := New(2, 10, path)
	require.NoError(t, err)
	require.True(t, l.CheckEvent(t0))
}

func TestLimiterToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt")
	require.NoError(t, os.WriteFile(path, []byte("5 not-a-number 9"), 0o640))

	l, err := New(3, 10, path)
	require.NoError(t, err)
	require.Equal(t, int64(5), l.history[0])
	require.Equal(t, int64(0), l.history[1])
	require.Equal(t, int64(0), l.history[2])
}
