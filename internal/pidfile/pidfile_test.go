package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireWritesOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticosd.pid")
	pf, err := Acquire(path)
	require.NoError(t, err)
	t.Cleanup(func() { pf.Release() })

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestAcquireFailsWhenAlreadyHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticosd.pid")
	first, err := Acquire(path)
	require.NoError(t, err)
	t.Cleanup(func() { first.Release() })

	_, err = Acquire(path)
	require.Error(t, err)
}

func TestReleaseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticosd.pid")
	pf, err := Acquire(path)
	require.NoError(t, err)

	require.NoError(t, pf.Release())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
