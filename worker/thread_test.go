//go:build linux

package worker

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCAPPathResolvesRealFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "worker-pcap-path-*.pcap")
	require.NoError(t, err)
	defer f.Close()

	path, err := PCAPPath(f.Fd())
	require.NoError(t, err)
	assert.Equal(t, f.Name(), path)
}

func TestRunOSThreadLockedObservesTid(t *testing.T) {
	seen := 0
	runOSThreadLocked(func(tid int) {
		seen = tid
	})
	assert.NotZero(t, seen)
}
