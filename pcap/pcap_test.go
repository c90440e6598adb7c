package pcap

import (
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/dabba/internal/errs"
)

func TestCreateWritesValidHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.pcap")
	f, err := Create(path, LinkTypeEthernet)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, fileHeaderSize)
	assert.Equal(t, Magic, binary.LittleEndian.Uint32(raw[0:4]))
	assert.Equal(t, VersionMajor, binary.LittleEndian.Uint16(raw[4:6]))
	assert.Equal(t, VersionMinor, binary.LittleEndian.Uint16(raw[6:8]))
	assert.Equal(t, DefaultSnapLen, binary.LittleEndian.Uint32(raw[16:20]))
	assert.Equal(t, uint32(LinkTypeEthernet), binary.LittleEndian.Uint32(raw[20:24]))
}

// TestRoundTrip implements spec.md §8 property 3: writing a record with
// payload P and reading the next record yields a byte-equal payload and
// a matching captured length, for arbitrary payload sizes up to snaplen.
func TestRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 64, 98, 1500, 9000} {
		path := filepath.Join(t.TempDir(), "t.pcap")
		f, err := Create(path, LinkTypeEthernet)
		require.NoError(t, err)

		payload := make([]byte, size)
		rand.New(rand.NewSource(int64(size))).Read(payload)

		_, err = f.WriteRecord(payload, uint32(size), uint32(size), 1, 2)
		require.NoError(t, err)
		require.NoError(t, f.Close())

		rf, err := Open(path, ReadOnly)
		require.NoError(t, err)

		buf := make([]byte, DefaultSnapLen)
		n, err := rf.ReadRecord(buf)
		require.NoError(t, err)
		assert.Equal(t, size, n)
		assert.Equal(t, payload, buf[:n])
		require.NoError(t, rf.Close())
	}
}

func TestReadRecordEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.pcap")
	f, err := Create(path, LinkTypeEthernet)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rf, err := Open(path, ReadOnly)
	require.NoError(t, err)

	buf := make([]byte, 64)
	_, err = rf.ReadRecord(buf)
	require.Error(t, err)
	assert.True(t, errs.Of(err, errs.EndOfFile))
}

// TestEndianTolerance implements spec.md §8 property 4 and Scenario 4:
// a file whose header magic is byte-swapped must still be openable and
// its records readable, matching the natively-written originals.
func TestEndianTolerance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swapped.pcap")
	f, err := Create(path, LinkTypeEthernet)
	require.NoError(t, err)
	payload := []byte("hello-swapped-world")
	_, err = f.WriteRecord(payload, uint32(len(payload)), uint32(len(payload)), 10, 20)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	swapFileInPlace(t, path)

	rf, err := Open(path, ReadOnly)
	require.NoError(t, err)
	assert.False(t, rf.Native())

	buf := make([]byte, DefaultSnapLen)
	n, err := rf.ReadRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])
	require.NoError(t, rf.Close())
}

// swapFileInPlace byte-swaps every 16/32-bit field of a pcap file this
// package wrote, simulating a file produced on a foreign-endian host.
func swapFileInPlace(t *testing.T, path string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	swap32 := func(b []byte) {
		binary.LittleEndian.PutUint32(b, binary.BigEndian.Uint32(b))
	}
	swap16 := func(b []byte) {
		binary.LittleEndian.PutUint16(b, binary.BigEndian.Uint16(b))
	}

	swap32(raw[0:4])
	swap16(raw[4:6])
	swap16(raw[6:8])
	swap32(raw[8:12])
	swap32(raw[12:16])
	swap32(raw[16:20])
	swap32(raw[20:24])

	off := fileHeaderSize
	for off+recordHeaderSize <= len(raw) {
		rec := raw[off : off+recordHeaderSize]
		swap32(rec[0:4])
		swap32(rec[4:8])
		swap32(rec[8:12])
		swap32(rec[12:16])
		capLen := binary.BigEndian.Uint32(rec[8:12])
		off += recordHeaderSize + int(capLen)
	}

	require.NoError(t, os.WriteFile(path, raw, 0644))
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pcap")
	require.NoError(t, os.WriteFile(path, make([]byte, fileHeaderSize), 0644))

	_, err := Open(path, ReadOnly)
	require.Error(t, err)
	assert.True(t, errs.Of(err, errs.InvalidFormat))
}

func TestAppendPreservesEndian(t *testing.T) {
	path := filepath.Join(t.TempDir(), "append.pcap")
	f, err := Create(path, LinkTypeEthernet)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	swapFileInPlace(t, path)

	af, err := Open(path, Append)
	require.NoError(t, err)
	assert.False(t, af.Native())

	payload := []byte("appended")
	_, err = af.WriteRecord(payload, uint32(len(payload)), uint32(len(payload)), 1, 1)
	require.NoError(t, err)
	require.NoError(t, af.Close())

	rf, err := Open(path, ReadOnly)
	require.NoError(t, err)
	assert.False(t, rf.Native())
	require.NoError(t, rf.Rewind())
	buf := make([]byte, DefaultSnapLen)
	n, err := rf.ReadRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])
}
