// Package pcap implements the pcap file codec: bit-exact file and
// packet record headers, native/foreign endian tolerance, and the
// create/open/close/write/read/rewind contract consumed by the
// receive and transmit workers.
//
// The wire format is spec-exact (see SPEC_FULL.md §5.1): a 24-byte file
// header (magic, version 2.4, thiszone, sigfigs, snaplen, linktype) and
// a 16-byte packet record header (ts_sec, ts_usec, caplen, len)
// followed by caplen payload bytes. Only LinkTypeEthernet is produced
// or accepted.
package pcap

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/packetd/dabba/internal/errs"
)

// Magic is the canonical native-endian pcap magic number.
const Magic uint32 = 0xA1B2C3D4

// VersionMajor and VersionMinor are the only supported pcap file version.
const (
	VersionMajor uint16 = 2
	VersionMinor uint16 = 4
)

// LinkType identifies the physical layer recorded in a pcap file.
// Ethernet v2 is the only value this system produces or accepts.
type LinkType uint32

const (
	LinkTypeEthernet LinkType = 1
)

// DefaultSnapLen is the maximum number of payload bytes recorded per
// packet; 65535 in this system.
const DefaultSnapLen uint32 = 65535

const (
	fileHeaderSize   = 24
	recordHeaderSize = 16
)

// Mode selects how Open treats an existing pcap file.
type Mode int

const (
	ReadOnly Mode = iota
	Append
)

// File is a pcap file handle. Its position is always immediately after
// a valid file header on open and immediately after a valid packet
// record at all other rest points.
type File struct {
	fd       *os.File
	order    binary.ByteOrder
	native   bool
	snapLen  uint32
	linkType LinkType
	mode     Mode

	mx        sync.RWMutex
	closeMx   sync.Mutex
	isClosed  bool
	lastErr   errs.Kind
	hasLastErr bool
	records   int64
}

var recordPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, DefaultSnapLen)
	},
}

// Create creates a pcap file at path, writes a native-endian file
// header with the default snapshot length, and returns the handle. On
// any write failure the partially created file is unlinked before
// returning.
func Create(path string, linkType LinkType) (*File, error) {
	if linkType != LinkTypeEthernet {
		return nil, errs.New(errs.InvalidFormat, "pcap.Create", errors.New("unsupported pcap linktype"))
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errs.New(errs.Io, "pcap.Create", err)
	}

	hdr := make([]byte, fileHeaderSize)
	order := binary.LittleEndian
	order.PutUint32(hdr[0:4], Magic)
	order.PutUint16(hdr[4:6], VersionMajor)
	order.PutUint16(hdr[6:8], VersionMinor)
	order.PutUint32(hdr[8:12], 0) // thiszone
	order.PutUint32(hdr[12:16], 0) // sigfigs
	order.PutUint32(hdr[16:20], DefaultSnapLen)
	order.PutUint32(hdr[20:24], uint32(linkType))

	if _, err := f.Write(hdr); err != nil {
		f.Close()
		os.Remove(path)
		return nil, errs.New(errs.Io, "pcap.Create", err)
	}

	return &File{
		fd:       f,
		order:    order,
		native:   true,
		snapLen:  DefaultSnapLen,
		linkType: linkType,
		mode:     Append,
	}, nil
}

// Open opens an existing pcap file, validating its header and, for
// mode Append, seeking to the end. The file's native/foreign endian
// choice is detected from the magic and preserved for subsequent
// writes.
func Open(path string, mode Mode) (*File, error) {
	flag := os.O_RDONLY
	if mode == Append {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, errs.New(errs.Io, "pcap.Open", err)
	}

	hdr := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, errs.New(errs.InvalidFormat, "pcap.Open", err)
	}

	order, native, linkType, snapLen, err := parseFileHeader(hdr)
	if err != nil {
		f.Close()
		return nil, errs.New(errs.InvalidFormat, "pcap.Open", err)
	}

	if mode == Append {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, errs.New(errs.Io, "pcap.Open", err)
		}
	}

	return &File{
		fd:       f,
		order:    order,
		native:   native,
		snapLen:  snapLen,
		linkType: linkType,
		mode:     mode,
	}, nil
}

func parseFileHeader(b []byte) (order binary.ByteOrder, native bool, linkType LinkType, snapLen uint32, err error) {
	if binary.LittleEndian.Uint32(b[0:4]) == Magic {
		order, native = binary.LittleEndian, true
	} else if binary.BigEndian.Uint32(b[0:4]) == Magic {
		order, native = binary.BigEndian, false
	} else {
		return nil, false, 0, 0, errors.New("bad pcap magic")
	}

	major := order.Uint16(b[4:6])
	minor := order.Uint16(b[6:8])
	if major != VersionMajor || minor != VersionMinor {
		return nil, false, 0, 0, errors.New("unsupported pcap version")
	}

	snapLen = order.Uint32(b[16:20])
	linkType = LinkType(order.Uint32(b[20:24]))
	if linkType != LinkTypeEthernet {
		return nil, false, 0, 0, errors.New("unsupported pcap linktype")
	}

	return order, native, linkType, snapLen, nil
}

// WriteRecord writes a 16-byte packet record header followed by the
// payload in one logical step. A short write on either part is fatal:
// the caller must Close and, if it wants to keep capturing, open a
// fresh file.
func (f *File) WriteRecord(payload []byte, wireLen, capLen, sec, usec uint32) (int, error) {
	f.mx.Lock()
	defer f.mx.Unlock()

	if f.isClosed {
		return 0, errs.New(errs.Io, "pcap.WriteRecord", errors.New("file closed"))
	}

	hdr := make([]byte, recordHeaderSize)
	f.order.PutUint32(hdr[0:4], sec)
	f.order.PutUint32(hdr[4:8], usec)
	f.order.PutUint32(hdr[8:12], capLen)
	f.order.PutUint32(hdr[12:16], wireLen)

	n, err := f.fd.Write(hdr)
	if err != nil || n != recordHeaderSize {
		f.lastErr, f.hasLastErr = errs.Io, true
		return 0, errs.New(errs.Io, "pcap.WriteRecord", shortWriteErr(err, n, recordHeaderSize))
	}

	m, err := f.fd.Write(payload[:capLen])
	if err != nil || m != int(capLen) {
		f.lastErr, f.hasLastErr = errs.Io, true
		return n, errs.New(errs.Io, "pcap.WriteRecord", shortWriteErr(err, m, int(capLen)))
	}

	atomic.AddInt64(&f.records, 1)
	return n + m, nil
}

func shortWriteErr(err error, got, want int) error {
	if err != nil {
		return err
	}
	return errors.New("short write")
}

// ReadRecord reads the 16-byte packet header, then min(caplen,
// len(buf)) payload bytes into buf. Returns the captured length read.
// If the header read yields zero bytes, returns errs.EndOfFile. A
// partial header read fails with errs.InvalidFormat.
func (f *File) ReadRecord(buf []byte) (int, error) {
	f.mx.Lock()
	defer f.mx.Unlock()

	hdr := recordPool.Get().([]byte)
	hdr = hdr[:recordHeaderSize]
	defer recordPool.Put(hdr[:0])

	n, err := io.ReadFull(f.fd, hdr)
	if n == 0 && err != nil {
		if errors.Is(err, io.EOF) {
			return 0, errs.New(errs.EndOfFile, "pcap.ReadRecord", nil)
		}
		return 0, errs.New(errs.Io, "pcap.ReadRecord", err)
	}
	if err != nil {
		return 0, errs.New(errs.InvalidFormat, "pcap.ReadRecord", err)
	}

	capLen := f.order.Uint32(hdr[8:12])
	toRead := capLen
	if uint32(len(buf)) < toRead {
		toRead = uint32(len(buf))
	}

	if _, err := io.ReadFull(f.fd, buf[:toRead]); err != nil {
		return 0, errs.New(errs.Io, "pcap.ReadRecord", err)
	}

	// If the buffer was smaller than caplen, discard the remainder so
	// the file position stays at the next record boundary.
	if remaining := int64(capLen) - int64(toRead); remaining > 0 {
		if _, err := f.fd.Seek(remaining, io.SeekCurrent); err != nil {
			return 0, errs.New(errs.Io, "pcap.ReadRecord", err)
		}
	}

	atomic.AddInt64(&f.records, 1)
	return int(toRead), nil
}

// Rewind seeks to the byte immediately after the file header.
func (f *File) Rewind() error {
	f.mx.Lock()
	defer f.mx.Unlock()
	if _, err := f.fd.Seek(fileHeaderSize, io.SeekStart); err != nil {
		return errs.New(errs.Io, "pcap.Rewind", err)
	}
	return nil
}

// Close releases the underlying file descriptor. Close is not
// idempotent: closing twice returns an error.
func (f *File) Close() error {
	f.closeMx.Lock()
	defer f.closeMx.Unlock()
	if f.isClosed {
		return errs.New(errs.Io, "pcap.Close", errors.New("already closed"))
	}
	f.isClosed = true
	if err := f.fd.Close(); err != nil {
		return errs.New(errs.Io, "pcap.Close", err)
	}
	return nil
}

// Fd returns the underlying OS file descriptor, used by workers that
// need to resolve the path a handle was opened from (see
// SPEC_FULL.md §6's pcap-path-from-fd requirement).
func (f *File) Fd() uintptr { return f.fd.Fd() }

// SnapLen returns the file's configured snapshot length.
func (f *File) SnapLen() uint32 { return f.snapLen }

// LinkType returns the file's link type.
func (f *File) LinkType() LinkType { return f.linkType }

// Native reports whether the file is in the host's native endian.
func (f *File) Native() bool { return f.native }

// Records returns the number of records processed (written or read)
// through this handle so far.
func (f *File) Records() int64 { return atomic.LoadInt64(&f.records) }

// LastError returns the internal representation of the last fatal
// error observed by this handle, and whether one has occurred.
func (f *File) LastError() (errs.Kind, bool) {
	f.mx.RLock()
	defer f.mx.RUnlock()
	return f.lastErr, f.hasLastErr
}
