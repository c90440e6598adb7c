//go:build linux

package packetmmap

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Status values for a frame slot's status word. The same numeric
// values carry different meaning depending on ring direction: 0 means
// "kernel owns it" on receive and "available for the user to fill" on
// transmit; 1 means "filled, user-owned" on receive and "queued for
// the kernel to send" on transmit. This mirrors the real TPACKET ABI
// (TP_STATUS_KERNEL/AVAILABLE share value 0, TP_STATUS_USER/SEND_REQUEST
// share value 1) rather than inventing a parallel enum.
const (
	StatusKernel    uint64 = unix.TP_STATUS_KERNEL
	StatusUser      uint64 = unix.TP_STATUS_USER
	StatusAvailable uint64 = unix.TP_STATUS_KERNEL
	StatusSendReq   uint64 = unix.TP_STATUS_USER
)

// Slot is a view over one frame slot inside the ring's mapped region.
// It is a thin wrapper around the kernel-populated tpacket_hdr at the
// slot's origin; it does not copy the slot's bytes.
type Slot struct {
	raw []byte
}

func newSlot(raw []byte) Slot { return Slot{raw: raw} }

func (s Slot) hdr() *unix.TpacketHdr {
	return (*unix.TpacketHdr)(unsafe.Pointer(&s.raw[0]))
}

// Status performs an atomic, acquire-ordered load of the slot's status
// word. The kernel and the user process take turns owning the slot via
// this word (see SPEC_FULL.md §5.3); Go's atomic package gives these
// loads/stores sequentially-consistent semantics on every architecture
// this module targets, which satisfies the ring protocol's acquire
// requirement on a kernel-to-user ownership transfer.
func (s Slot) Status() uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&s.hdr().Status)))
}

// SetStatus performs an atomic, release-ordered store of the slot's
// status word, transferring ownership. The caller must have finished
// writing (TX) or reading (RX) the slot's payload before calling this.
func (s Slot) SetStatus(v uint64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&s.hdr().Status)), v)
}

// IsUserOwned reports whether the status word currently carries the
// TP_STATUS_USER bit, i.e. a received frame is ready for the receive
// worker to read.
func (s Slot) IsUserOwned() bool {
	return s.Status()&unix.TP_STATUS_USER == unix.TP_STATUS_USER
}

// IsAvailable reports whether a transmit slot is free for the
// transmit worker to fill.
func (s Slot) IsAvailable() bool {
	return s.Status() == StatusAvailable
}

// Len returns the on-wire length recorded by the kernel (RX) or set by
// the user (TX) for this slot.
func (s Slot) Len() uint32 { return s.hdr().Len }

// CapLen returns the captured length.
func (s Slot) CapLen() uint32 { return s.hdr().Snaplen }

// Timestamp returns the kernel-populated capture timestamp.
func (s Slot) Timestamp() (sec, usec uint32) {
	h := s.hdr()
	return h.Sec, h.Usec
}

// Payload returns the slot's frame payload, i.e. the bytes starting at
// the kernel-reported MAC offset for length n.
func (s Slot) Payload(n uint32) []byte {
	off := s.hdr().Mac
	return s.raw[off : uint32(off)+n]
}

// SetFrame writes the transmit-path fields (length, captured length,
// MAC offset) and returns the payload region the caller should fill.
func (s Slot) SetFrame(tplen uint16, n uint32) []byte {
	h := s.hdr()
	h.Mac = tplen
	h.Len = n
	h.Snaplen = n
	return s.raw[tplen : uint32(tplen)+n]
}

// tpacketAlignment is the kernel ABI's TPACKET_ALIGNMENT.
const tpacketAlignment = 16

func tpacketAlign(n uintptr) uint16 {
	return uint16((n + tpacketAlignment - 1) &^ (tpacketAlignment - 1))
}

// TxFrameHeaderLen returns the aligned offset from a transmit slot's
// origin to its payload, i.e. the tplen SetFrame expects. It mirrors
// the original implementation's TPACKET_ALIGN(sizeof(struct
// tpacket_hdr)) computation.
func TxFrameHeaderLen() uint16 {
	return tpacketAlign(unsafe.Sizeof(unix.TpacketHdr{}))
}
