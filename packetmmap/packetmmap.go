//go:build linux

// Package packetmmap implements the packet-mmap ring: a bounded
// circular buffer of fixed-size frame slots, jointly owned by the
// kernel and the user process, shared over one mmap'd region bound to
// a packet-family socket.
//
// Grounded on the original dabba project's libdabba/packet-mmap.c
// (register → mmap → vector → bind creation sequence, reverse-order
// teardown) and on the pack's real Go AF_PACKET implementations
// (packetcap/pcap, samsamfire/gocanopen's socketcanring) for the
// golang.org/x/sys/unix call shapes.
package packetmmap

import (
	"fmt"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/packetd/dabba/internal/errs"
)

// Direction selects whether a ring drains the kernel (receive) or
// feeds it (transmit).
type Direction int

const (
	RX Direction = iota
	TX
)

// FrameSize is one of the three supported fixed frame sizes.
type FrameSize uint32

const (
	FrameSizeStandard   FrameSize = 2048
	FrameSizeJumbo      FrameSize = 16384
	FrameSizeSuperJumbo FrameSize = 65536
)

// Valid reports whether fs is one of the three supported frame sizes.
func (fs FrameSize) Valid() bool {
	switch fs {
	case FrameSizeStandard, FrameSizeJumbo, FrameSizeSuperJumbo:
		return true
	default:
		return false
	}
}

func isPowerOfTwo(n uint32) bool { return n != 0 && n&(n-1) == 0 }

// Config describes a ring to create.
type Config struct {
	Direction     Direction
	FrameSize     FrameSize
	FrameCount    uint32 // must be a power of two, >= 8
	InterfaceName string
}

// Validate checks the ring-size invariants from SPEC_FULL.md §5.3 /
// spec.md §8 property 1, independent of any syscall.
func (c Config) Validate() error {
	if c.InterfaceName == "" {
		return errs.New(errs.InvalidArgument, "packetmmap.Config.Validate", fmt.Errorf("empty interface name"))
	}
	if !c.FrameSize.Valid() {
		return errs.New(errs.InvalidArgument, "packetmmap.Config.Validate", fmt.Errorf("unsupported frame size %d", c.FrameSize))
	}
	if c.FrameCount < 8 || !isPowerOfTwo(c.FrameCount) {
		return errs.New(errs.InvalidArgument, "packetmmap.Config.Validate", fmt.Errorf("frame count %d must be a power of two >= 8", c.FrameCount))
	}
	return nil
}

// Ring is one kernel-shared frame ring bound to one interface on one
// packet-family socket.
type Ring struct {
	direction  Direction
	sock       int
	ifindex    int
	frameSize  uint32
	frameCount uint32
	blockSize  uint32
	blockCount uint32
	mem        []byte
}

// Sock returns the packet-family socket the ring is bound to. The ring
// does not own the socket's lifetime; the caller closes it after
// Destroy (service.StopCapture does so as its last teardown step).
func (r *Ring) Sock() int { return r.sock }

// FrameSize returns the ring's configured frame size.
func (r *Ring) FrameSize() uint32 { return r.frameSize }

// FrameCount returns the ring's configured frame count.
func (r *Ring) FrameCount() uint32 { return r.frameCount }

// Slot returns a view over frame slot i. Slots are computed lazily
// from the mapped region; no per-slot object is retained.
func (r *Ring) Slot(i uint32) Slot {
	off := i * r.frameSize
	return newSlot(r.mem[off : off+r.frameSize])
}

func ringOption(dir Direction) int {
	if dir == TX {
		return unix.PACKET_TX_RING
	}
	return unix.PACKET_RX_RING
}

func htons(v uint16) uint16 { return v<<8 | v>>8 }

// Create executes the ring creation sequence from SPEC_FULL.md §5.3:
// resolve interface, compute layout, register with the kernel, mmap,
// and bind. Any failure unwinds everything done so far, in reverse
// order, before returning.
func Create(sock int, cfg Config) (*Ring, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	link, err := netlink.LinkByName(cfg.InterfaceName)
	if err != nil {
		return nil, errs.New(errs.InvalidArgument, "packetmmap.Create", err)
	}
	ifindex := link.Attrs().Index

	frameSize := uint32(cfg.FrameSize)
	blockSize := 8 * frameSize
	blockCount := cfg.FrameCount / 8
	if blockCount == 0 {
		return nil, errs.New(errs.InvalidArgument, "packetmmap.Create", fmt.Errorf("block count computed to zero"))
	}

	r := &Ring{
		direction:  cfg.Direction,
		sock:       sock,
		ifindex:    ifindex,
		frameSize:  frameSize,
		frameCount: cfg.FrameCount,
		blockSize:  blockSize,
		blockCount: blockCount,
	}

	var teardown []func()
	undo := func() {
		for i := len(teardown) - 1; i >= 0; i-- {
			teardown[i]()
		}
	}

	req := unix.TpacketReq{
		Block_size: blockSize,
		Block_nr:   blockCount,
		Frame_size: frameSize,
		Frame_nr:   cfg.FrameCount,
	}
	if err := unix.SetsockoptTpacketReq(sock, unix.SOL_PACKET, ringOption(cfg.Direction), &req); err != nil {
		return nil, errs.New(errs.Io, "packetmmap.Create", err)
	}
	teardown = append(teardown, func() {
		zero := unix.TpacketReq{}
		_ = unix.SetsockoptTpacketReq(sock, unix.SOL_PACKET, ringOption(cfg.Direction), &zero)
	})

	totalSize := int(blockSize) * int(blockCount)
	mem, err := unix.Mmap(sock, 0, totalSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_LOCKED)
	if err != nil {
		undo()
		return nil, errs.New(errs.Io, "packetmmap.Create", err)
	}
	r.mem = mem
	teardown = append(teardown, func() { _ = unix.Munmap(mem) })

	// Per-slot sequence is lazily computed by Ring.Slot; no allocation
	// happens here, but this stage exists in the sequence for parity
	// with the "vector" stage of SPEC_FULL.md §5.3 and to keep the teardown order
	// identical to the original C implementation's.

	sll := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  ifindex,
	}
	if err := unix.Bind(sock, &sll); err != nil {
		undo()
		return nil, errs.New(errs.Io, "packetmmap.Create", err)
	}

	return r, nil
}

// Destroy unmaps the ring's region and clears the kernel's ring option
// on the socket. It does not close the socket; the caller
// (service.StopCapture) does that last.
func (r *Ring) Destroy() error {
	var firstErr error
	if r.mem != nil {
		if err := unix.Munmap(r.mem); err != nil {
			firstErr = errs.New(errs.Io, "packetmmap.Destroy", err)
		}
		r.mem = nil
	}
	zero := unix.TpacketReq{}
	_ = unix.SetsockoptTpacketReq(r.sock, unix.SOL_PACKET, ringOption(r.direction), &zero)
	return firstErr
}
