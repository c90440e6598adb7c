//go:build linux

// Package service implements the capture and replay facades: validate
// a request, acquire a raw socket, a pcap handle, an optional attached
// filter, and a ring, start the worker, and register it — unwinding
// whatever was already acquired on any failure along the way.
//
// Grounded on the original dabba project's dabbad/capture.c and
// dabbad/replay.c, which acquire resources in exactly this order
// (socket, pcap, filter, ring) and unwind in reverse on failure.
package service

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/packetd/dabba/internal/errs"
	"github.com/packetd/dabba/packetmmap"
	"github.com/packetd/dabba/pcap"
	"github.com/packetd/dabba/registry"
	"github.com/packetd/dabba/sockfilter"
	"github.com/packetd/dabba/worker"
)

// CaptureRequest describes a capture to start.
type CaptureRequest struct {
	Interface  string
	PCAPPath   string
	Append     bool
	FrameSize  packetmmap.FrameSize
	FrameCount uint32
	Filter     io.Reader // optional BPF program source, nil if unfiltered
}

// ReplayRequest describes a replay to start.
type ReplayRequest struct {
	Interface  string
	PCAPPath   string
	FrameSize  packetmmap.FrameSize
	FrameCount uint32
}

func (r CaptureRequest) validate() error {
	if r.Interface == "" {
		return errs.New(errs.InvalidArgument, "service.StartCapture", fmt.Errorf("empty interface name"))
	}
	if r.PCAPPath == "" {
		return errs.New(errs.InvalidArgument, "service.StartCapture", fmt.Errorf("empty pcap path"))
	}
	if !r.FrameSize.Valid() {
		return errs.New(errs.InvalidArgument, "service.StartCapture", fmt.Errorf("unsupported frame size %d", r.FrameSize))
	}
	if r.FrameCount == 0 {
		return errs.New(errs.InvalidArgument, "service.StartCapture", fmt.Errorf("frame count must be non-zero"))
	}
	return nil
}

func (r ReplayRequest) validate() error {
	if r.Interface == "" {
		return errs.New(errs.InvalidArgument, "service.StartReplay", fmt.Errorf("empty interface name"))
	}
	if r.PCAPPath == "" {
		return errs.New(errs.InvalidArgument, "service.StartReplay", fmt.Errorf("empty pcap path"))
	}
	if !r.FrameSize.Valid() {
		return errs.New(errs.InvalidArgument, "service.StartReplay", fmt.Errorf("unsupported frame size %d", r.FrameSize))
	}
	if r.FrameCount == 0 {
		return errs.New(errs.InvalidArgument, "service.StartReplay", fmt.Errorf("frame count must be non-zero"))
	}
	return nil
}

func openRawSocket() (int, error) {
	sock, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return -1, errs.New(errs.Io, "service.openRawSocket", err)
	}
	return sock, nil
}

func htons(v uint16) uint16 { return v<<8 | v>>8 }

// StartCapture validates req, acquires a socket, the pcap output file,
// an optional attached filter, and a receive ring, in that order,
// starts the receive worker, and registers it. Any failure unwinds
// everything already acquired, in reverse order, before returning.
func StartCapture(ctx context.Context, reg *registry.Registry, req CaptureRequest) (worker.ID, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}

	sock, err := openRawSocket()
	if err != nil {
		return 0, err
	}

	mode := pcap.ReadOnly
	var pf *pcap.File
	if req.Append {
		mode = pcap.Append
		pf, err = pcap.Open(req.PCAPPath, mode)
	} else {
		pf, err = pcap.Create(req.PCAPPath, pcap.LinkTypeEthernet)
	}
	if err != nil {
		unix.Close(sock)
		return 0, err
	}

	var filter sockfilter.Program
	if req.Filter != nil {
		filter, err = sockfilter.Parse(req.Filter)
		if err != nil {
			pf.Close()
			unix.Close(sock)
			return 0, err
		}
		if !sockfilter.Validate(filter) {
			pf.Close()
			unix.Close(sock)
			return 0, errs.New(errs.InvalidFormat, "service.StartCapture", fmt.Errorf("filter program fails structural validation"))
		}
		if err := sockfilter.Attach(sock, filter); err != nil {
			pf.Close()
			unix.Close(sock)
			return 0, err
		}
	}

	ring, err := packetmmap.Create(sock, packetmmap.Config{
		Direction:     packetmmap.RX,
		FrameSize:     req.FrameSize,
		FrameCount:    req.FrameCount,
		InterfaceName: req.Interface,
	})
	if err != nil {
		if filter != nil {
			sockfilter.Detach(sock)
		}
		pf.Close()
		unix.Close(sock)
		return 0, err
	}

	rec := worker.New(0, worker.Capture, req.Interface, ring, pf, filter)
	return reg.Start(ctx, rec), nil
}

// StartReplay validates req, acquires a socket, the pcap input file,
// and a transmit ring, in that order, starts the transmit worker, and
// registers it. Any failure unwinds everything already acquired, in
// reverse order, before returning.
func StartReplay(ctx context.Context, reg *registry.Registry, req ReplayRequest) (worker.ID, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}

	sock, err := openRawSocket()
	if err != nil {
		return 0, err
	}

	pf, err := pcap.Open(req.PCAPPath, pcap.ReadOnly)
	if err != nil {
		unix.Close(sock)
		return 0, err
	}

	// Fixed contract of the replay facade (spec.md §9 open question):
	// drop on congestion rather than block the transmit worker.
	if err := unix.SetsockoptInt(sock, unix.SOL_PACKET, unix.PACKET_LOSS, 1); err != nil {
		pf.Close()
		unix.Close(sock)
		return 0, errs.New(errs.Io, "service.StartReplay", err)
	}

	ring, err := packetmmap.Create(sock, packetmmap.Config{
		Direction:     packetmmap.TX,
		FrameSize:     req.FrameSize,
		FrameCount:    req.FrameCount,
		InterfaceName: req.Interface,
	})
	if err != nil {
		pf.Close()
		unix.Close(sock)
		return 0, err
	}

	rec := worker.New(0, worker.Replay, req.Interface, ring, pf, nil)
	return reg.Start(ctx, rec), nil
}

// StopCapture stops and unregisters a running worker (capture or
// replay), detaching its filter, closing its pcap handle, destroying
// its ring, and closing its socket, in that fixed release order.
func StopCapture(reg *registry.Registry, id worker.ID) error {
	rec, ok := reg.Get(id)
	if !ok {
		return errs.New(errs.NotFound, "service.StopCapture", fmt.Errorf("no worker with id %d", id))
	}
	sock := rec.Ring.Sock()

	if err := reg.Stop(id); err != nil {
		return err
	}

	if rec.Filter != nil {
		sockfilter.Detach(sock)
	}
	if err := rec.Pcap.Close(); err != nil {
		rec.Ring.Destroy()
		unix.Close(sock)
		return errs.New(errs.Io, "service.StopCapture", err)
	}
	if err := rec.Ring.Destroy(); err != nil {
		unix.Close(sock)
		return errs.New(errs.Io, "service.StopCapture", err)
	}
	return unix.Close(sock)
}
