//go:build linux

// Package worker implements the long-lived receive and transmit
// workers that drain or feed a packet-mmap ring, plus the worker
// record the registry tracks.
//
// Grounded on the original dabba project's libdabba/packet-rx.c and
// packet-tx.c for the scan/readiness/status-transition loops, redesigned
// per SPEC_FULL.md §5.4/§5.5 to use a context.Context cancellation
// token instead of asynchronous thread cancellation (spec.md §9).
package worker

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/packetd/dabba/internal/logging"
	"github.com/packetd/dabba/packetmmap"
	"github.com/packetd/dabba/pcap"
	"github.com/packetd/dabba/sockfilter"
)

// Kind distinguishes a capture (receive) worker from a replay
// (transmit) worker.
type Kind int

const (
	Capture Kind = iota
	Replay
)

func (k Kind) String() string {
	if k == Replay {
		return "replay"
	}
	return "capture"
}

// Status is the worker's aggregated health, reported upward per
// SPEC_FULL.md §6.
type Status int32

const (
	StatusOK Status = iota
	StatusStalled
	StatusFileError
)

func (s Status) String() string {
	switch s {
	case StatusStalled:
		return "stalled"
	case StatusFileError:
		return "file error"
	default:
		return "ok"
	}
}

// SchedPolicy is one of the three scheduling policies the registry can
// assign to a worker.
type SchedPolicy int

const (
	SchedOther SchedPolicy = iota
	SchedFIFO
	SchedRR
)

func (p SchedPolicy) String() string {
	switch p {
	case SchedFIFO:
		return "fifo"
	case SchedRR:
		return "rr"
	default:
		return "other"
	}
}

// ID is a stable worker identifier, assigned by the registry, that
// outlives any particular OS thread id the worker happens to run on.
type ID uint64

// Record is everything the registry needs to track, reconfigure, and
// tear down a running worker. The worker owns its Ring, Pcap, and
// Filter exclusively; no other code may reference them once the
// record has been removed from the registry.
type Record struct {
	ID        ID
	Kind      Kind
	Interface string
	Ring      *packetmmap.Ring
	Pcap      *pcap.File
	Filter    sockfilter.Program

	mu       sync.Mutex
	tid      int // OS thread id the worker goroutine is locked to, once known
	policy   SchedPolicy
	priority int
	affinity []int

	status int32 // atomic Status
	cancel func()
	done   chan struct{}

	log *logrus.Entry
}

// setTid is set by the worker goroutine once it has locked itself to
// an OS thread, so Reconfigure can target the right thread id.
func (r *Record) setTid(tid int) {
	r.mu.Lock()
	r.tid = tid
	r.mu.Unlock()
}

// Tid returns the OS thread id backing this worker, and whether it has
// been established yet (false briefly after Start, before the worker
// goroutine has run its first instruction).
func (r *Record) Tid() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tid, r.tid != 0
}

// SchedulingView is a snapshot of a worker's scheduling policy,
// priority, and CPU affinity.
type SchedulingView struct {
	Policy   SchedPolicy
	Priority int
	Affinity []int
}

// Scheduling returns the worker's current scheduling view.
func (r *Record) Scheduling() SchedulingView {
	r.mu.Lock()
	defer r.mu.Unlock()
	aff := make([]int, len(r.affinity))
	copy(aff, r.affinity)
	return SchedulingView{Policy: r.policy, Priority: r.priority, Affinity: aff}
}

// SetScheduling records a scheduling view the registry has just applied
// or read back from the kernel. It does not itself make the syscalls;
// the registry does that and calls this only after they succeed.
func (r *Record) SetScheduling(v SchedulingView) {
	r.mu.Lock()
	r.policy = v.Policy
	r.priority = v.Priority
	r.affinity = append([]int(nil), v.Affinity...)
	r.mu.Unlock()
}

// Status returns the worker's current aggregated health.
func (r *Record) Status() Status {
	return Status(atomic.LoadInt32(&r.status))
}

func (r *Record) setStatus(s Status) {
	atomic.StoreInt32(&r.status, int32(s))
}

// Done returns a channel closed once the worker goroutine has returned.
func (r *Record) Done() <-chan struct{} { return r.done }

// PCAPPath resolves the filesystem path backing this worker's pcap
// handle, via /proc/self/fd. It is a convenience for callers that only
// hold a worker.Record (e.g. a list/status command) and want to report
// the file a running worker is reading or writing without having
// carried the original path alongside it.
func (r *Record) PCAPPath() (string, error) {
	return PCAPPath(r.Pcap.Fd())
}

// readinessWaitLogThreshold is how long a worker may go without draining
// or filling a slot before it logs (not fails) a stall — surfaced via
// Status so SPEC_FULL.md §6's "stalled" value means something.
const readinessWaitLogThreshold = 5 * time.Second

// New builds a worker record. The caller has already attached filter
// (if any) to the ring's socket and created the ring and pcap handle;
// New only wires them together and does not itself touch the kernel.
func New(id ID, kind Kind, iface string, ring *packetmmap.Ring, pcapFile *pcap.File, filter sockfilter.Program) *Record {
	return &Record{
		ID:        id,
		Kind:      kind,
		Interface: iface,
		Ring:      ring,
		Pcap:      pcapFile,
		Filter:    filter,
		done:      make(chan struct{}),
		log:       logging.ForWorker(strconv.FormatUint(uint64(id), 10), kind.String(), iface),
	}
}

// NewStub returns a worker record whose Done channel is already
// closed and whose Stop is a no-op, for exercising registry lifecycle
// bookkeeping in tests without a real ring, pcap handle, or kernel
// thread behind it.
func NewStub(id ID, kind Kind, iface string) *Record {
	r := New(id, kind, iface, nil, nil, nil)
	close(r.done)
	return r
}

// Start launches the worker's run loop in its own goroutine, locked to
// its own OS thread so the registry can later set that thread's
// scheduling policy, priority, and CPU affinity independently of every
// other worker. Start returns immediately.
func (r *Record) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	r.cancel = cancel
	r.log = logging.ForWorker(strconv.FormatUint(uint64(r.ID), 10), r.Kind.String(), r.Interface)
	go func() {
		defer close(r.done)
		runOSThreadLocked(func(tid int) {
			r.setTid(tid)
			var err error
			switch r.Kind {
			case Replay:
				err = r.runTransmit(ctx)
			default:
				err = r.runReceive(ctx)
			}
			if err != nil && err != errCancelled {
				r.setStatus(StatusFileError)
				r.log.WithError(err).Warn("worker exited with error")
			}
		})
	}()
}

// Stop cancels the worker's context and blocks until its goroutine has
// returned.
func (r *Record) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}
