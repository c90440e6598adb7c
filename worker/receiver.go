//go:build linux

package worker

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"github.com/packetd/dabba/packetmmap"
)

// pollTimeoutMillis bounds each readiness wait so the run loop can
// notice context cancellation promptly even when no frame ever
// arrives, matching the cancellable-poll redesign in SPEC_FULL.md §5.4.
const pollTimeoutMillis = 200

// runReceive is the receive worker's loop: wait for the socket to
// become readable, then drain every ring slot the kernel has handed
// back to userspace, writing each as one pcap record, until ctx is
// cancelled. Grounded on the original dabba project's
// libdabba/packet-rx.c poll/scan loop.
func (r *Record) runReceive(ctx context.Context) error {
	frameCount := r.Ring.FrameCount()
	var idx uint32
	lastProgress := time.Now()

	pfd := []unix.PollFd{{Fd: int32(r.Ring.Sock()), Events: unix.POLLIN}}

	for {
		select {
		case <-ctx.Done():
			return errCancelled
		default:
		}

		n, err := unix.Poll(pfd, pollTimeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			if time.Since(lastProgress) > readinessWaitLogThreshold {
				if r.Status() != StatusStalled {
					r.log.Warn("receive ring stalled: no frame past the readiness threshold")
				}
				r.setStatus(StatusStalled)
			}
			continue
		}

		drained := false
		for i := uint32(0); i < frameCount; i++ {
			slot := r.Ring.Slot(idx)
			if !slot.IsUserOwned() {
				break
			}
			drained = true

			capLen := slot.CapLen()
			wireLen := slot.Len()
			sec, usec := slot.Timestamp()
			payload := slot.Payload(capLen)

			if _, err := r.Pcap.WriteRecord(payload, wireLen, capLen, sec, usec); err != nil {
				r.setStatus(StatusFileError)
				r.log.WithError(err).Error("failed to persist captured record")
				slot.SetStatus(packetmmap.StatusKernel)
				return err
			}
			r.setStatus(StatusOK)

			slot.SetStatus(packetmmap.StatusKernel)
			idx = (idx + 1) % frameCount
		}

		if drained {
			lastProgress = time.Now()
		}
	}
}
