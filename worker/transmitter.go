//go:build linux

package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sys/unix"

	"github.com/packetd/dabba/internal/errs"
	"github.com/packetd/dabba/packetmmap"
)

// submitRetries bounds how many times the transmit worker retries a
// kernel kick that returned EAGAIN before giving up on that kick and
// moving on to the next slot; the frame stays queued in its slot and is
// sent by the next kick that succeeds.
const submitRetries = 5

// runTransmit is the transmit worker's loop: fill every available
// ring slot from the pcap file, cycling back to the start of the file
// on EOF, and kick the kernel to send each filled slot. Grounded on
// the original dabba project's libdabba/packet-tx.c fill/submit loop.
func (r *Record) runTransmit(ctx context.Context) error {
	frameCount := r.Ring.FrameCount()
	frameSize := r.Ring.FrameSize()
	hdrLen := packetmmap.TxFrameHeaderLen()
	maxPayload := frameSize - uint32(hdrLen)
	buf := make([]byte, maxPayload)

	var idx uint32
	lastProgress := time.Now()

	for {
		select {
		case <-ctx.Done():
			return errCancelled
		default:
		}

		slot := r.Ring.Slot(idx)
		if !slot.IsAvailable() {
			time.Sleep(time.Millisecond)
			if time.Since(lastProgress) > readinessWaitLogThreshold {
				if r.Status() != StatusStalled {
					r.log.Warn("transmit ring stalled: no slot available past the readiness threshold")
				}
				r.setStatus(StatusStalled)
			}
			continue
		}

		n, err := r.Pcap.ReadRecord(buf)
		if errs.Of(err, errs.EndOfFile) {
			if rerr := r.Pcap.Rewind(); rerr != nil {
				r.setStatus(StatusFileError)
				r.log.WithError(rerr).Error("failed to rewind replay file at end of file")
				return rerr
			}
			continue
		}
		if err != nil {
			r.setStatus(StatusFileError)
			r.log.WithError(err).Error("failed to read replay record")
			return err
		}

		payload := slot.SetFrame(hdrLen, uint32(n))
		copy(payload, buf[:n])
		slot.SetStatus(packetmmap.StatusSendReq)

		if err := r.kick(); err != nil {
			r.setStatus(StatusFileError)
			r.log.WithError(err).Warn("kernel rejected transmit kick")
		} else {
			r.setStatus(StatusOK)
		}

		idx = (idx + 1) % frameCount
		lastProgress = time.Now()
	}
}

// kick nudges the kernel to drain any slots marked TP_STATUS_SEND_REQUEST,
// retrying a bounded number of times on EAGAIN (the socket send buffer
// is transiently full).
func (r *Record) kick() error {
	op := func() error {
		err := unix.Sendto(r.Ring.Sock(), nil, unix.MSG_DONTWAIT, nil)
		if err == nil {
			return nil
		}
		if err == unix.EAGAIN {
			return err
		}
		return backoff.Permanent(err)
	}
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), submitRetries)
	if err := backoff.Retry(op, b); err != nil {
		if perr, ok := err.(*backoff.PermanentError); ok {
			return perr.Err
		}
		return err
	}
	return nil
}
