//go:build linux

package worker

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// errCancelled is the sentinel a run loop returns when its context was
// cancelled; Start treats it as a clean exit, not a failure worth
// logging or reflecting in Status.
var errCancelled = errors.New("worker: cancelled")

// runOSThreadLocked locks the calling goroutine to its underlying OS
// thread for the duration of fn, so the thread id fn observes (and
// hands to the registry via setTid) remains valid for the worker's
// entire lifetime. This replaces the original implementation's use of
// one pthread per worker: each worker goroutine gets an OS thread of
// its own that never changes, which is what SPEC_FULL.md §7's
// scheduling/affinity calls require a stable identity to target.
func runOSThreadLocked(fn func(tid int)) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	fn(unix.Gettid())
}

// PCAPPath resolves the file a worker's pcap handle is backed by, by
// reading the /proc/self/fd symlink for its descriptor. Grounded on
// the original dabba project's exposure of a worker's pcap path via
// /proc rather than tracking the path redundantly in userspace.
func PCAPPath(fd uintptr) (string, error) {
	link := fmt.Sprintf("/proc/self/fd/%d", fd)
	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("worker: resolve pcap path for fd %d: %w", fd, err)
	}
	return target, nil
}
