//go:build linux

package registry

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/packetd/dabba/worker"
)

// schedParam mirrors struct sched_param from <sched.h>: a single int,
// the scheduling priority. golang.org/x/sys/unix does not carry a
// typed wrapper for sched_setscheduler(2)/sched_getscheduler(2), so
// these call the syscall numbers directly, the same way the rest of
// this package's low-level neighbors in the pack reach past the
// typed API when none exists.
type schedParam struct {
	priority int32
}

// maxCPUs bounds the affinity read-back scan. 1024 covers every real
// machine this daemon would run on; CPUSet.IsSet is bounds-checked
// internally so a larger value would just cost more iterations, never
// panic.
const maxCPUs = 1024

func schedPolicyToLinux(p worker.SchedPolicy) int {
	switch p {
	case worker.SchedFIFO:
		return unix.SCHED_FIFO
	case worker.SchedRR:
		return unix.SCHED_RR
	default:
		return unix.SCHED_OTHER
	}
}

func schedPolicyFromLinux(p int) worker.SchedPolicy {
	switch p {
	case unix.SCHED_FIFO:
		return worker.SchedFIFO
	case unix.SCHED_RR:
		return worker.SchedRR
	default:
		return worker.SchedOther
	}
}

func setScheduler(tid int, policy worker.SchedPolicy, priority int) error {
	sp := schedParam{priority: int32(priority)}
	_, _, errno := unix.Syscall(unix.SYS_SCHED_SETSCHEDULER,
		uintptr(tid), uintptr(schedPolicyToLinux(policy)), uintptr(unsafe.Pointer(&sp)))
	if errno != 0 {
		return errno
	}
	return nil
}

func getScheduler(tid int) (worker.SchedPolicy, error) {
	r1, _, errno := unix.Syscall(unix.SYS_SCHED_GETSCHEDULER, uintptr(tid), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return schedPolicyFromLinux(int(r1)), nil
}

func getSchedPriority(tid int) (int, error) {
	var sp schedParam
	_, _, errno := unix.Syscall(unix.SYS_SCHED_GETPARAM, uintptr(tid), uintptr(unsafe.Pointer(&sp)), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(sp.priority), nil
}

// priorityRange returns the [min, max] priority values the kernel
// accepts for the given policy, per sched_get_priority_min(2)/_max(2).
func priorityRange(policy worker.SchedPolicy) (min, max int, err error) {
	linuxPolicy := uintptr(schedPolicyToLinux(policy))

	r1, _, errno := unix.Syscall(unix.SYS_SCHED_GET_PRIORITY_MIN, linuxPolicy, 0, 0)
	if errno != 0 {
		return 0, 0, errno
	}
	min = int(r1)

	r1, _, errno = unix.Syscall(unix.SYS_SCHED_GET_PRIORITY_MAX, linuxPolicy, 0, 0)
	if errno != 0 {
		return 0, 0, errno
	}
	max = int(r1)

	return min, max, nil
}

func setAffinity(tid int, cpus []int) error {
	var set unix.CPUSet
	set.Zero()
	for _, c := range cpus {
		set.Set(c)
	}
	return unix.SchedSetaffinity(tid, &set)
}

func getAffinity(tid int) ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(tid, &set); err != nil {
		return nil, err
	}
	var cpus []int
	for i := 0; i < maxCPUs; i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
