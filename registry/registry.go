//go:build linux

// Package registry tracks every running capture/replay worker,
// assigns it a stable identifier, and exposes lifecycle
// (start/stop/list) and scheduling (policy/priority/affinity)
// operations over it.
//
// Grounded on the original dabba project's dabbad/thread.c, redesigned
// per SPEC_FULL.md §5.6 to key workers by an identifier-keyed map guarded
// by a mutex instead of an intrusive TAILQ of pthread ids — Go
// goroutines have no address-stable handle to splice into a list node
// the way a pthread_t does.
package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/packetd/dabba/internal/errs"
	"github.com/packetd/dabba/internal/logging"
	"github.com/packetd/dabba/worker"
)

// Registry is the process-wide worker table. The zero value is not
// usable; construct with New.
type Registry struct {
	mu      sync.Mutex
	workers map[worker.ID]*worker.Record
	nextID  uint64
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{workers: make(map[worker.ID]*worker.Record)}
}

// Start launches rec's run loop under ctx and inserts it into the
// registry under a freshly assigned identifier, overwriting whatever
// identifier rec was constructed with. The returned identifier is
// stable for the worker's lifetime regardless of which OS thread
// backs it.
func (reg *Registry) Start(ctx context.Context, rec *worker.Record) worker.ID {
	id := worker.ID(atomic.AddUint64(&reg.nextID, 1))
	rec.ID = id

	reg.mu.Lock()
	reg.workers[id] = rec
	reg.mu.Unlock()

	rec.Start(ctx)
	logging.ForRegistry().WithFields(logrus.Fields{
		"worker_id": id,
		"kind":      rec.Kind.String(),
		"interface": rec.Interface,
	}).Info("worker started")
	return id
}

// Stop cancels and removes the worker with the given identifier. It
// returns errs.NotFound if no such worker is registered.
func (reg *Registry) Stop(id worker.ID) error {
	reg.mu.Lock()
	rec, ok := reg.workers[id]
	if ok {
		delete(reg.workers, id)
	}
	reg.mu.Unlock()

	if !ok {
		return errs.New(errs.NotFound, "registry.Stop", fmt.Errorf("no worker with id %d", id))
	}

	rec.Stop()
	logging.ForRegistry().WithField("worker_id", id).Info("worker stopped")
	return nil
}

// StopAll cancels and removes every registered worker, waiting for
// each to exit before returning.
func (reg *Registry) StopAll() {
	reg.mu.Lock()
	recs := make([]*worker.Record, 0, len(reg.workers))
	for id, rec := range reg.workers {
		recs = append(recs, rec)
		delete(reg.workers, id)
	}
	reg.mu.Unlock()

	for _, rec := range recs {
		rec.Stop()
	}
}

// List returns every registered worker's identifier, in no particular
// order.
func (reg *Registry) List() []worker.ID {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	ids := make([]worker.ID, 0, len(reg.workers))
	for id := range reg.workers {
		ids = append(ids, id)
	}
	return ids
}

// Get returns the worker record for id, or false if none is
// registered under it.
func (reg *Registry) Get(id worker.ID) (*worker.Record, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rec, ok := reg.workers[id]
	return rec, ok
}

// Scheduling reads back the worker's current scheduling policy,
// priority, and CPU affinity directly from the kernel, rather than
// from the registry's cached view — it reflects changes made outside
// this process (e.g. by an external taskset/chrt invocation against
// the same thread id) that SetScheduling never saw.
func (reg *Registry) Scheduling(id worker.ID) (worker.SchedulingView, error) {
	rec, ok := reg.Get(id)
	if !ok {
		return worker.SchedulingView{}, errs.New(errs.NotFound, "registry.Scheduling", fmt.Errorf("no worker with id %d", id))
	}

	tid, ready := rec.Tid()
	if !ready {
		return worker.SchedulingView{}, errs.New(errs.Busy, "registry.Scheduling", fmt.Errorf("worker %d has not started its run loop yet", id))
	}

	policy, err := getScheduler(tid)
	if err != nil {
		return worker.SchedulingView{}, errs.New(errs.Io, "registry.Scheduling", err)
	}
	priority, err := getSchedPriority(tid)
	if err != nil {
		return worker.SchedulingView{}, errs.New(errs.Io, "registry.Scheduling", err)
	}
	affinity, err := getAffinity(tid)
	if err != nil {
		return worker.SchedulingView{}, errs.New(errs.Io, "registry.Scheduling", err)
	}

	view := worker.SchedulingView{Policy: policy, Priority: priority, Affinity: affinity}
	rec.SetScheduling(view)
	return view, nil
}

// Reconfigure applies a best-effort partial scheduling update to the
// worker with the given identifier: any field left at its current
// value is read back from the kernel first, matching
// dabbad_thread_modify's merge-then-apply semantics. A nil Affinity
// leaves the worker's current affinity untouched.
func (reg *Registry) Reconfigure(id worker.ID, policy *worker.SchedPolicy, priority *int, affinity []int) error {
	rec, ok := reg.Get(id)
	if !ok {
		return errs.New(errs.NotFound, "registry.Reconfigure", fmt.Errorf("no worker with id %d", id))
	}

	tid, ready := rec.Tid()
	if !ready {
		return errs.New(errs.Busy, "registry.Reconfigure", fmt.Errorf("worker %d has not started its run loop yet", id))
	}

	current, err := reg.Scheduling(id)
	if err != nil {
		return err
	}
	newPolicy := current.Policy
	if policy != nil {
		newPolicy = *policy
	}
	newPriority := current.Priority
	if priority != nil {
		newPriority = *priority
	}
	newAffinity := current.Affinity
	if affinity != nil {
		newAffinity = affinity
	}

	if min, max, err := priorityRange(newPolicy); err == nil {
		if newPriority < min || newPriority > max {
			return errs.New(errs.InvalidArgument, "registry.Reconfigure",
				fmt.Errorf("priority %d out of range [%d, %d] for policy %v", newPriority, min, max, newPolicy))
		}
	}

	if err := setScheduler(tid, newPolicy, newPriority); err != nil {
		return errs.New(errs.Io, "registry.Reconfigure", err)
	}
	if affinity != nil {
		if err := setAffinity(tid, newAffinity); err != nil {
			return errs.New(errs.Io, "registry.Reconfigure", err)
		}
	}

	rec.SetScheduling(worker.SchedulingView{Policy: newPolicy, Priority: newPriority, Affinity: newAffinity})
	return nil
}

// Capability describes the priority range the kernel accepts for one
// scheduling policy.
type Capability struct {
	Policy  worker.SchedPolicy
	PrioMin int
	PrioMax int
}

// Capabilities reports the priority range for every scheduling policy
// the registry supports, mirroring dabbad_thread_capabilities_get.
func Capabilities() ([]Capability, error) {
	policies := []worker.SchedPolicy{worker.SchedFIFO, worker.SchedRR, worker.SchedOther}
	caps := make([]Capability, 0, len(policies))
	for _, p := range policies {
		min, max, err := priorityRange(p)
		if err != nil {
			return nil, errs.New(errs.Io, "registry.Capabilities", err)
		}
		caps = append(caps, Capability{Policy: p, PrioMin: min, PrioMax: max})
	}
	return caps, nil
}
