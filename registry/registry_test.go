//go:build linux

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetd/dabba/internal/errs"
	"github.com/packetd/dabba/worker"
)

// insertStub bypasses Start so lifecycle bookkeeping can be exercised
// without a real ring, pcap handle, or kernel thread.
func (reg *Registry) insertStub(kind worker.Kind, iface string) worker.ID {
	id := worker.ID(len(reg.workers) + 1)
	rec := worker.NewStub(id, kind, iface)
	reg.mu.Lock()
	reg.workers[id] = rec
	reg.mu.Unlock()
	return id
}

// TestRegistryLifecycle implements spec.md §8 scenario 5: start
// several workers, enumerate them, stop one, stop_all, then confirm
// a stopped id reports NotFound.
func TestRegistryLifecycle(t *testing.T) {
	reg := New()
	ids := make([]worker.ID, 0, 4)
	for i := 0; i < 4; i++ {
		ids = append(ids, reg.insertStub(worker.Capture, "lo"))
	}

	assert.Len(t, reg.List(), 4)

	require.NoError(t, reg.Stop(ids[0]))
	assert.Len(t, reg.List(), 3)

	_, ok := reg.Get(ids[0])
	assert.False(t, ok)
	assert.True(t, errs.Of(reg.Stop(ids[0]), errs.NotFound))

	reg.StopAll()
	assert.Empty(t, reg.List())
}

func TestStopUnknownWorkerReturnsNotFound(t *testing.T) {
	reg := New()
	err := reg.Stop(worker.ID(999))
	require.Error(t, err)
	assert.True(t, errs.Of(err, errs.NotFound))
}

func TestReconfigureUnknownWorkerReturnsNotFound(t *testing.T) {
	reg := New()
	err := reg.Reconfigure(worker.ID(999), nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errs.Of(err, errs.NotFound))
}

func TestReconfigureBeforeStartReturnsBusy(t *testing.T) {
	reg := New()
	id := reg.insertStub(worker.Capture, "lo")

	err := reg.Reconfigure(id, nil, nil, nil)
	require.Error(t, err)
	assert.True(t, errs.Of(err, errs.Busy))
}

func TestSchedulingUnknownWorkerReturnsNotFound(t *testing.T) {
	reg := New()
	_, err := reg.Scheduling(worker.ID(999))
	require.Error(t, err)
	assert.True(t, errs.Of(err, errs.NotFound))
}

func TestSchedulingBeforeStartReturnsBusy(t *testing.T) {
	reg := New()
	id := reg.insertStub(worker.Capture, "lo")

	_, err := reg.Scheduling(id)
	require.Error(t, err)
	assert.True(t, errs.Of(err, errs.Busy))
}

func TestCapabilitiesReportsAllThreePolicies(t *testing.T) {
	caps, err := Capabilities()
	if err != nil {
		t.Skipf("sched_get_priority_min/max unavailable in this sandbox: %v", err)
	}
	require.Len(t, caps, 3)
	for _, c := range caps {
		assert.LessOrEqual(t, c.PrioMin, c.PrioMax)
	}
}
