//go:build linux

package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "capture", Capture.String())
	assert.Equal(t, "replay", Replay.String())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "stalled", StatusStalled.String())
	assert.Equal(t, "file error", StatusFileError.String())
}

func TestNewRecordDefaults(t *testing.T) {
	r := New(1, Capture, "lo", nil, nil, nil)
	assert.Equal(t, ID(1), r.ID)
	assert.Equal(t, StatusOK, r.Status())
	_, ok := r.Tid()
	assert.False(t, ok)
}

func TestSchedPolicyString(t *testing.T) {
	assert.Equal(t, "other", SchedOther.String())
	assert.Equal(t, "fifo", SchedFIFO.String())
	assert.Equal(t, "rr", SchedRR.String())
}

func TestSetSchedulingRoundTrips(t *testing.T) {
	r := New(2, Replay, "eth0", nil, nil, nil)
	view := SchedulingView{Policy: SchedFIFO, Priority: 42, Affinity: []int{0, 2, 3}}
	r.SetScheduling(view)

	got := r.Scheduling()
	assert.Equal(t, SchedFIFO, got.Policy)
	assert.Equal(t, 42, got.Priority)
	assert.Equal(t, []int{0, 2, 3}, got.Affinity)
}

func TestSetStatusTransitions(t *testing.T) {
	r := New(3, Capture, "lo", nil, nil, nil)
	r.setStatus(StatusStalled)
	assert.Equal(t, StatusStalled, r.Status())
	r.setStatus(StatusOK)
	assert.Equal(t, StatusOK, r.Status())
}
